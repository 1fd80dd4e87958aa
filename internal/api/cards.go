package api

import (
	"fmt"
	"net/http"

	"ledger-hub-go/internal/models"
	"ledger-hub-go/internal/store"
)

// handleCardBatch bulk-registers physical cards under an origin/generation
// batch, on a node-signed request. Each card gets its own ephemeral wallet.
func (s *Server) handleCardBatch(w http.ResponseWriter, r *http.Request) {
	body, err := s.nodeSignedBody(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req models.CardBatchRequest
	if err := unmarshalBody(body, &req); err != nil {
		writeError(w, err)
		return
	}
	if len(req.UIDs) == 0 {
		writeError(w, store.Validation("uids", "at least one card uid is required"))
		return
	}

	ctx := r.Context()
	origin, err := s.store.CreateOrigin(ctx, req.OriginName, req.Generation)
	if err != nil {
		writeError(w, err)
		return
	}

	registered := make([]string, 0, len(req.UIDs))
	for _, uid := range req.UIDs {
		wallet, err := s.newManagedWallet(ctx, fmt.Sprintf("card %s", uid), r.RemoteAddr)
		if err != nil {
			writeError(w, err)
			return
		}
		card, err := s.store.RegisterCard(ctx, uid, origin.Id, wallet.Id)
		if err != nil {
			writeError(w, err)
			return
		}
		registered = append(registered, card.Id)
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"origin":     origin.Id,
		"generation": origin.Generation,
		"cards":      registered,
	})
}

// handleFusion merges a card's ephemeral wallet into its owner's wallet and
// binds the card, on a node-signed request. All balances move atomically.
func (s *Server) handleFusion(w http.ResponseWriter, r *http.Request) {
	body, err := s.nodeSignedBody(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req models.FusionRequest
	if err := unmarshalBody(body, &req); err != nil {
		writeError(w, err)
		return
	}

	ctx := r.Context()
	card, err := s.store.GetCardByUID(ctx, req.CardUID)
	if err != nil {
		writeError(w, err)
		return
	}
	if card.UserWalletId != "" {
		writeError(w, fmt.Errorf("card %s already fused: %w", card.UID, store.ErrActionNotPermitted))
		return
	}
	if _, err := s.store.GetWallet(ctx, req.UserWalletId); err != nil {
		writeError(w, err)
		return
	}

	entries, err := s.engine.Fuse(ctx, card.WalletId, req.UserWalletId, card.Id, r.RemoteAddr)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.store.BindCardToUser(ctx, card.Id, req.UserWalletId); err != nil {
		writeError(w, err)
		return
	}

	hashes := make([]string, len(entries))
	for i, entry := range entries {
		hashes[i] = entry.Hash
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"card":         card.Id,
		"user_wallet":  req.UserWalletId,
		"transactions": hashes,
	})
}
