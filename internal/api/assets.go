package api

import (
	"net/http"

	"ledger-hub-go/internal/ledger"
	"ledger-hub-go/internal/models"
	"ledger-hub-go/internal/store"

	"go.uber.org/zap"
)

// handleCreateAsset creates an Asset anchored at the calling place's wallet.
// The request is signed by the place's node key; the FIRST transaction is
// appended synchronously, so the asset is never observable without its
// chain anchor.
func (s *Server) handleCreateAsset(w http.ResponseWriter, r *http.Request) {
	body, err := s.nodeSignedBody(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req models.AssetRequest
	if err := unmarshalBody(body, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Category == models.AssetBridgedFiat {
		writeError(w, store.Validation("category", "the bridged-fiat asset is created at hub setup"))
		return
	}

	key := callerKey(r.Context())
	place, err := s.store.GetPlace(r.Context(), key.PlaceId)
	if err != nil {
		writeError(w, err)
		return
	}

	asset, err := s.store.CreateAsset(r.Context(), store.CreateAssetParams{
		Name:           req.Name,
		CurrencyCode:   req.CurrencyCode,
		Category:       req.Category,
		OriginWalletId: place.WalletId,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	first, err := s.engine.Append(r.Context(), ledger.AppendParams{
		SenderId:   place.WalletId,
		ReceiverId: place.WalletId,
		AssetId:    asset.Id,
		Amount:     0,
		Action:     ledger.ActionFirst,
		SourceIP:   r.RemoteAddr,
	})
	if err != nil {
		// An asset without its chain anchor can never accept an append;
		// drop the row rather than leave it stranded.
		if delErr := s.store.DeleteAsset(r.Context(), asset.Id); delErr != nil {
			zap.L().Error("Failed to remove unanchored asset",
				zap.String("asset_id", asset.Id), zap.Error(delErr))
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"id":            asset.Id,
		"name":          asset.Name,
		"currency_code": asset.CurrencyCode,
		"category":      asset.Category,
		"origin":        asset.OriginWalletId,
		"first_hash":    first.Hash,
	})
}

// handleListAssets lists the assets visible to the calling place: its own,
// the hub-wide bridged-fiat asset, and assets sharing a federation with it.
func (s *Server) handleListAssets(w http.ResponseWriter, r *http.Request) {
	key := callerKey(r.Context())
	place, err := s.store.GetPlace(r.Context(), key.PlaceId)
	if err != nil {
		writeError(w, err)
		return
	}

	assets, err := s.store.ListAssets(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	type assetEntry struct {
		Id           string `json:"id"`
		Name         string `json:"name"`
		CurrencyCode string `json:"currency_code"`
		Category     string `json:"category"`
		Origin       string `json:"origin"`
	}
	entries := make([]assetEntry, 0, len(assets))
	for _, a := range assets {
		visible := a.OriginWalletId == place.WalletId || a.Category == models.AssetBridgedFiat
		if !visible {
			visible, err = s.store.SharesFederation(r.Context(), a.Id, place.WalletId)
			if err != nil {
				writeError(w, err)
				return
			}
		}
		if !visible {
			continue
		}
		entries = append(entries, assetEntry{
			Id:           a.Id,
			Name:         a.Name,
			CurrencyCode: a.CurrencyCode,
			Category:     a.Category,
			Origin:       a.OriginWalletId,
		})
	}
	writeJSON(w, http.StatusOK, entries)
}
