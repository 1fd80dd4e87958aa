/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package api

import (
	"context"
	"errors"
	"net/http"

	"ledger-hub-go/internal/ledger"
	"ledger-hub-go/internal/models"
	"ledger-hub-go/internal/store"

	"github.com/gorilla/mux"
)

// handleCreateTransaction is the generic ledger mutation. The action type
// is derived from the caller identity and the sender/receiver relationship,
// never taken from the client.
func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	body, signerWalletId, err := s.signedBody(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req models.TransactionRequest
	if err := unmarshalBody(body, &req); err != nil {
		writeError(w, err)
		return
	}

	key := callerKey(r.Context())
	place, err := s.store.GetPlace(r.Context(), key.PlaceId)
	if err != nil {
		writeError(w, err)
		return
	}
	// The signer must be a party to the move, or the place itself acting
	// on its own wallet.
	if signerWalletId != req.SenderId && signerWalletId != place.WalletId {
		writeError(w, store.Validation("sender", "signer is not the sender"))
		return
	}

	params := ledger.AppendParams{
		SenderId:   req.SenderId,
		ReceiverId: req.ReceiverId,
		AssetId:    req.AssetId,
		Amount:     req.Amount,
		SourceIP:   r.RemoteAddr,
		Comment:    req.Comment,
	}
	if req.CardUID != "" {
		card, err := s.store.GetCardByUID(r.Context(), req.CardUID)
		if err != nil {
			writeError(w, err)
			return
		}
		params.CardId = card.Id
	}
	if req.PrimaryCardUID != "" {
		primary, err := s.store.GetCardByUID(r.Context(), req.PrimaryCardUID)
		if err != nil {
			writeError(w, err)
			return
		}
		params.PrimaryCardId = primary.Id
	}

	action, err := s.deriveAction(r.Context(), &req, place)
	if err != nil {
		writeError(w, err)
		return
	}
	params.Action = action

	entry, err := s.engine.Append(r.Context(), params)
	if err != nil {
		writeError(w, err)
		return
	}

	senderBalance, _ := s.store.GetTokenValue(r.Context(), entry.SenderId, entry.AssetId)
	receiverBalance, _ := s.store.GetTokenValue(r.Context(), entry.ReceiverId, entry.AssetId)
	writeJSON(w, http.StatusCreated, models.TransactionResult{
		Id:              entry.Id,
		Hash:            entry.Hash,
		PreviousHash:    entry.PreviousHash,
		SenderId:        entry.SenderId,
		ReceiverId:      entry.ReceiverId,
		AssetId:         entry.AssetId,
		Amount:          entry.Amount,
		Action:          entry.Action,
		CreatedAt:       entry.CreatedAt,
		SenderBalance:   senderBalance,
		ReceiverBalance: receiverBalance,
	})
}

// deriveAction classifies the requested move. Order matters: minting and
// category-bound assets are recognized before the generic cases.
func (s *Server) deriveAction(ctx context.Context, req *models.TransactionRequest, callerPlace *models.Place) (string, error) {
	asset, err := s.store.GetAsset(ctx, req.AssetId)
	if err != nil {
		return "", err
	}

	if req.SenderId == req.ReceiverId {
		return ledger.ActionCreation, nil
	}

	switch asset.Category {
	case models.AssetSubscription:
		return ledger.ActionSubscribe, nil
	case models.AssetBadge:
		return ledger.ActionBadge, nil
	}

	// A place reconciling into the hub's bank wallet.
	if req.ReceiverId == s.hubWalletId && req.SenderId == callerPlace.WalletId {
		return ledger.ActionDeposit, nil
	}

	// The asset origin distributing value is a refill; value flowing back
	// toward a place is a sale.
	if req.SenderId == asset.OriginWalletId || req.SenderId == s.hubWalletId {
		return ledger.ActionRefill, nil
	}
	if _, err := s.store.GetPlaceByWallet(ctx, req.ReceiverId); err == nil {
		return ledger.ActionSale, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return "", err
	}

	return ledger.ActionTransfer, nil
}

// handleGetFromHash looks a transaction up by its content hash.
func (s *Server) handleGetFromHash(w http.ResponseWriter, r *http.Request) {
	hash := mux.Vars(r)["hash"]
	entry, err := s.store.GetTransactionByHash(r.Context(), hash)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ledger.VerifyHash(entry) {
		writeError(w, &store.IntegrityError{
			AssetId:       entry.AssetId,
			TransactionId: entry.Id,
			Detail:        "stored hash does not match recomputed digest",
		})
		return
	}
	writeJSON(w, http.StatusOK, models.TransactionResult{
		Id:           entry.Id,
		Hash:         entry.Hash,
		PreviousHash: entry.PreviousHash,
		SenderId:     entry.SenderId,
		ReceiverId:   entry.ReceiverId,
		AssetId:      entry.AssetId,
		Amount:       entry.Amount,
		Action:       entry.Action,
		CreatedAt:    entry.CreatedAt,
	})
}
