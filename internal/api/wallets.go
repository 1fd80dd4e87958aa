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
	"net/http"

	"ledger-hub-go/internal/keys"
	"ledger-hub-go/internal/models"
	"ledger-hub-go/internal/store"

	"github.com/gorilla/mux"
)

// newManagedWallet creates a wallet whose key pair is generated hub-side,
// with the private half encrypted under the master key.
func (s *Server) newManagedWallet(ctx context.Context, name, sourceIP string) (*models.Wallet, error) {
	privatePEM, publicPEM, err := keys.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	privateEnc, err := s.trust.ProtectSecret(privatePEM)
	if err != nil {
		return nil, err
	}
	return s.store.CreateWallet(ctx, store.CreateWalletParams{
		Name:          name,
		PublicPEM:     publicPEM,
		PrivatePEMEnc: privateEnc,
		SourceIP:      sourceIP,
	})
}

// handleWalletGetOrCreate provisions an end-user wallet idempotently, on a
// node-signed request. A repeated call with the same email/key pair returns
// the existing wallet.
func (s *Server) handleWalletGetOrCreate(w http.ResponseWriter, r *http.Request) {
	body, err := s.nodeSignedBody(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req models.WalletGetOrCreateRequest
	if err := unmarshalBody(body, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.PublicPEM != "" {
		if _, err := keys.ParsePublicKey(req.PublicPEM); err != nil {
			writeError(w, store.Validation("public_pem", "not a valid RSA public key PEM"))
			return
		}
	}

	wallet, created, err := s.store.GetOrCreateUserWallet(r.Context(), req.Email, req.PublicPEM, r.RemoteAddr)
	if err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]string{"wallet": wallet.Id})
}

// handleWalletBalances lists the cached token values of a wallet. The read
// is wallet-scoped, so it requires a signature over the wallet id and the
// request timestamp.
func (s *Server) handleWalletBalances(w http.ResponseWriter, r *http.Request) {
	walletId := mux.Vars(r)["id"]
	if err := s.verifySignedGet(r, walletId); err != nil {
		writeError(w, err)
		return
	}

	balances, err := s.store.ListWalletBalances(r.Context(), walletId)
	if err != nil {
		writeError(w, err)
		return
	}
	if balances == nil {
		balances = []models.BalanceEntry{}
	}
	writeJSON(w, http.StatusOK, balances)
}

// handleRetrieveFromCheckout is the polling confirmation path, racing the
// provider webhook for the same external reference.
func (s *Server) handleRetrieveFromCheckout(w http.ResponseWriter, r *http.Request) {
	externalRef := r.URL.Query().Get("checkout")
	if externalRef == "" {
		writeError(w, store.Validation("checkout", "checkout reference is required"))
		return
	}

	result, err := s.bridge.ConfirmCheckout(r.Context(), externalRef, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleRefund reverses bridged-fiat value, consuming recorded bridge
// credits newest first.
func (s *Server) handleRefund(w http.ResponseWriter, r *http.Request) {
	body, walletId, err := s.signedBody(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req models.RefundRequest
	if err := unmarshalBody(body, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.WalletId != walletId {
		writeError(w, store.Validation("wallet", "signer does not own the refunded wallet"))
		return
	}

	entries, err := s.bridge.Refund(r.Context(), req.WalletId, req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}

	results := make([]models.TransactionResult, len(entries))
	for i, entry := range entries {
		results[i] = models.TransactionResult{
			Id:           entry.Id,
			Hash:         entry.Hash,
			PreviousHash: entry.PreviousHash,
			SenderId:     entry.SenderId,
			ReceiverId:   entry.ReceiverId,
			AssetId:      entry.AssetId,
			Amount:       entry.Amount,
			Action:       entry.Action,
			CreatedAt:    entry.CreatedAt,
		}
	}
	writeJSON(w, http.StatusOK, results)
}
