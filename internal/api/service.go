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
	"encoding/json"
	"errors"
	"net/http"

	"ledger-hub-go/internal/bridge"
	"ledger-hub-go/internal/keys"
	"ledger-hub-go/internal/ledger"
	"ledger-hub-go/internal/models"
	"ledger-hub-go/internal/store"
	"ledger-hub-go/internal/trust"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Server wires the HTTP surface to the store, the ledger engine, the trust
// layer and the payment bridge.
type Server struct {
	store          store.HubStore
	engine         *ledger.Engine
	trust          *trust.Service
	bridge         *bridge.Service
	hubWalletId    string
	primaryAssetId string
}

func NewServer(st store.HubStore, engine *ledger.Engine, tr *trust.Service, br *bridge.Service, hubWalletId, primaryAssetId string) *Server {
	return &Server{
		store:          st,
		engine:         engine,
		trust:          tr,
		bridge:         br,
		hubWalletId:    hubWalletId,
		primaryAssetId: primaryAssetId,
	}
}

// Router builds the route table. Every mutating endpoint authenticates a
// capability token before any business logic runs.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/helloworld/", s.handleHello).Methods("GET")

	r.HandleFunc("/place/", s.withScope(models.ScopeRoot, s.handleCreatePlace)).Methods("POST")
	r.HandleFunc("/place/handshake/", s.withScope(models.ScopeHandshake, s.handleHandshake)).Methods("POST")

	r.HandleFunc("/asset/", s.withScope(models.ScopePlace, s.handleCreateAsset)).Methods("POST")
	r.HandleFunc("/asset/", s.withScope(models.ScopePlace, s.handleListAssets)).Methods("GET")

	r.HandleFunc("/transaction/", s.withScope(models.ScopePlace, s.handleCreateTransaction)).Methods("POST")
	r.HandleFunc("/transaction/{hash}/get_from_hash/", s.withScope(models.ScopePlace, s.handleGetFromHash)).Methods("GET")

	r.HandleFunc("/wallet/get_or_create/", s.withScope(models.ScopePlace, s.handleWalletGetOrCreate)).Methods("POST")
	r.HandleFunc("/wallet/{id}/balances/", s.withScope(models.ScopePlace, s.handleWalletBalances)).Methods("GET")
	r.HandleFunc("/wallet/{id}/retrieve_from_refill_checkout/", s.withScope(models.ScopePlace, s.handleRetrieveFromCheckout)).Methods("GET")
	r.HandleFunc("/wallet/refund/", s.withScope(models.ScopePlace, s.handleRefund)).Methods("POST")

	r.HandleFunc("/card/", s.withScope(models.ScopePlace, s.handleCardBatch)).Methods("POST")
	r.HandleFunc("/card/fusion/", s.withScope(models.ScopePlace, s.handleFusion)).Methods("POST")

	r.HandleFunc("/webhook_bridge/", s.handleBridgeWebhook).Methods("POST")
	return r
}

func (s *Server) handleHello(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"hello": "world"})
}

type contextKey string

const apiKeyContextKey contextKey = "api-key"

// callerKey returns the authenticated capability token of the request.
func callerKey(ctx context.Context) *models.APIKey {
	key, _ := ctx.Value(apiKeyContextKey).(*models.APIKey)
	return key
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		if err := json.NewEncoder(w).Encode(body); err != nil {
			zap.L().Error("Failed to encode response", zap.Error(err))
		}
	}
}

// writeError maps the error taxonomy to HTTP statuses. Authorization
// failures leak nothing beyond the status; integrity errors are logged at
// the highest severity and surface as plain server errors.
func writeError(w http.ResponseWriter, err error) {
	var validation *store.ValidationError
	if errors.As(err, &validation) {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: validation.Message, Field: validation.Field})
		return
	}

	if errors.Is(err, trust.ErrUnauthenticated) || errors.Is(err, trust.ErrWrongScope) ||
		errors.Is(err, trust.ErrStaleRequest) || errors.Is(err, trust.ErrNoNodeKey) ||
		errors.Is(err, keys.ErrBadSignature) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, models.ErrorResponse{Error: "not found"})
		return
	}

	if errors.Is(err, store.ErrInsufficientBalance) || errors.Is(err, store.ErrMissingCreation) ||
		errors.Is(err, store.ErrActionNotPermitted) || errors.Is(err, store.ErrDuplicateTransaction) ||
		errors.Is(err, store.ErrPrimaryAssetExists) || errors.Is(err, store.ErrBridgeAmountExceeded) ||
		errors.Is(err, store.ErrConcurrentModification) || errors.Is(err, trust.ErrHandshakeReplayed) ||
		errors.Is(err, bridge.ErrCheckoutUnpaid) {
		writeJSON(w, http.StatusConflict, models.ErrorResponse{Error: err.Error()})
		return
	}

	var integrity *store.IntegrityError
	if errors.As(err, &integrity) {
		zap.L().Error("Ledger integrity violation",
			zap.String("asset_id", integrity.AssetId),
			zap.String("transaction_id", integrity.TransactionId),
			zap.String("detail", integrity.Detail))
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "ledger integrity violation"})
		return
	}

	zap.L().Error("Request failed", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "internal error"})
}

func decodeJSON(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return store.Validation("", "malformed JSON body")
	}
	return nil
}

func unmarshalBody(body []byte, dst interface{}) error {
	if err := json.Unmarshal(body, dst); err != nil {
		return store.Validation("", "malformed JSON body")
	}
	return nil
}
