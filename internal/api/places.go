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
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"

	"ledger-hub-go/internal/models"
	"ledger-hub-go/internal/store"
	"ledger-hub-go/internal/trust"
)

// handleCreatePlace provisions a Place with its wallet and hands back a
// one-time temporary capability token for the node handshake.
func (s *Server) handleCreatePlace(w http.ResponseWriter, r *http.Request) {
	var req models.PlaceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Name == "" {
		writeError(w, store.Validation("name", "place name is required"))
		return
	}
	if req.AdminEmail == "" {
		writeError(w, store.Validation("admin_email", "admin email is required"))
		return
	}

	place, tempSecret, err := s.provisionPlace(r, &req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, models.PlaceResult{
		Id:             place.Id,
		Name:           place.Name,
		WalletId:       place.WalletId,
		TemporaryToken: tempSecret,
	})
}

func (s *Server) provisionPlace(r *http.Request, req *models.PlaceRequest) (*models.Place, string, error) {
	ctx := r.Context()

	wallet, err := s.newManagedWallet(ctx, req.Name, r.RemoteAddr)
	if err != nil {
		return nil, "", err
	}

	admins := append([]string{req.AdminEmail}, req.Admins...)
	place, err := s.store.CreatePlace(ctx, req.Name, wallet.Id, admins)
	if err != nil {
		return nil, "", err
	}

	tempSecret, _, err := s.trust.IssueKey(ctx, trust.TempKeyPrefix+place.Name, place.Id, req.AdminEmail, models.ScopeHandshake)
	if err != nil {
		return nil, "", err
	}
	return place, tempSecret, nil
}

// handleHandshake pairs a cashless node using its temporary token. The node
// signs the request body with the key it submits; the response is a
// base64-encoded bundle, decoded once on the node side and never
// transmitted again.
func (s *Server) handleHandshake(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, err)
		return
	}
	var req models.HandshakeRequest
	if err := unmarshalBody(body, &req); err != nil {
		writeError(w, err)
		return
	}

	bundle, err := s.trust.Handshake(r.Context(), callerKey(r.Context()), &req, body, r.Header.Get("Signature"))
	if err != nil {
		writeError(w, err)
		return
	}

	raw, err := json.Marshal(bundle)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"encoded_data": base64.StdEncoding.EncodeToString(raw),
	})
}
