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
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"ledger-hub-go/internal/trust"
)

// withScope authenticates the Authorization capability token and checks its
// scope before the handler runs. Failures return a bare 401.
func (s *Server) withScope(scope string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		secret := r.Header.Get("Authorization")
		if secret == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		key, err := s.trust.RequireScope(r.Context(), secret, scope)
		if err != nil {
			writeError(w, err)
			return
		}
		ctx := context.WithValue(r.Context(), apiKeyContextKey, key)
		next(w, r.WithContext(ctx))
	}
}

// signedBody reads the request body and verifies the detached signature in
// the Signature header against the acting wallet named by the Wallet header,
// bounded by the Date header's replay window. It returns the body bytes for
// decoding and the acting wallet id.
func (s *Server) signedBody(r *http.Request) ([]byte, string, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, "", err
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	walletId := r.Header.Get("Wallet")
	signature := r.Header.Get("Signature")
	dateHeader := r.Header.Get("Date")
	if walletId == "" || signature == "" || dateHeader == "" {
		return nil, "", trust.ErrUnauthenticated
	}
	at, err := time.Parse(time.RFC3339, dateHeader)
	if err != nil {
		return nil, "", trust.ErrUnauthenticated
	}

	wallet, err := s.store.GetWallet(r.Context(), walletId)
	if err != nil {
		return nil, "", trust.ErrUnauthenticated
	}
	if err := s.trust.VerifySignedRequest(wallet.PublicPEM, body, signature, at); err != nil {
		return nil, "", err
	}
	return body, walletId, nil
}

// nodeSignedBody reads the request body and verifies the detached signature
// in the Signature header against the node key the calling place registered
// during its handshake, bounded by the Date header's replay window. It
// returns the body bytes for decoding.
func (s *Server) nodeSignedBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	signature := r.Header.Get("Signature")
	dateHeader := r.Header.Get("Date")
	if signature == "" || dateHeader == "" {
		return nil, trust.ErrUnauthenticated
	}
	at, err := time.Parse(time.RFC3339, dateHeader)
	if err != nil {
		return nil, trust.ErrUnauthenticated
	}

	key := callerKey(r.Context())
	if err := s.trust.VerifyNodeSignature(r.Context(), key.PlaceId, body, signature, at); err != nil {
		return nil, err
	}
	return body, nil
}

// verifySignedGet checks a Signature header over "<resource-id>:<timestamp>"
// for read endpoints acting on a wallet's behalf.
func (s *Server) verifySignedGet(r *http.Request, resourceId string) error {
	walletId := r.Header.Get("Wallet")
	signature := r.Header.Get("Signature")
	dateHeader := r.Header.Get("Date")
	if walletId == "" || signature == "" || dateHeader == "" {
		return trust.ErrUnauthenticated
	}
	at, err := time.Parse(time.RFC3339, dateHeader)
	if err != nil {
		return trust.ErrUnauthenticated
	}
	wallet, err := s.store.GetWallet(r.Context(), walletId)
	if err != nil {
		return trust.ErrUnauthenticated
	}
	return s.trust.VerifySignedRequest(wallet.PublicPEM, trust.GetMessage(resourceId, at), signature, at)
}
