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

package trust

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ledger-hub-go/internal/keys"
)

var (
	ErrStaleRequest = errors.New("signed request outside the replay window")
	ErrNoNodeKey    = errors.New("place has not completed its handshake")
)

// GetMessage builds the canonical signing payload for read requests: the
// requested resource id concatenated with the request timestamp.
func GetMessage(resourceId string, at time.Time) []byte {
	return []byte(resourceId + ":" + at.UTC().Format(time.RFC3339))
}

// VerifySignedRequest checks a detached RSA-PSS signature made by the
// wallet that owns publicPEM. The Date header must fall inside the replay
// window on either side to absorb clock skew.
func (s *Service) VerifySignedRequest(publicPEM string, message []byte, signatureB64 string, at time.Time) error {
	drift := time.Since(at)
	if drift < 0 {
		drift = -drift
	}
	if drift > s.replayWindow {
		return fmt.Errorf("request dated %s: %w", at.Format(time.RFC3339), ErrStaleRequest)
	}
	pub, err := keys.ParsePublicKey(publicPEM)
	if err != nil {
		return err
	}
	return keys.Verify(pub, message, signatureB64)
}

// VerifyNodeSignature verifies a signed request against the node key a
// place registered during its handshake.
func (s *Service) VerifyNodeSignature(ctx context.Context, placeId string, message []byte, signatureB64 string, at time.Time) error {
	place, err := s.store.GetPlace(ctx, placeId)
	if err != nil {
		return err
	}
	if place.NodePublicPEM == "" {
		return fmt.Errorf("place %s: %w", placeId, ErrNoNodeKey)
	}
	return s.VerifySignedRequest(place.NodePublicPEM, message, signatureB64, at)
}
