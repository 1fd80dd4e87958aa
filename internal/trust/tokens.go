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
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"ledger-hub-go/internal/keys"
	"ledger-hub-go/internal/models"
	"ledger-hub-go/internal/store"
)

// TempKeyPrefix names a bootstrap capability token handed out at place
// provisioning and burned by the handshake.
const TempKeyPrefix = "temp_"

var (
	ErrUnauthenticated = errors.New("invalid or revoked capability token")
	ErrWrongScope      = errors.New("capability token lacks the required scope")
)

// Service mediates capability tokens, request signatures and the place
// handshake. Secrets are stored only as SHA-256 digests; node admin
// secrets are encrypted at rest with the hub master key.
type Service struct {
	store        store.HubStore
	cipher       *keys.Cipher
	replayWindow time.Duration
}

func NewService(st store.HubStore, cipher *keys.Cipher, replayWindow time.Duration) *Service {
	return &Service{store: st, cipher: cipher, replayWindow: replayWindow}
}

// GenerateSecret returns a fresh capability token secret in "prefix.body"
// form plus the digest to persist. The full secret is shown once and never
// stored.
func GenerateSecret() (secret, prefix, hashedKey string, err error) {
	raw := make([]byte, 36)
	if _, err = rand.Read(raw); err != nil {
		return "", "", "", fmt.Errorf("unable to generate token secret: %w", err)
	}
	prefix = hex.EncodeToString(raw[:4])
	body := base64.RawURLEncoding.EncodeToString(raw[4:])
	secret = prefix + "." + body
	return secret, prefix, HashSecret(secret), nil
}

// HashSecret returns the hex SHA-256 digest of a full token secret.
func HashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// IssueKey mints a capability token, persists its digest and returns the
// one-time full secret alongside the stored record.
func (s *Service) IssueKey(ctx context.Context, name, placeId, userEmail, scope string) (string, *models.APIKey, error) {
	secret, prefix, hashed, err := GenerateSecret()
	if err != nil {
		return "", nil, err
	}
	key, err := s.store.CreateAPIKey(ctx, store.CreateAPIKeyParams{
		Name:      name,
		PlaceId:   placeId,
		UserEmail: userEmail,
		Prefix:    prefix,
		HashedKey: hashed,
		Scope:     scope,
	})
	if err != nil {
		return "", nil, err
	}
	return secret, key, nil
}

// Authenticate resolves a presented secret to its stored key record. The
// lookup goes through the public prefix; the digest comparison is constant
// time.
func (s *Service) Authenticate(ctx context.Context, secret string) (*models.APIKey, error) {
	prefix, _, found := strings.Cut(secret, ".")
	if !found || prefix == "" {
		return nil, ErrUnauthenticated
	}

	key, err := s.store.GetAPIKeyByPrefix(ctx, prefix)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}
	if key.Revoked {
		return nil, ErrUnauthenticated
	}
	if key.ExpiresAt != nil && time.Now().After(*key.ExpiresAt) {
		return nil, ErrUnauthenticated
	}
	if subtle.ConstantTimeCompare([]byte(key.HashedKey), []byte(HashSecret(secret))) != 1 {
		return nil, ErrUnauthenticated
	}
	return key, nil
}

// RequireScope authenticates a secret and checks its scope. Root keys pass
// every scope check.
func (s *Service) RequireScope(ctx context.Context, secret, scope string) (*models.APIKey, error) {
	key, err := s.Authenticate(ctx, secret)
	if err != nil {
		return nil, err
	}
	if key.Scope != scope && key.Scope != models.ScopeRoot {
		return nil, ErrWrongScope
	}
	return key, nil
}

// ProtectSecret encrypts a secret for at-rest storage with the hub master key.
func (s *Service) ProtectSecret(plaintext string) (string, error) {
	return s.cipher.Encrypt(plaintext)
}

// RevealSecret decrypts an at-rest secret.
func (s *Service) RevealSecret(encoded string) (string, error) {
	return s.cipher.Decrypt(encoded)
}

// IsTemporary reports whether a key is a bootstrap token awaiting handshake.
func IsTemporary(key *models.APIKey) bool {
	return strings.HasPrefix(key.Name, TempKeyPrefix)
}
