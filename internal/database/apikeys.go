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

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ledger-hub-go/internal/models"
	"ledger-hub-go/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func (s *Service) CreateAPIKey(ctx context.Context, params store.CreateAPIKeyParams) (*models.APIKey, error) {
	if params.Prefix == "" || params.HashedKey == "" {
		return nil, store.Validation("key", "prefix and hashed key are required")
	}

	key := &models.APIKey{
		Id:        uuid.New().String(),
		Name:      params.Name,
		PlaceId:   params.PlaceId,
		UserEmail: params.UserEmail,
		Prefix:    params.Prefix,
		HashedKey: params.HashedKey,
		Scope:     params.Scope,
	}

	_, err := s.db.ExecContext(ctx, queryInsertAPIKey,
		key.Id, key.Name, key.PlaceId, key.UserEmail, key.Prefix, key.HashedKey, key.Scope)
	if err != nil {
		return nil, fmt.Errorf("unable to create api key: %w", err)
	}

	zap.L().Info("API key created",
		zap.String("key_id", key.Id),
		zap.String("name", key.Name),
		zap.String("scope", key.Scope))
	return key, nil
}

func (s *Service) GetAPIKeyByPrefix(ctx context.Context, prefix string) (*models.APIKey, error) {
	var (
		k       models.APIKey
		expires sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, queryGetAPIKeyByPrefix, prefix).
		Scan(&k.Id, &k.Name, &k.PlaceId, &k.UserEmail, &k.Prefix, &k.HashedKey, &k.Scope, &k.Revoked, &expires, &k.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("api key %s: %w", prefix, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to get api key: %w", err)
	}
	if expires.Valid {
		k.ExpiresAt = &expires.Time
	}
	return &k, nil
}

func (s *Service) DeleteAPIKey(ctx context.Context, keyId string) error {
	if _, err := s.db.ExecContext(ctx, queryDeleteAPIKey, keyId); err != nil {
		return fmt.Errorf("unable to delete api key: %w", err)
	}
	return nil
}

func (s *Service) RevokeAPIKey(ctx context.Context, keyId string) error {
	if _, err := s.db.ExecContext(ctx, queryRevokeAPIKey, keyId); err != nil {
		return fmt.Errorf("unable to revoke api key: %w", err)
	}
	return nil
}
