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

func (s *Service) CreatePlace(ctx context.Context, name, walletId string, admins []string) (*models.Place, error) {
	if name == "" {
		return nil, store.Validation("name", "place name is required")
	}

	place := &models.Place{
		Id:       uuid.New().String(),
		Name:     name,
		WalletId: walletId,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("unable to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, queryInsertPlace, place.Id, place.Name, place.WalletId); err != nil {
		return nil, fmt.Errorf("unable to create place: %w", err)
	}
	for _, email := range admins {
		if email == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, queryInsertPlaceAdmin, place.Id, email); err != nil {
			return nil, fmt.Errorf("unable to add place admin: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("unable to commit place: %w", err)
	}

	zap.L().Info("Place created",
		zap.String("place_id", place.Id),
		zap.String("name", place.Name))
	return place, nil
}

func (s *Service) GetPlace(ctx context.Context, placeId string) (*models.Place, error) {
	var p models.Place
	err := s.db.QueryRowContext(ctx, queryGetPlace, placeId).
		Scan(&p.Id, &p.Name, &p.WalletId, &p.NodeURL, &p.NodePublicPEM, &p.NodeAdminSecretEnc, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("place %s: %w", placeId, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to get place: %w", err)
	}
	return &p, nil
}

func (s *Service) GetPlaceByWallet(ctx context.Context, walletId string) (*models.Place, error) {
	var p models.Place
	err := s.db.QueryRowContext(ctx, queryGetPlaceByWallet, walletId).
		Scan(&p.Id, &p.Name, &p.WalletId, &p.NodeURL, &p.NodePublicPEM, &p.NodeAdminSecretEnc, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("place for wallet %s: %w", walletId, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to get place by wallet: %w", err)
	}
	return &p, nil
}

func (s *Service) IsPlaceAdmin(ctx context.Context, placeId, email string) (bool, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, queryIsPlaceAdmin, placeId, email).Scan(&count); err != nil {
		return false, fmt.Errorf("unable to check place admin: %w", err)
	}
	return count > 0, nil
}

// CommitHandshake records the node details a place submitted during its
// handshake. It only succeeds once: a place whose node URL is already set
// has completed its handshake and cannot repeat it.
func (s *Service) CommitHandshake(ctx context.Context, placeId, nodeURL, nodePublicPEM, adminSecretEnc string) error {
	res, err := s.db.ExecContext(ctx, queryCommitHandshake, nodeURL, nodePublicPEM, adminSecretEnc, placeId)
	if err != nil {
		return fmt.Errorf("unable to commit handshake: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("unable to read handshake result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("place %s not found or already onboarded: %w", placeId, store.ErrActionNotPermitted)
	}

	zap.L().Info("Place handshake committed",
		zap.String("place_id", placeId),
		zap.String("node_url", nodeURL))
	return nil
}
