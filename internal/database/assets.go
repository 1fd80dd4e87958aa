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

func (s *Service) CreateAsset(ctx context.Context, params store.CreateAssetParams) (*models.Asset, error) {
	if params.Name == "" {
		return nil, store.Validation("name", "asset name is required")
	}
	if params.CurrencyCode == "" {
		return nil, store.Validation("currency_code", "currency code is required")
	}
	switch params.Category {
	case models.AssetLocalFiat, models.AssetLocalNonFiat, models.AssetSubscription,
		models.AssetBadge, models.AssetBridgedFiat:
	default:
		return nil, store.Validation("category", fmt.Sprintf("unknown asset category %q", params.Category))
	}

	// Only one live bridged-fiat asset may exist hub-wide.
	if params.Category == models.AssetBridgedFiat {
		_, err := s.GetPrimaryAsset(ctx)
		if err == nil {
			return nil, store.ErrPrimaryAssetExists
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}

	asset := &models.Asset{
		Id:             uuid.New().String(),
		Name:           params.Name,
		CurrencyCode:   params.CurrencyCode,
		Category:       params.Category,
		OriginWalletId: params.OriginWalletId,
	}

	_, err := s.db.ExecContext(ctx, queryInsertAsset,
		asset.Id, asset.Name, asset.CurrencyCode, asset.Category, asset.OriginWalletId)
	if err != nil {
		return nil, fmt.Errorf("unable to create asset: %w", err)
	}

	zap.L().Info("Asset created",
		zap.String("asset_id", asset.Id),
		zap.String("name", asset.Name),
		zap.String("category", asset.Category))
	return asset, nil
}

// DeleteAsset removes an asset that never received its chain anchor. An
// asset with any ledger history is refused, so a committed chain can never
// lose its asset row.
func (s *Service) DeleteAsset(ctx context.Context, assetId string) error {
	res, err := s.db.ExecContext(ctx, queryDeleteUnanchoredAsset, assetId)
	if err != nil {
		return fmt.Errorf("unable to delete asset: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("unable to read delete result: %w", err)
	}
	if affected == 0 {
		if _, err := s.GetAsset(ctx, assetId); err != nil {
			return err
		}
		return fmt.Errorf("asset %s has ledger history: %w", assetId, store.ErrActionNotPermitted)
	}
	return nil
}

func (s *Service) GetAsset(ctx context.Context, assetId string) (*models.Asset, error) {
	var a models.Asset
	err := s.db.QueryRowContext(ctx, queryGetAsset, assetId).
		Scan(&a.Id, &a.Name, &a.CurrencyCode, &a.Category, &a.OriginWalletId, &a.Archived, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("asset %s: %w", assetId, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to get asset: %w", err)
	}
	return &a, nil
}

// GetPrimaryAsset returns the hub's single bridged-fiat asset.
func (s *Service) GetPrimaryAsset(ctx context.Context) (*models.Asset, error) {
	var a models.Asset
	err := s.db.QueryRowContext(ctx, queryGetPrimaryAsset, models.AssetBridgedFiat).
		Scan(&a.Id, &a.Name, &a.CurrencyCode, &a.Category, &a.OriginWalletId, &a.Archived, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("primary asset: %w", store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to get primary asset: %w", err)
	}
	return &a, nil
}

func (s *Service) ListAssets(ctx context.Context) ([]models.Asset, error) {
	rows, err := s.db.QueryContext(ctx, queryListAssets)
	if err != nil {
		return nil, fmt.Errorf("unable to list assets: %w", err)
	}
	defer rows.Close()

	var assets []models.Asset
	for rows.Next() {
		var a models.Asset
		if err := rows.Scan(&a.Id, &a.Name, &a.CurrencyCode, &a.Category, &a.OriginWalletId, &a.Archived, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("unable to scan asset: %w", err)
		}
		assets = append(assets, a)
	}
	return assets, rows.Err()
}
