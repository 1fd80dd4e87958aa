package database

import (
	"context"
	"fmt"

	"ledger-hub-go/internal/models"
	"ledger-hub-go/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func (s *Service) CreateFederation(ctx context.Context, name string) (*models.Federation, error) {
	if name == "" {
		return nil, store.Validation("name", "federation name is required")
	}

	fed := &models.Federation{
		Id:   uuid.New().String(),
		Name: name,
	}
	if _, err := s.db.ExecContext(ctx, queryInsertFederation, fed.Id, fed.Name); err != nil {
		return nil, fmt.Errorf("unable to create federation: %w", err)
	}

	zap.L().Info("Federation created",
		zap.String("federation_id", fed.Id),
		zap.String("name", fed.Name))
	return fed, nil
}

func (s *Service) AddAssetToFederation(ctx context.Context, federationId, assetId string) error {
	if _, err := s.db.ExecContext(ctx, queryInsertFederationAsset, federationId, assetId); err != nil {
		return fmt.Errorf("unable to add asset to federation: %w", err)
	}
	return nil
}

func (s *Service) AddPlaceToFederation(ctx context.Context, federationId, placeId string) error {
	if _, err := s.db.ExecContext(ctx, queryInsertFederationPlace, federationId, placeId); err != nil {
		return fmt.Errorf("unable to add place to federation: %w", err)
	}
	return nil
}

// SharesFederation reports whether the asset and the place owning the given
// wallet are members of at least one common federation.
func (s *Service) SharesFederation(ctx context.Context, assetId, placeWalletId string) (bool, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, querySharesFederation, assetId, placeWalletId).Scan(&count); err != nil {
		return false, fmt.Errorf("unable to check federation membership: %w", err)
	}
	return count > 0, nil
}
