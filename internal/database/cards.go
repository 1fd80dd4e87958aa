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

// CreateOrigin returns the existing origin for a name/generation pair, or
// creates one when none exists.
func (s *Service) CreateOrigin(ctx context.Context, name string, generation int) (*models.Origin, error) {
	if name == "" {
		return nil, store.Validation("origin_name", "origin name is required")
	}

	var o models.Origin
	err := s.db.QueryRowContext(ctx, queryGetOrigin, name, generation).
		Scan(&o.Id, &o.Name, &o.Generation, &o.CreatedAt)
	if err == nil {
		return &o, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("unable to look up origin: %w", err)
	}

	origin := &models.Origin{
		Id:         uuid.New().String(),
		Name:       name,
		Generation: generation,
	}
	if _, err := s.db.ExecContext(ctx, queryInsertOrigin, origin.Id, origin.Name, origin.Generation); err != nil {
		return nil, fmt.Errorf("unable to create origin: %w", err)
	}

	zap.L().Info("Origin created",
		zap.String("origin_id", origin.Id),
		zap.String("name", origin.Name),
		zap.Int("generation", origin.Generation))
	return origin, nil
}

// RegisterCard enrolls a physical card under an origin with its own wallet.
func (s *Service) RegisterCard(ctx context.Context, uid, originId, walletId string) (*models.Card, error) {
	if uid == "" {
		return nil, store.Validation("uid", "card uid is required")
	}

	card := &models.Card{
		Id:       uuid.New().String(),
		UID:      uid,
		OriginId: originId,
		WalletId: walletId,
	}
	if _, err := s.db.ExecContext(ctx, queryInsertCard, card.Id, card.UID, card.OriginId, card.WalletId); err != nil {
		return nil, fmt.Errorf("unable to register card %s: %w", uid, err)
	}
	return card, nil
}

func (s *Service) GetCardByUID(ctx context.Context, uid string) (*models.Card, error) {
	var c models.Card
	err := s.db.QueryRowContext(ctx, queryGetCardByUID, uid).
		Scan(&c.Id, &c.UID, &c.OriginId, &c.WalletId, &c.UserWalletId, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("card %s: %w", uid, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to get card: %w", err)
	}
	return &c, nil
}

// BindCardToUser links a card to its owner's primary wallet. A card can
// only be bound once.
func (s *Service) BindCardToUser(ctx context.Context, cardId, userWalletId string) error {
	res, err := s.db.ExecContext(ctx, queryBindCardToUser, userWalletId, cardId)
	if err != nil {
		return fmt.Errorf("unable to bind card: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("unable to read bind result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("card %s already bound: %w", cardId, store.ErrActionNotPermitted)
	}
	return nil
}
