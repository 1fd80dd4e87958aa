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

func (s *Service) CreateWallet(ctx context.Context, params store.CreateWalletParams) (*models.Wallet, error) {
	if params.PublicPEM == "" {
		return nil, store.Validation("public_pem", "public key is required")
	}

	wallet := &models.Wallet{
		Id:            uuid.New().String(),
		Name:          params.Name,
		PublicPEM:     params.PublicPEM,
		PrivatePEMEnc: params.PrivatePEMEnc,
		SourceIP:      params.SourceIP,
	}

	_, err := s.db.ExecContext(ctx, queryInsertWallet,
		wallet.Id, wallet.Name, wallet.PublicPEM, wallet.PrivatePEMEnc, wallet.SourceIP)
	if err != nil {
		return nil, fmt.Errorf("unable to create wallet: %w", err)
	}

	zap.L().Info("Wallet created",
		zap.String("wallet_id", wallet.Id),
		zap.String("name", wallet.Name))
	return wallet, nil
}

func (s *Service) GetWallet(ctx context.Context, walletId string) (*models.Wallet, error) {
	var w models.Wallet
	err := s.db.QueryRowContext(ctx, queryGetWallet, walletId).
		Scan(&w.Id, &w.Name, &w.PublicPEM, &w.PrivatePEMEnc, &w.SourceIP, &w.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("wallet %s: %w", walletId, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to get wallet: %w", err)
	}
	return &w, nil
}

// GetOrCreateUserWallet provisions an end-user wallet idempotently, keyed by
// email plus the submitted public key. A repeated call with the same pair
// returns the existing wallet; the same email with a different key is rejected.
func (s *Service) GetOrCreateUserWallet(ctx context.Context, email, publicPEM, sourceIP string) (*models.Wallet, bool, error) {
	if email == "" {
		return nil, false, store.Validation("email", "email is required")
	}
	if publicPEM == "" {
		return nil, false, store.Validation("public_pem", "public key is required")
	}

	var existing models.Wallet
	err := s.db.QueryRowContext(ctx, queryGetWalletByName, email).
		Scan(&existing.Id, &existing.Name, &existing.PublicPEM, &existing.PrivatePEMEnc, &existing.SourceIP, &existing.CreatedAt)
	if err == nil {
		if existing.PublicPEM != publicPEM {
			return nil, false, store.Validation("public_pem", "email already registered with a different key")
		}
		return &existing, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("unable to look up wallet: %w", err)
	}

	wallet, err := s.CreateWallet(ctx, store.CreateWalletParams{
		Name:      email,
		PublicPEM: publicPEM,
		SourceIP:  sourceIP,
	})
	if err != nil {
		return nil, false, err
	}
	return wallet, true, nil
}
