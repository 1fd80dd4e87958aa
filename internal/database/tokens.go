package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ledger-hub-go/internal/models"
	"ledger-hub-go/internal/store"
)

// GetTokenValue returns the cached balance for a wallet/asset pair, or zero
// when the wallet has never held the asset.
func (s *Service) GetTokenValue(ctx context.Context, walletId, assetId string) (int64, error) {
	var value int64
	err := s.db.QueryRowContext(ctx, queryGetTokenValue, walletId, assetId).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("unable to get token value: %w", err)
	}
	return value, nil
}

func (s *Service) ListWalletBalances(ctx context.Context, walletId string) ([]models.BalanceEntry, error) {
	rows, err := s.db.QueryContext(ctx, queryListWalletBalances, walletId)
	if err != nil {
		return nil, fmt.Errorf("unable to list balances: %w", err)
	}
	defer rows.Close()

	var entries []models.BalanceEntry
	for rows.Next() {
		var e models.BalanceEntry
		if err := rows.Scan(&e.AssetId, &e.CurrencyCode, &e.Value); err != nil {
			return nil, fmt.Errorf("unable to scan balance: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Service) GetTransactionByHash(ctx context.Context, hash string) (*models.Transaction, error) {
	var t models.Transaction
	err := s.db.QueryRowContext(ctx, queryGetTransactionByHash, hash).
		Scan(&t.Id, &t.Hash, &t.PreviousHash, &t.SenderId, &t.ReceiverId, &t.AssetId,
			&t.Amount, &t.Action, &t.SourceIP, &t.CardId, &t.PrimaryCardId,
			&t.BridgePaymentId, &t.Comment, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transaction %s: %w", hash, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to get transaction: %w", err)
	}
	return &t, nil
}

// GetBridgeTransaction returns the ledger entry recorded for a bridge
// payment and action, if any.
func (s *Service) GetBridgeTransaction(ctx context.Context, bridgePaymentId, action string) (*models.Transaction, error) {
	var t models.Transaction
	err := s.db.QueryRowContext(ctx, queryGetBridgeTransaction, bridgePaymentId, action).
		Scan(&t.Id, &t.Hash, &t.PreviousHash, &t.SenderId, &t.ReceiverId, &t.AssetId,
			&t.Amount, &t.Action, &t.SourceIP, &t.CardId, &t.PrimaryCardId,
			&t.BridgePaymentId, &t.Comment, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("bridge transaction %s/%s: %w", bridgePaymentId, action, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to get bridge transaction: %w", err)
	}
	return &t, nil
}

// ListAssetChain returns an asset's transactions newest first.
func (s *Service) ListAssetChain(ctx context.Context, assetId string) ([]models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, queryListAssetChain, assetId)
	if err != nil {
		return nil, fmt.Errorf("unable to list asset chain: %w", err)
	}
	defer rows.Close()

	var txs []models.Transaction
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.Id, &t.Hash, &t.PreviousHash, &t.SenderId, &t.ReceiverId, &t.AssetId,
			&t.Amount, &t.Action, &t.SourceIP, &t.CardId, &t.PrimaryCardId,
			&t.BridgePaymentId, &t.Comment, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("unable to scan transaction: %w", err)
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}
