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

package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"ledger-hub-go/internal/models"
	"ledger-hub-go/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Engine is the sole writer of transactions and token balances. Every append
// runs as one database transaction: re-read chain head and balances, validate
// against that fresh state, then write, all-or-nothing.
type Engine struct {
	db              *sql.DB
	store           store.HubStore
	primaryWalletId string
}

// NewEngine builds the ledger engine. primaryWalletId is the hub's own wallet,
// the only non-origin wallet allowed to mint the bridged-fiat asset.
func NewEngine(db *sql.DB, st store.HubStore, primaryWalletId string) *Engine {
	return &Engine{db: db, store: st, primaryWalletId: primaryWalletId}
}

// AppendParams describes one ledger entry to append.
type AppendParams struct {
	SenderId        string
	ReceiverId      string
	AssetId         string
	Amount          int64
	Action          string
	SourceIP        string
	CardId          string
	PrimaryCardId   string
	BridgePaymentId string
	Comment         string
}

// Append validates and records a single transaction, updating the cached
// token balances it touches.
func (e *Engine) Append(ctx context.Context, params AppendParams) (*models.Transaction, error) {
	return e.AppendWithSideEffect(ctx, params, nil)
}

// AppendWithSideEffect appends a transaction and, when sideEffect is
// non-nil, runs it inside the same database transaction. If the side
// effect fails, the ledger entry and its balance updates roll back with
// it, so callers can keep adjacent bookkeeping in step with the chain.
func (e *Engine) AppendWithSideEffect(ctx context.Context, params AppendParams, sideEffect func(tx *sql.Tx) error) (*models.Transaction, error) {
	if !KnownAction(params.Action) {
		return nil, store.Validation("action", fmt.Sprintf("unknown action %q", params.Action))
	}
	if params.Amount < 0 {
		return nil, store.Validation("amount", "amount must not be negative")
	}
	if params.Amount == 0 && requiresPositiveAmount(params.Action) {
		return nil, store.Validation("amount", fmt.Sprintf("%s requires a positive amount", params.Action))
	}
	if params.SenderId == "" || params.ReceiverId == "" {
		return nil, store.Validation("wallet", "sender and receiver are required")
	}

	asset, err := e.store.GetAsset(ctx, params.AssetId)
	if err != nil {
		return nil, err
	}

	if err := e.checkActionRules(ctx, params, asset); err != nil {
		return nil, err
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("unable to begin ledger transaction: %w", err)
	}
	defer tx.Rollback()

	entry, err := e.appendInTx(ctx, tx, params)
	if err != nil {
		return nil, err
	}
	if sideEffect != nil {
		if err := sideEffect(tx); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("unable to commit ledger transaction: %w", err)
	}

	zap.L().Info("Transaction appended",
		zap.String("transaction_id", entry.Id),
		zap.String("action", entry.Action),
		zap.String("asset_id", entry.AssetId),
		zap.Int64("amount", entry.Amount))
	return entry, nil
}

// checkActionRules enforces the per-action legality table for the
// sender/receiver pair. Balance and chain preconditions are re-checked
// inside the database transaction.
func (e *Engine) checkActionRules(ctx context.Context, params AppendParams, asset *models.Asset) error {
	switch params.Action {
	case ActionFirst:
		if params.SenderId != params.ReceiverId || params.SenderId != asset.OriginWalletId {
			return fmt.Errorf("FIRST must anchor at the asset origin wallet: %w", store.ErrActionNotPermitted)
		}
		if params.Amount != 0 {
			return store.Validation("amount", "FIRST carries no value")
		}
	case ActionCreation:
		if params.SenderId != params.ReceiverId {
			return fmt.Errorf("CREATION sender and receiver must match: %w", store.ErrActionNotPermitted)
		}
		minter := params.SenderId == asset.OriginWalletId ||
			(asset.Category == models.AssetBridgedFiat && params.SenderId == e.primaryWalletId)
		if !minter {
			return fmt.Errorf("wallet %s may not mint asset %s: %w",
				params.SenderId, asset.Id, store.ErrActionNotPermitted)
		}
	case ActionFusion:
		return fmt.Errorf("FUSION entries are appended via Fuse: %w", store.ErrActionNotPermitted)
	default:
		if params.SenderId == params.ReceiverId {
			return fmt.Errorf("%s requires distinct sender and receiver: %w",
				params.Action, store.ErrActionNotPermitted)
		}
	}

	switch params.Action {
	case ActionSale:
		if params.ReceiverId != asset.OriginWalletId {
			shared, err := e.store.SharesFederation(ctx, asset.Id, params.ReceiverId)
			if err != nil {
				return err
			}
			if !shared {
				return fmt.Errorf("receiver %s is not an accepted authority for asset %s: %w",
					params.ReceiverId, asset.Id, store.ErrActionNotPermitted)
			}
		}
	case ActionSubscribe:
		if asset.Category != models.AssetSubscription {
			return fmt.Errorf("SUBSCRIBE requires a subscription asset: %w", store.ErrActionNotPermitted)
		}
	case ActionBadge:
		if asset.Category != models.AssetBadge {
			return fmt.Errorf("BADGE requires a badge asset: %w", store.ErrActionNotPermitted)
		}
	case ActionDeposit:
		if _, err := e.store.GetPlaceByWallet(ctx, params.SenderId); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("DEPOSIT sender must be a place wallet: %w", store.ErrActionNotPermitted)
			}
			return err
		}
	}
	return nil
}

func (e *Engine) appendInTx(ctx context.Context, tx *sql.Tx, params AppendParams) (*models.Transaction, error) {
	var (
		headHash    string
		headCreated time.Time
	)
	err := tx.QueryRowContext(ctx, queryChainHead, params.AssetId).Scan(&headHash, &headCreated)
	hasHead := err == nil
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("unable to read chain head: %w", err)
	}

	if params.Action == ActionFirst {
		if hasHead {
			return nil, fmt.Errorf("asset %s already anchored: %w", params.AssetId, store.ErrDuplicateTransaction)
		}
	} else if !hasHead {
		return nil, &store.IntegrityError{AssetId: params.AssetId, Detail: "chain has no FIRST anchor"}
	}

	if params.Action == ActionRefill {
		var creations int
		if err := tx.QueryRowContext(ctx, queryCountAction, params.AssetId, ActionCreation).Scan(&creations); err != nil {
			return nil, fmt.Errorf("unable to count creations: %w", err)
		}
		if creations == 0 {
			return nil, fmt.Errorf("REFILL on asset %s: %w", params.AssetId, store.ErrMissingCreation)
		}
	}

	// Timestamps are strictly increasing per chain so the head is total-ordered.
	now := time.Now().UTC()
	if hasHead && !now.After(headCreated) {
		now = headCreated.Add(time.Microsecond)
	}

	entry := &models.Transaction{
		Id:              uuid.New().String(),
		PreviousHash:    headHash,
		SenderId:        params.SenderId,
		ReceiverId:      params.ReceiverId,
		AssetId:         params.AssetId,
		Amount:          params.Amount,
		Action:          params.Action,
		SourceIP:        params.SourceIP,
		CardId:          params.CardId,
		PrimaryCardId:   params.PrimaryCardId,
		BridgePaymentId: params.BridgePaymentId,
		Comment:         params.Comment,
		CreatedAt:       now,
	}
	entry.Hash = ComputeHash(entry)

	if debitsSender(params.Action) {
		if err := e.adjustToken(ctx, tx, params.SenderId, params.AssetId, -params.Amount, entry.Id); err != nil {
			return nil, err
		}
	}
	if params.Action != ActionFirst {
		if err := e.adjustToken(ctx, tx, params.ReceiverId, params.AssetId, params.Amount, entry.Id); err != nil {
			return nil, err
		}
	}

	_, err = tx.ExecContext(ctx, queryInsertTransaction,
		entry.Id, entry.Hash, entry.PreviousHash, entry.SenderId, entry.ReceiverId, entry.AssetId,
		entry.Amount, entry.Action, entry.SourceIP, entry.CardId, entry.PrimaryCardId,
		entry.BridgePaymentId, entry.Comment, entry.CreatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, fmt.Errorf("transaction already recorded: %w", store.ErrDuplicateTransaction)
		}
		return nil, fmt.Errorf("unable to insert transaction: %w", err)
	}
	return entry, nil
}

// adjustToken applies a signed delta to one (wallet, asset) token under the
// version guard. A missing row is created lazily; insufficient balance and
// concurrent writers both fail the whole append.
func (e *Engine) adjustToken(ctx context.Context, tx *sql.Tx, walletId, assetId string, delta int64, transactionId string) error {
	var (
		tokenId string
		value   int64
		version int64
	)
	err := tx.QueryRowContext(ctx, queryGetToken, walletId, assetId).Scan(&tokenId, &value, &version)
	if errors.Is(err, sql.ErrNoRows) {
		if delta < 0 {
			return fmt.Errorf("wallet %s holds no %s: %w", walletId, assetId, store.ErrInsufficientBalance)
		}
		_, err = tx.ExecContext(ctx, queryInsertToken, uuid.New().String(), walletId, assetId, delta, transactionId)
		if err != nil {
			return fmt.Errorf("unable to create token: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("unable to read token: %w", err)
	}

	next := value + delta
	if next < 0 {
		return fmt.Errorf("wallet %s has %d of asset %s, needs %d: %w",
			walletId, value, assetId, -delta, store.ErrInsufficientBalance)
	}

	res, err := tx.ExecContext(ctx, queryUpdateToken, next, transactionId, tokenId, version)
	if err != nil {
		return fmt.Errorf("unable to update token: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("unable to read token update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("token %s changed underneath us: %w", tokenId, store.ErrConcurrentModification)
	}
	return nil
}

// Fuse merges an ephemeral card wallet into a user wallet, moving every
// remaining balance with one FUSION entry per asset. All moves commit
// together or not at all.
func (e *Engine) Fuse(ctx context.Context, cardWalletId, userWalletId, cardId, sourceIP string) ([]models.Transaction, error) {
	if cardWalletId == userWalletId {
		return nil, fmt.Errorf("FUSION requires distinct wallets: %w", store.ErrActionNotPermitted)
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("unable to begin fusion: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, queryListWalletTokens, cardWalletId)
	if err != nil {
		return nil, fmt.Errorf("unable to list card wallet tokens: %w", err)
	}
	type holding struct {
		assetId string
		value   int64
	}
	var holdings []holding
	for rows.Next() {
		var h holding
		if err := rows.Scan(&h.assetId, &h.value); err != nil {
			rows.Close()
			return nil, fmt.Errorf("unable to scan token: %w", err)
		}
		holdings = append(holdings, h)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var entries []models.Transaction
	for _, h := range holdings {
		entry, err := e.appendInTx(ctx, tx, AppendParams{
			SenderId:   cardWalletId,
			ReceiverId: userWalletId,
			AssetId:    h.assetId,
			Amount:     h.value,
			Action:     ActionFusion,
			CardId:     cardId,
			SourceIP:   sourceIP,
		})
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("unable to commit fusion: %w", err)
	}

	zap.L().Info("Wallet fused",
		zap.String("card_wallet_id", cardWalletId),
		zap.String("user_wallet_id", userWalletId),
		zap.Int("assets_moved", len(entries)))
	return entries, nil
}

// VerifyChain walks an asset's chain oldest first, recomputing every digest
// and checking each previous-hash link back to the FIRST anchor.
func (e *Engine) VerifyChain(ctx context.Context, assetId string) error {
	rows, err := e.db.QueryContext(ctx, queryChainAscending, assetId)
	if err != nil {
		return fmt.Errorf("unable to read chain: %w", err)
	}
	defer rows.Close()

	var (
		prevHash string
		count    int
	)
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.Id, &t.Hash, &t.PreviousHash, &t.SenderId, &t.ReceiverId, &t.AssetId,
			&t.Amount, &t.Action, &t.SourceIP, &t.CardId, &t.PrimaryCardId,
			&t.BridgePaymentId, &t.Comment, &t.CreatedAt); err != nil {
			return fmt.Errorf("unable to scan transaction: %w", err)
		}
		count++
		if count == 1 && t.Action != ActionFirst {
			return &store.IntegrityError{AssetId: assetId, TransactionId: t.Id, Detail: "chain does not start at FIRST"}
		}
		if t.PreviousHash != prevHash {
			return &store.IntegrityError{AssetId: assetId, TransactionId: t.Id,
				Detail: fmt.Sprintf("previous hash %q does not match head %q", t.PreviousHash, prevHash)}
		}
		if !VerifyHash(&t) {
			return &store.IntegrityError{AssetId: assetId, TransactionId: t.Id, Detail: "stored hash does not match recomputed digest"}
		}
		prevHash = t.Hash
	}
	return rows.Err()
}

// ReconcileToken recomputes a wallet's balance for one asset from the full
// transaction history and compares it to the cached token value. Corruption
// is reported, never repaired.
func (e *Engine) ReconcileToken(ctx context.Context, walletId, assetId string) (int64, error) {
	var credits, debits int64
	if err := e.db.QueryRowContext(ctx, querySumCredits, walletId, assetId).Scan(&credits); err != nil {
		return 0, fmt.Errorf("unable to sum credits: %w", err)
	}
	if err := e.db.QueryRowContext(ctx, querySumDebits, walletId, assetId).Scan(&debits); err != nil {
		return 0, fmt.Errorf("unable to sum debits: %w", err)
	}
	computed := credits - debits

	cached, err := e.store.GetTokenValue(ctx, walletId, assetId)
	if err != nil {
		return 0, err
	}
	if cached != computed {
		return computed, &store.IntegrityError{AssetId: assetId,
			Detail: fmt.Sprintf("wallet %s cached balance %d, ledger says %d", walletId, cached, computed)}
	}
	return computed, nil
}
