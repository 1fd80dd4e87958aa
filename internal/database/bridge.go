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
	"strings"

	"ledger-hub-go/internal/models"
	"ledger-hub-go/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CreateBridgePayment records an inbound checkout in pending state. The
// external reference is unique, so the same provider event can only ever
// be registered once.
func (s *Service) CreateBridgePayment(ctx context.Context, externalRef, walletId, assetId string, amount int64) (*models.BridgePayment, error) {
	if externalRef == "" {
		return nil, store.Validation("external_ref", "external reference is required")
	}
	if amount <= 0 {
		return nil, store.Validation("amount", "amount must be positive")
	}

	payment := &models.BridgePayment{
		Id:          uuid.New().String(),
		ExternalRef: externalRef,
		WalletId:    walletId,
		AssetId:     assetId,
		Amount:      amount,
		Status:      models.BridgePending,
	}

	_, err := s.db.ExecContext(ctx, queryInsertBridgePayment,
		payment.Id, payment.ExternalRef, payment.WalletId, payment.AssetId, payment.Amount, payment.Status)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, fmt.Errorf("bridge payment %s: %w", externalRef, store.ErrDuplicateTransaction)
		}
		return nil, fmt.Errorf("unable to create bridge payment: %w", err)
	}

	zap.L().Info("Bridge payment registered",
		zap.String("external_ref", externalRef),
		zap.Int64("amount", amount))
	return payment, nil
}

func (s *Service) GetBridgePayment(ctx context.Context, externalRef string) (*models.BridgePayment, error) {
	var p models.BridgePayment
	err := s.db.QueryRowContext(ctx, queryGetBridgePayment, externalRef).
		Scan(&p.Id, &p.ExternalRef, &p.WalletId, &p.AssetId, &p.Amount, &p.Refunded, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("bridge payment %s: %w", externalRef, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to get bridge payment: %w", err)
	}
	return &p, nil
}

// ClaimBridgePayment moves a pending or errored payment to in_progress.
// It returns false when another confirmation already holds the claim or
// the payment has settled.
func (s *Service) ClaimBridgePayment(ctx context.Context, externalRef string) (bool, error) {
	res, err := s.db.ExecContext(ctx, queryClaimBridgePayment, externalRef)
	if err != nil {
		return false, fmt.Errorf("unable to claim bridge payment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("unable to read claim result: %w", err)
	}
	return affected == 1, nil
}

func (s *Service) SettleBridgePayment(ctx context.Context, externalRef, status string) error {
	if status != models.BridgePaid && status != models.BridgeError && status != models.BridgePending {
		return store.Validation("status", fmt.Sprintf("invalid settlement status %q", status))
	}
	if _, err := s.db.ExecContext(ctx, querySettleBridgePayment, status, externalRef); err != nil {
		return fmt.Errorf("unable to settle bridge payment: %w", err)
	}
	return nil
}

// ListRefundableBridgePayments returns a wallet's paid payments that still
// carry un-refunded value, newest first.
func (s *Service) ListRefundableBridgePayments(ctx context.Context, walletId string) ([]models.BridgePayment, error) {
	rows, err := s.db.QueryContext(ctx, queryListRefundableBridgePayments, walletId)
	if err != nil {
		return nil, fmt.Errorf("unable to list refundable payments: %w", err)
	}
	defer rows.Close()

	var payments []models.BridgePayment
	for rows.Next() {
		var p models.BridgePayment
		if err := rows.Scan(&p.Id, &p.ExternalRef, &p.WalletId, &p.AssetId, &p.Amount, &p.Refunded, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("unable to scan bridge payment: %w", err)
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// AddBridgeRefundInTx accumulates a refund against a payment inside a
// caller-held transaction, so the counter moves atomically with the ledger
// entry that consumes the credit. The guarded update fails when the refund
// would exceed what was originally paid.
func (s *Service) AddBridgeRefundInTx(ctx context.Context, tx *sql.Tx, bridgePaymentId string, amount int64) error {
	if amount <= 0 {
		return store.Validation("amount", "refund amount must be positive")
	}
	res, err := tx.ExecContext(ctx, queryAddBridgeRefund, amount, bridgePaymentId, amount)
	if err != nil {
		return fmt.Errorf("unable to add bridge refund: %w", err)
	}
	return checkRefundAffected(res, bridgePaymentId, amount)
}

func checkRefundAffected(res sql.Result, bridgePaymentId string, amount int64) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("unable to read refund result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("refund of %d on payment %s: %w", amount, bridgePaymentId, store.ErrBridgeAmountExceeded)
	}
	return nil
}
