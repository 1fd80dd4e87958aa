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

package bridge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ledger-hub-go/internal/ledger"
	"ledger-hub-go/internal/models"
	"ledger-hub-go/internal/store"

	"go.uber.org/zap"
)

var ErrCheckoutUnpaid = errors.New("checkout is not paid at the provider")

// ConfirmCheckout records one paid checkout on the ledger exactly once. It
// is safe to call concurrently and repeatedly for the same external
// reference: the bridge payment's status acts as a cooperative lock, and a
// caller that loses the race observes the already-recorded result. A
// non-empty expectedWalletId is checked against the checkout's destination
// before anything is written.
func (s *Service) ConfirmCheckout(ctx context.Context, externalRef, expectedWalletId string) (*models.CheckoutResult, error) {
	payment, err := s.store.GetBridgePayment(ctx, externalRef)
	if errors.Is(err, store.ErrNotFound) {
		payment, err = s.registerFromProvider(ctx, externalRef)
	}
	if err != nil {
		return nil, err
	}
	if expectedWalletId != "" && payment.WalletId != expectedWalletId {
		return nil, store.Validation("wallet", "checkout belongs to another wallet")
	}

	if payment.Status == models.BridgePaid {
		return s.recordedResult(ctx, payment)
	}

	claimed, err := s.store.ClaimBridgePayment(ctx, externalRef)
	if err != nil {
		return nil, err
	}
	if !claimed {
		// Someone else is confirming. Wait a bounded time for them, then
		// validate independently; the ledger's uniqueness guard keeps a
		// duplicate pair impossible either way.
		payment, err = s.awaitSettlement(ctx, externalRef)
		if err != nil {
			return nil, err
		}
		if payment.Status == models.BridgePaid {
			return s.recordedResult(ctx, payment)
		}
	}

	return s.settle(ctx, payment)
}

// registerFromProvider registers a payment first seen through polling. A
// concurrent webhook may win the insert; the loser re-reads.
func (s *Service) registerFromProvider(ctx context.Context, externalRef string) (*models.BridgePayment, error) {
	checkout, err := s.provider.FetchCheckout(ctx, externalRef)
	if err != nil {
		return nil, err
	}
	if !checkout.Paid {
		return nil, fmt.Errorf("checkout %s: %w", externalRef, ErrCheckoutUnpaid)
	}

	payment, err := s.store.CreateBridgePayment(ctx, externalRef, checkout.WalletId, checkout.AssetId, checkout.Amount)
	if errors.Is(err, store.ErrDuplicateTransaction) {
		return s.store.GetBridgePayment(ctx, externalRef)
	}
	return payment, err
}

func (s *Service) awaitSettlement(ctx context.Context, externalRef string) (*models.BridgePayment, error) {
	deadline := time.Now().Add(s.confirmWait)
	for {
		payment, err := s.store.GetBridgePayment(ctx, externalRef)
		if err != nil {
			return nil, err
		}
		if payment.Status != models.BridgeInProgress || time.Now().After(deadline) {
			return payment, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.confirmRecheck):
		}
	}
}

// settle validates the checkout with the provider and writes the
// CREATION/REFILL pair, marking the payment paid.
func (s *Service) settle(ctx context.Context, payment *models.BridgePayment) (*models.CheckoutResult, error) {
	checkout, err := s.provider.FetchCheckout(ctx, payment.ExternalRef)
	if err != nil {
		s.fail(ctx, payment.ExternalRef, err)
		return nil, err
	}
	if !checkout.Paid {
		err := fmt.Errorf("checkout %s: %w", payment.ExternalRef, ErrCheckoutUnpaid)
		s.fail(ctx, payment.ExternalRef, err)
		return nil, err
	}
	if checkout.Amount != payment.Amount {
		err := fmt.Errorf("checkout %s amount %d does not match registered %d",
			payment.ExternalRef, checkout.Amount, payment.Amount)
		s.fail(ctx, payment.ExternalRef, err)
		return nil, err
	}

	refill, err := s.record(ctx, payment)
	if err != nil {
		s.fail(ctx, payment.ExternalRef, err)
		return nil, err
	}

	if err := s.store.SettleBridgePayment(ctx, payment.ExternalRef, models.BridgePaid); err != nil {
		return nil, err
	}

	zap.L().Info("Checkout confirmed",
		zap.String("external_ref", payment.ExternalRef),
		zap.String("wallet_id", payment.WalletId),
		zap.Int64("amount", payment.Amount))

	return &models.CheckoutResult{
		ExternalRef:     payment.ExternalRef,
		Status:          models.BridgePaid,
		WalletId:        payment.WalletId,
		Amount:          payment.Amount,
		TransactionHash: refill.Hash,
	}, nil
}

// record appends the mint and the transfer to the destination wallet. A
// duplicate on either side means another caller already recorded the pair,
// which is not an error.
func (s *Service) record(ctx context.Context, payment *models.BridgePayment) (*models.Transaction, error) {
	_, err := s.engine.Append(ctx, ledger.AppendParams{
		SenderId:        s.primaryWalletId,
		ReceiverId:      s.primaryWalletId,
		AssetId:         payment.AssetId,
		Amount:          payment.Amount,
		Action:          ledger.ActionCreation,
		BridgePaymentId: payment.Id,
	})
	if err != nil && !errors.Is(err, store.ErrDuplicateTransaction) {
		return nil, err
	}

	refill, err := s.engine.Append(ctx, ledger.AppendParams{
		SenderId:        s.primaryWalletId,
		ReceiverId:      payment.WalletId,
		AssetId:         payment.AssetId,
		Amount:          payment.Amount,
		Action:          ledger.ActionRefill,
		BridgePaymentId: payment.Id,
	})
	if errors.Is(err, store.ErrDuplicateTransaction) {
		return s.store.GetBridgeTransaction(ctx, payment.Id, ledger.ActionRefill)
	}
	return refill, err
}

func (s *Service) recordedResult(ctx context.Context, payment *models.BridgePayment) (*models.CheckoutResult, error) {
	result := &models.CheckoutResult{
		ExternalRef:     payment.ExternalRef,
		Status:          payment.Status,
		WalletId:        payment.WalletId,
		Amount:          payment.Amount,
		AlreadyRecorded: true,
	}
	refill, err := s.store.GetBridgeTransaction(ctx, payment.Id, ledger.ActionRefill)
	if err == nil {
		result.TransactionHash = refill.Hash
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	return result, nil
}

func (s *Service) fail(ctx context.Context, externalRef string, cause error) {
	if err := s.store.SettleBridgePayment(ctx, externalRef, models.BridgeError); err != nil {
		zap.L().Error("Failed to mark bridge payment errored",
			zap.String("external_ref", externalRef), zap.Error(err))
		return
	}
	zap.L().Warn("Bridge payment errored",
		zap.String("external_ref", externalRef), zap.Error(cause))
}
