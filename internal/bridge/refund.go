package bridge

import (
	"context"
	"database/sql"
	"fmt"

	"ledger-hub-go/internal/ledger"
	"ledger-hub-go/internal/models"
	"ledger-hub-go/internal/store"

	"go.uber.org/zap"
)

// Refund reverses bridged-fiat value out of a wallet. Historical credits
// are consumed newest first, with one REFUND ledger entry and one provider
// refund call per credit, until the requested amount is covered.
func (s *Service) Refund(ctx context.Context, walletId string, amount int64) ([]models.Transaction, error) {
	if amount <= 0 {
		return nil, store.Validation("amount", "refund amount must be positive")
	}

	primary, err := s.store.GetPrimaryAsset(ctx)
	if err != nil {
		return nil, err
	}
	balance, err := s.store.GetTokenValue(ctx, walletId, primary.Id)
	if err != nil {
		return nil, err
	}
	if balance < amount {
		return nil, fmt.Errorf("wallet %s holds %d, refund wants %d: %w",
			walletId, balance, amount, store.ErrInsufficientBalance)
	}

	credits, err := s.store.ListRefundableBridgePayments(ctx, walletId)
	if err != nil {
		return nil, err
	}
	var available int64
	for _, c := range credits {
		available += c.Amount - c.Refunded
	}
	if available < amount {
		return nil, fmt.Errorf("wallet %s has %d refundable, refund wants %d: %w",
			walletId, available, amount, store.ErrBridgeAmountExceeded)
	}

	var (
		entries   []models.Transaction
		remaining = amount
	)
	for _, credit := range credits {
		if remaining == 0 {
			break
		}
		take := credit.Amount - credit.Refunded
		if take > remaining {
			take = remaining
		}

		// The refunded counter and the REFUND entry commit together; a
		// failed append must not leave refundable credit consumed.
		creditId := credit.Id
		entry, err := s.engine.AppendWithSideEffect(ctx, ledger.AppendParams{
			SenderId:   walletId,
			ReceiverId: s.primaryWalletId,
			AssetId:    primary.Id,
			Amount:     take,
			Action:     ledger.ActionRefund,
			Comment:    "refund against " + credit.ExternalRef,
		}, func(tx *sql.Tx) error {
			return s.store.AddBridgeRefundInTx(ctx, tx, creditId, take)
		})
		if err != nil {
			return entries, err
		}
		entries = append(entries, *entry)

		if err := s.provider.RefundCheckout(ctx, credit.ExternalRef, take); err != nil {
			// The ledger move is committed; the provider call is retried
			// out of band by the operator.
			zap.L().Error("Provider refund failed after ledger entry",
				zap.String("external_ref", credit.ExternalRef),
				zap.Int64("amount", take),
				zap.Error(err))
		}
		remaining -= take
	}

	zap.L().Info("Refund completed",
		zap.String("wallet_id", walletId),
		zap.Int64("amount", amount),
		zap.Int("credits_consumed", len(entries)))
	return entries, nil
}
