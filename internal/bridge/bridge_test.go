package bridge

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"ledger-hub-go/internal/database"
	"ledger-hub-go/internal/ledger"
	"ledger-hub-go/internal/models"
	"ledger-hub-go/internal/store"
)

type fakeProvider struct {
	checkouts map[string]*Checkout
	refunds   []int64
	fetches   int
}

func (f *fakeProvider) FetchCheckout(_ context.Context, externalRef string) (*Checkout, error) {
	f.fetches++
	c, ok := f.checkouts[externalRef]
	if !ok {
		return nil, fmt.Errorf("unknown checkout %s", externalRef)
	}
	return c, nil
}

func (f *fakeProvider) RefundCheckout(_ context.Context, _ string, amount int64) error {
	f.refunds = append(f.refunds, amount)
	return nil
}

type bridgeFixture struct {
	service    *Service
	db         *database.Service
	engine     *ledger.Engine
	provider   *fakeProvider
	hubWallet  *models.Wallet
	userWallet *models.Wallet
	asset      *models.Asset
}

func setupBridgeTest(t *testing.T) (*bridgeFixture, func()) {
	t.Helper()

	db, err := database.NewInMemoryService()
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	ctx := context.Background()

	hub, err := db.CreateWallet(ctx, store.CreateWalletParams{Name: "hub", PublicPEM: "hub-pem"})
	if err != nil {
		t.Fatalf("Failed to create hub wallet: %v", err)
	}
	user, err := db.CreateWallet(ctx, store.CreateWalletParams{Name: "user@example.com", PublicPEM: "user-pem"})
	if err != nil {
		t.Fatalf("Failed to create user wallet: %v", err)
	}
	asset, err := db.CreateAsset(ctx, store.CreateAssetParams{
		Name:           "Bridged EUR",
		CurrencyCode:   "FEUR",
		Category:       models.AssetBridgedFiat,
		OriginWalletId: hub.Id,
	})
	if err != nil {
		t.Fatalf("Failed to create asset: %v", err)
	}

	engine := ledger.NewEngine(db.DB(), db, hub.Id)
	if _, err := engine.Append(ctx, ledger.AppendParams{
		SenderId: hub.Id, ReceiverId: hub.Id, AssetId: asset.Id, Action: ledger.ActionFirst,
	}); err != nil {
		t.Fatalf("Failed to anchor chain: %v", err)
	}

	provider := &fakeProvider{checkouts: map[string]*Checkout{}}
	service := NewService(db, engine, provider, hub.Id, models.BridgeConfig{
		ConfirmWait:    200 * time.Millisecond,
		ConfirmRecheck: 20 * time.Millisecond,
	})

	fixture := &bridgeFixture{
		service:    service,
		db:         db,
		engine:     engine,
		provider:   provider,
		hubWallet:  hub,
		userWallet: user,
		asset:      asset,
	}
	return fixture, func() { db.Close() }
}

func TestConfirmCheckout_RecordsExactlyOnce(t *testing.T) {
	fixture, cleanup := setupBridgeTest(t)
	defer cleanup()
	ctx := context.Background()

	fixture.provider.checkouts["cs_1"] = &Checkout{
		ExternalRef: "cs_1",
		WalletId:    fixture.userWallet.Id,
		AssetId:     fixture.asset.Id,
		Amount:      2500,
		Paid:        true,
	}

	result, err := fixture.service.ConfirmCheckout(ctx, "cs_1", "")
	if err != nil {
		t.Fatalf("ConfirmCheckout failed: %v", err)
	}
	if result.AlreadyRecorded {
		t.Error("First confirmation reported already recorded")
	}
	if result.TransactionHash == "" {
		t.Error("Expected a transaction hash")
	}

	balance, _ := fixture.db.GetTokenValue(ctx, fixture.userWallet.Id, fixture.asset.Id)
	if balance != 2500 {
		t.Errorf("Expected balance 2500, got %d", balance)
	}

	// Replayed webhook: same reference, no new ledger entries.
	replay, err := fixture.service.ConfirmCheckout(ctx, "cs_1", "")
	if err != nil {
		t.Fatalf("Replayed ConfirmCheckout failed: %v", err)
	}
	if !replay.AlreadyRecorded {
		t.Error("Replay did not report already recorded")
	}
	if replay.TransactionHash != result.TransactionHash {
		t.Errorf("Replay observed hash %s, want %s", replay.TransactionHash, result.TransactionHash)
	}

	balance, _ = fixture.db.GetTokenValue(ctx, fixture.userWallet.Id, fixture.asset.Id)
	if balance != 2500 {
		t.Errorf("Balance changed on replay: %d", balance)
	}

	if err := fixture.engine.VerifyChain(ctx, fixture.asset.Id); err != nil {
		t.Errorf("VerifyChain failed: %v", err)
	}
}

func TestConfirmCheckout_WebhookThenPoll(t *testing.T) {
	fixture, cleanup := setupBridgeTest(t)
	defer cleanup()
	ctx := context.Background()

	// The webhook path registers the payment before confirming.
	if _, err := fixture.db.CreateBridgePayment(ctx, "cs_2", fixture.userWallet.Id, fixture.asset.Id, 1000); err != nil {
		t.Fatalf("CreateBridgePayment failed: %v", err)
	}
	fixture.provider.checkouts["cs_2"] = &Checkout{
		ExternalRef: "cs_2",
		WalletId:    fixture.userWallet.Id,
		AssetId:     fixture.asset.Id,
		Amount:      1000,
		Paid:        true,
	}

	result, err := fixture.service.ConfirmCheckout(ctx, "cs_2", "")
	if err != nil {
		t.Fatalf("ConfirmCheckout failed: %v", err)
	}
	if result.Status != models.BridgePaid {
		t.Errorf("Expected paid status, got %s", result.Status)
	}

	payment, err := fixture.db.GetBridgePayment(ctx, "cs_2")
	if err != nil {
		t.Fatalf("GetBridgePayment failed: %v", err)
	}
	if payment.Status != models.BridgePaid {
		t.Errorf("Expected payment settled paid, got %s", payment.Status)
	}
}

func TestConfirmCheckout_UnpaidIsRejected(t *testing.T) {
	fixture, cleanup := setupBridgeTest(t)
	defer cleanup()

	fixture.provider.checkouts["cs_3"] = &Checkout{
		ExternalRef: "cs_3",
		WalletId:    fixture.userWallet.Id,
		AssetId:     fixture.asset.Id,
		Amount:      1000,
		Paid:        false,
	}

	_, err := fixture.service.ConfirmCheckout(context.Background(), "cs_3", "")
	if !errors.Is(err, ErrCheckoutUnpaid) {
		t.Errorf("Expected unpaid error, got %v", err)
	}
}

func TestConfirmCheckout_AmountMismatchErrors(t *testing.T) {
	fixture, cleanup := setupBridgeTest(t)
	defer cleanup()
	ctx := context.Background()

	if _, err := fixture.db.CreateBridgePayment(ctx, "cs_4", fixture.userWallet.Id, fixture.asset.Id, 1000); err != nil {
		t.Fatalf("CreateBridgePayment failed: %v", err)
	}
	fixture.provider.checkouts["cs_4"] = &Checkout{
		ExternalRef: "cs_4",
		WalletId:    fixture.userWallet.Id,
		AssetId:     fixture.asset.Id,
		Amount:      999,
		Paid:        true,
	}

	if _, err := fixture.service.ConfirmCheckout(ctx, "cs_4", ""); err == nil {
		t.Fatal("Expected amount mismatch error")
	}

	payment, err := fixture.db.GetBridgePayment(ctx, "cs_4")
	if err != nil {
		t.Fatalf("GetBridgePayment failed: %v", err)
	}
	if payment.Status != models.BridgeError {
		t.Errorf("Expected errored payment, got %s", payment.Status)
	}
}

func TestConfirmCheckout_RejectsForeignWallet(t *testing.T) {
	fixture, cleanup := setupBridgeTest(t)
	defer cleanup()
	ctx := context.Background()

	if _, err := fixture.db.CreateBridgePayment(ctx, "cs_6", fixture.userWallet.Id, fixture.asset.Id, 1000); err != nil {
		t.Fatalf("CreateBridgePayment failed: %v", err)
	}
	fixture.provider.checkouts["cs_6"] = &Checkout{
		ExternalRef: "cs_6",
		WalletId:    fixture.userWallet.Id,
		AssetId:     fixture.asset.Id,
		Amount:      1000,
		Paid:        true,
	}

	_, err := fixture.service.ConfirmCheckout(ctx, "cs_6", fixture.hubWallet.Id)
	var validation *store.ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("Expected validation error for foreign wallet, got %v", err)
	}

	// The mismatch was caught before anything was written.
	payment, err := fixture.db.GetBridgePayment(ctx, "cs_6")
	if err != nil {
		t.Fatalf("GetBridgePayment failed: %v", err)
	}
	if payment.Status != models.BridgePending {
		t.Errorf("Expected payment still pending, got %s", payment.Status)
	}
	balance, _ := fixture.db.GetTokenValue(ctx, fixture.userWallet.Id, fixture.asset.Id)
	if balance != 0 {
		t.Errorf("Expected no credit, got balance %d", balance)
	}

	// The rightful wallet still confirms.
	if _, err := fixture.service.ConfirmCheckout(ctx, "cs_6", fixture.userWallet.Id); err != nil {
		t.Fatalf("ConfirmCheckout for rightful wallet failed: %v", err)
	}
}

func TestRefund_ConsumesCreditsNewestFirst(t *testing.T) {
	fixture, cleanup := setupBridgeTest(t)
	defer cleanup()
	ctx := context.Background()

	for i, amount := range []int64{1000, 500} {
		ref := fmt.Sprintf("cs_refund_%d", i)
		fixture.provider.checkouts[ref] = &Checkout{
			ExternalRef: ref,
			WalletId:    fixture.userWallet.Id,
			AssetId:     fixture.asset.Id,
			Amount:      amount,
			Paid:        true,
		}
		if _, err := fixture.service.ConfirmCheckout(ctx, ref, ""); err != nil {
			t.Fatalf("ConfirmCheckout %s failed: %v", ref, err)
		}
	}

	entries, err := fixture.service.Refund(ctx, fixture.userWallet.Id, 600)
	if err != nil {
		t.Fatalf("Refund failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected two refund entries, got %d", len(entries))
	}
	// Newest credit (500) drains first, the older one covers the rest.
	if entries[0].Amount != 500 || entries[1].Amount != 100 {
		t.Errorf("Expected refund amounts [500, 100], got [%d, %d]", entries[0].Amount, entries[1].Amount)
	}

	balance, _ := fixture.db.GetTokenValue(ctx, fixture.userWallet.Id, fixture.asset.Id)
	if balance != 900 {
		t.Errorf("Expected balance 900 after refund, got %d", balance)
	}

	newer, _ := fixture.db.GetBridgePayment(ctx, "cs_refund_1")
	if newer.Refunded != 500 {
		t.Errorf("Expected newest credit fully refunded, got %d", newer.Refunded)
	}
	older, _ := fixture.db.GetBridgePayment(ctx, "cs_refund_0")
	if older.Refunded != 100 {
		t.Errorf("Expected 100 refunded on older credit, got %d", older.Refunded)
	}
}

func TestRefund_FailedEntryLeavesCreditIntact(t *testing.T) {
	fixture, cleanup := setupBridgeTest(t)
	defer cleanup()
	ctx := context.Background()

	fixture.provider.checkouts["cs_7"] = &Checkout{
		ExternalRef: "cs_7",
		WalletId:    fixture.userWallet.Id,
		AssetId:     fixture.asset.Id,
		Amount:      800,
		Paid:        true,
	}
	if _, err := fixture.service.ConfirmCheckout(ctx, "cs_7", ""); err != nil {
		t.Fatalf("ConfirmCheckout failed: %v", err)
	}
	payment, err := fixture.db.GetBridgePayment(ctx, "cs_7")
	if err != nil {
		t.Fatalf("GetBridgePayment failed: %v", err)
	}

	// Consuming more than the credit holds fails inside the ledger
	// transaction; neither the REFUND entry nor the counter survives.
	_, err = fixture.engine.AppendWithSideEffect(ctx, ledger.AppendParams{
		SenderId:   fixture.userWallet.Id,
		ReceiverId: fixture.hubWallet.Id,
		AssetId:    fixture.asset.Id,
		Amount:     400,
		Action:     ledger.ActionRefund,
	}, func(tx *sql.Tx) error {
		return fixture.db.AddBridgeRefundInTx(ctx, tx, payment.Id, 801)
	})
	if !errors.Is(err, store.ErrBridgeAmountExceeded) {
		t.Fatalf("Expected bridge amount exceeded, got %v", err)
	}

	after, err := fixture.db.GetBridgePayment(ctx, "cs_7")
	if err != nil {
		t.Fatalf("GetBridgePayment failed: %v", err)
	}
	if after.Refunded != 0 {
		t.Errorf("Refunded counter moved despite rollback: %d", after.Refunded)
	}
	balance, _ := fixture.db.GetTokenValue(ctx, fixture.userWallet.Id, fixture.asset.Id)
	if balance != 800 {
		t.Errorf("Expected balance 800 after rollback, got %d", balance)
	}

	// The full credit is still refundable.
	entries, err := fixture.service.Refund(ctx, fixture.userWallet.Id, 800)
	if err != nil {
		t.Fatalf("Refund failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Amount != 800 {
		t.Fatalf("Expected one full refund entry, got %+v", entries)
	}
}

func TestRefund_ExceedingCreditsRejected(t *testing.T) {
	fixture, cleanup := setupBridgeTest(t)
	defer cleanup()
	ctx := context.Background()

	fixture.provider.checkouts["cs_5"] = &Checkout{
		ExternalRef: "cs_5",
		WalletId:    fixture.userWallet.Id,
		AssetId:     fixture.asset.Id,
		Amount:      300,
		Paid:        true,
	}
	if _, err := fixture.service.ConfirmCheckout(ctx, "cs_5", ""); err != nil {
		t.Fatalf("ConfirmCheckout failed: %v", err)
	}

	if _, err := fixture.service.Refund(ctx, fixture.userWallet.Id, 400); !errors.Is(err, store.ErrInsufficientBalance) {
		t.Errorf("Expected insufficient balance, got %v", err)
	}
}

func TestMinorUnits(t *testing.T) {
	cases := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"25.00", 2500, false},
		{"0.01", 1, false},
		{"1234", 123400, false},
		{"10.005", 0, true},
		{"not-a-number", 0, true},
	}
	for _, c := range cases {
		got, err := MinorUnits(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("MinorUnits(%q): expected error", c.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("MinorUnits(%q) failed: %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("MinorUnits(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}
