package ledger

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"

	"ledger-hub-go/internal/database"
	"ledger-hub-go/internal/models"
	"ledger-hub-go/internal/store"
)

type engineFixture struct {
	engine      *Engine
	service     *database.Service
	hubWallet   *models.Wallet
	placeWallet *models.Wallet
	userWallet  *models.Wallet
	asset       *models.Asset
}

func setupEngineTest(t *testing.T) (*engineFixture, func()) {
	t.Helper()

	service, err := database.NewInMemoryService()
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	ctx := context.Background()
	hub, err := service.CreateWallet(ctx, store.CreateWalletParams{Name: "hub", PublicPEM: "hub-pem"})
	if err != nil {
		t.Fatalf("Failed to create hub wallet: %v", err)
	}
	place, err := service.CreateWallet(ctx, store.CreateWalletParams{Name: "place", PublicPEM: "place-pem"})
	if err != nil {
		t.Fatalf("Failed to create place wallet: %v", err)
	}
	user, err := service.CreateWallet(ctx, store.CreateWalletParams{Name: "user@example.com", PublicPEM: "user-pem"})
	if err != nil {
		t.Fatalf("Failed to create user wallet: %v", err)
	}

	asset, err := service.CreateAsset(ctx, store.CreateAssetParams{
		Name:           "EUR-LOCAL",
		CurrencyCode:   "EUL",
		Category:       models.AssetLocalFiat,
		OriginWalletId: place.Id,
	})
	if err != nil {
		t.Fatalf("Failed to create asset: %v", err)
	}

	fixture := &engineFixture{
		engine:      NewEngine(service.DB(), service, hub.Id),
		service:     service,
		hubWallet:   hub,
		placeWallet: place,
		userWallet:  user,
		asset:       asset,
	}
	return fixture, func() { service.Close() }
}

func (f *engineFixture) anchor(t *testing.T) *models.Transaction {
	t.Helper()
	first, err := f.engine.Append(context.Background(), AppendParams{
		SenderId:   f.placeWallet.Id,
		ReceiverId: f.placeWallet.Id,
		AssetId:    f.asset.Id,
		Amount:     0,
		Action:     ActionFirst,
	})
	if err != nil {
		t.Fatalf("Failed to anchor chain: %v", err)
	}
	return first
}

func TestAppendFirst_AnchorsChainOnce(t *testing.T) {
	fixture, cleanup := setupEngineTest(t)
	defer cleanup()
	ctx := context.Background()

	first := fixture.anchor(t)
	if first.PreviousHash != "" {
		t.Errorf("Expected empty previous hash on FIRST, got %q", first.PreviousHash)
	}
	if !VerifyHash(first) {
		t.Error("FIRST hash does not verify")
	}

	_, err := fixture.engine.Append(ctx, AppendParams{
		SenderId:   fixture.placeWallet.Id,
		ReceiverId: fixture.placeWallet.Id,
		AssetId:    fixture.asset.Id,
		Action:     ActionFirst,
	})
	if !errors.Is(err, store.ErrDuplicateTransaction) {
		t.Errorf("Expected duplicate transaction error on second FIRST, got %v", err)
	}

	value, err := fixture.service.GetTokenValue(ctx, fixture.placeWallet.Id, fixture.asset.Id)
	if err != nil {
		t.Fatalf("GetTokenValue failed: %v", err)
	}
	if value != 0 {
		t.Errorf("Expected zero balance after FIRST, got %d", value)
	}
}

func TestAppendFirst_RejectsForeignWallet(t *testing.T) {
	fixture, cleanup := setupEngineTest(t)
	defer cleanup()

	_, err := fixture.engine.Append(context.Background(), AppendParams{
		SenderId:   fixture.userWallet.Id,
		ReceiverId: fixture.userWallet.Id,
		AssetId:    fixture.asset.Id,
		Action:     ActionFirst,
	})
	if !errors.Is(err, store.ErrActionNotPermitted) {
		t.Errorf("Expected action not permitted, got %v", err)
	}
}

func TestRefill_RequiresPriorCreation(t *testing.T) {
	fixture, cleanup := setupEngineTest(t)
	defer cleanup()
	ctx := context.Background()
	fixture.anchor(t)

	_, err := fixture.engine.Append(ctx, AppendParams{
		SenderId:   fixture.placeWallet.Id,
		ReceiverId: fixture.userWallet.Id,
		AssetId:    fixture.asset.Id,
		Amount:     1000,
		Action:     ActionRefill,
	})
	if !errors.Is(err, store.ErrMissingCreation) {
		t.Errorf("Expected missing creation error, got %v", err)
	}

	if _, err := fixture.engine.Append(ctx, AppendParams{
		SenderId:   fixture.placeWallet.Id,
		ReceiverId: fixture.placeWallet.Id,
		AssetId:    fixture.asset.Id,
		Amount:     5000,
		Action:     ActionCreation,
	}); err != nil {
		t.Fatalf("CREATION failed: %v", err)
	}

	if _, err := fixture.engine.Append(ctx, AppendParams{
		SenderId:   fixture.placeWallet.Id,
		ReceiverId: fixture.userWallet.Id,
		AssetId:    fixture.asset.Id,
		Amount:     1000,
		Action:     ActionRefill,
	}); err != nil {
		t.Fatalf("REFILL after CREATION failed: %v", err)
	}
}

func TestCreation_OnlyOriginMayMint(t *testing.T) {
	fixture, cleanup := setupEngineTest(t)
	defer cleanup()
	fixture.anchor(t)

	_, err := fixture.engine.Append(context.Background(), AppendParams{
		SenderId:   fixture.userWallet.Id,
		ReceiverId: fixture.userWallet.Id,
		AssetId:    fixture.asset.Id,
		Amount:     100,
		Action:     ActionCreation,
	})
	if !errors.Is(err, store.ErrActionNotPermitted) {
		t.Errorf("Expected action not permitted for non-origin mint, got %v", err)
	}
}

func TestLedgerLifecycle_ChainAndBalances(t *testing.T) {
	fixture, cleanup := setupEngineTest(t)
	defer cleanup()
	ctx := context.Background()

	first := fixture.anchor(t)

	creation, err := fixture.engine.Append(ctx, AppendParams{
		SenderId:   fixture.placeWallet.Id,
		ReceiverId: fixture.placeWallet.Id,
		AssetId:    fixture.asset.Id,
		Amount:     10000,
		Action:     ActionCreation,
	})
	if err != nil {
		t.Fatalf("CREATION failed: %v", err)
	}

	refill, err := fixture.engine.Append(ctx, AppendParams{
		SenderId:   fixture.placeWallet.Id,
		ReceiverId: fixture.userWallet.Id,
		AssetId:    fixture.asset.Id,
		Amount:     4000,
		Action:     ActionRefill,
	})
	if err != nil {
		t.Fatalf("REFILL failed: %v", err)
	}

	sale, err := fixture.engine.Append(ctx, AppendParams{
		SenderId:   fixture.userWallet.Id,
		ReceiverId: fixture.placeWallet.Id,
		AssetId:    fixture.asset.Id,
		Amount:     1500,
		Action:     ActionSale,
	})
	if err != nil {
		t.Fatalf("SALE failed: %v", err)
	}

	placeValue, _ := fixture.service.GetTokenValue(ctx, fixture.placeWallet.Id, fixture.asset.Id)
	userValue, _ := fixture.service.GetTokenValue(ctx, fixture.userWallet.Id, fixture.asset.Id)
	if placeValue != 7500 {
		t.Errorf("Expected place balance 7500, got %d", placeValue)
	}
	if userValue != 2500 {
		t.Errorf("Expected user balance 2500, got %d", userValue)
	}

	chain := []*models.Transaction{first, creation, refill, sale}
	for i, entry := range chain {
		if !VerifyHash(entry) {
			t.Errorf("Transaction %d hash does not verify", i)
		}
		if i > 0 && entry.PreviousHash != chain[i-1].Hash {
			t.Errorf("Transaction %d does not link to its predecessor", i)
		}
		if i > 0 && !entry.CreatedAt.After(chain[i-1].CreatedAt) {
			t.Errorf("Transaction %d timestamp is not strictly increasing", i)
		}
	}

	if err := fixture.engine.VerifyChain(ctx, fixture.asset.Id); err != nil {
		t.Errorf("VerifyChain failed: %v", err)
	}

	for _, walletId := range []string{fixture.placeWallet.Id, fixture.userWallet.Id} {
		if _, err := fixture.engine.ReconcileToken(ctx, walletId, fixture.asset.Id); err != nil {
			t.Errorf("ReconcileToken failed for %s: %v", walletId, err)
		}
	}
}

func TestTransfer_InsufficientBalance(t *testing.T) {
	fixture, cleanup := setupEngineTest(t)
	defer cleanup()
	ctx := context.Background()
	fixture.anchor(t)

	_, err := fixture.engine.Append(ctx, AppendParams{
		SenderId:   fixture.userWallet.Id,
		ReceiverId: fixture.placeWallet.Id,
		AssetId:    fixture.asset.Id,
		Amount:     100,
		Action:     ActionTransfer,
	})
	if !errors.Is(err, store.ErrInsufficientBalance) {
		t.Errorf("Expected insufficient balance, got %v", err)
	}
}

func TestConcurrentSales_ExactlyOneSucceeds(t *testing.T) {
	fixture, cleanup := setupEngineTest(t)
	defer cleanup()
	ctx := context.Background()
	fixture.anchor(t)

	mustAppend(t, fixture, AppendParams{
		SenderId: fixture.placeWallet.Id, ReceiverId: fixture.placeWallet.Id,
		AssetId: fixture.asset.Id, Amount: 1000, Action: ActionCreation,
	})
	mustAppend(t, fixture, AppendParams{
		SenderId: fixture.placeWallet.Id, ReceiverId: fixture.userWallet.Id,
		AssetId: fixture.asset.Id, Amount: 1000, Action: ActionRefill,
	})

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := fixture.engine.Append(ctx, AppendParams{
				SenderId:   fixture.userWallet.Id,
				ReceiverId: fixture.placeWallet.Id,
				AssetId:    fixture.asset.Id,
				Amount:     700,
				Action:     ActionSale,
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var succeeded, failed int
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		failed++
		if !errors.Is(err, store.ErrInsufficientBalance) && !errors.Is(err, store.ErrConcurrentModification) {
			t.Errorf("Unexpected failure mode: %v", err)
		}
	}
	if succeeded != 1 || failed != 1 {
		t.Errorf("Expected exactly one success and one failure, got %d/%d", succeeded, failed)
	}

	value, _ := fixture.service.GetTokenValue(ctx, fixture.userWallet.Id, fixture.asset.Id)
	if value != 300 {
		t.Errorf("Expected user balance 300, got %d", value)
	}
}

func TestFuse_MovesAllBalances(t *testing.T) {
	fixture, cleanup := setupEngineTest(t)
	defer cleanup()
	ctx := context.Background()
	fixture.anchor(t)

	cardWallet, err := fixture.service.CreateWallet(ctx, store.CreateWalletParams{Name: "card", PublicPEM: "card-pem"})
	if err != nil {
		t.Fatalf("Failed to create card wallet: %v", err)
	}

	mustAppend(t, fixture, AppendParams{
		SenderId: fixture.placeWallet.Id, ReceiverId: fixture.placeWallet.Id,
		AssetId: fixture.asset.Id, Amount: 2000, Action: ActionCreation,
	})
	mustAppend(t, fixture, AppendParams{
		SenderId: fixture.placeWallet.Id, ReceiverId: cardWallet.Id,
		AssetId: fixture.asset.Id, Amount: 800, Action: ActionRefill,
	})

	entries, err := fixture.engine.Fuse(ctx, cardWallet.Id, fixture.userWallet.Id, "card-1", "")
	if err != nil {
		t.Fatalf("Fuse failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected one fusion entry, got %d", len(entries))
	}
	if entries[0].Action != ActionFusion || entries[0].Amount != 800 {
		t.Errorf("Unexpected fusion entry: %+v", entries[0])
	}

	cardValue, _ := fixture.service.GetTokenValue(ctx, cardWallet.Id, fixture.asset.Id)
	userValue, _ := fixture.service.GetTokenValue(ctx, fixture.userWallet.Id, fixture.asset.Id)
	if cardValue != 0 {
		t.Errorf("Expected empty card wallet after fusion, got %d", cardValue)
	}
	if userValue != 800 {
		t.Errorf("Expected user balance 800 after fusion, got %d", userValue)
	}

	if err := fixture.engine.VerifyChain(ctx, fixture.asset.Id); err != nil {
		t.Errorf("VerifyChain failed after fusion: %v", err)
	}
}

func TestAppendWithSideEffect_FailureRollsBackEntry(t *testing.T) {
	fixture, cleanup := setupEngineTest(t)
	defer cleanup()
	ctx := context.Background()
	fixture.anchor(t)

	mustAppend(t, fixture, AppendParams{
		SenderId: fixture.placeWallet.Id, ReceiverId: fixture.placeWallet.Id,
		AssetId: fixture.asset.Id, Amount: 1000, Action: ActionCreation,
	})
	mustAppend(t, fixture, AppendParams{
		SenderId: fixture.placeWallet.Id, ReceiverId: fixture.userWallet.Id,
		AssetId: fixture.asset.Id, Amount: 600, Action: ActionRefill,
	})

	sideEffectErr := errors.New("bookkeeping rejected")
	_, err := fixture.engine.AppendWithSideEffect(ctx, AppendParams{
		SenderId:   fixture.userWallet.Id,
		ReceiverId: fixture.placeWallet.Id,
		AssetId:    fixture.asset.Id,
		Amount:     250,
		Action:     ActionSale,
	}, func(*sql.Tx) error { return sideEffectErr })
	if !errors.Is(err, sideEffectErr) {
		t.Fatalf("Expected side effect error, got %v", err)
	}

	// The entry and the balance moves rolled back with it.
	value, _ := fixture.service.GetTokenValue(ctx, fixture.userWallet.Id, fixture.asset.Id)
	if value != 600 {
		t.Errorf("Expected user balance 600 after rollback, got %d", value)
	}
	entries, err := fixture.service.ListAssetChain(ctx, fixture.asset.Id)
	if err != nil {
		t.Fatalf("ListAssetChain failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("Expected three committed entries, got %d", len(entries))
	}

	// A later append continues the chain from the last committed entry.
	sale, err := fixture.engine.AppendWithSideEffect(ctx, AppendParams{
		SenderId:   fixture.userWallet.Id,
		ReceiverId: fixture.placeWallet.Id,
		AssetId:    fixture.asset.Id,
		Amount:     250,
		Action:     ActionSale,
	}, func(*sql.Tx) error { return nil })
	if err != nil {
		t.Fatalf("AppendWithSideEffect failed: %v", err)
	}
	// The chain lists newest first.
	if sale.PreviousHash != entries[0].Hash {
		t.Error("Entry after rollback does not link to the last committed hash")
	}
	if err := fixture.engine.VerifyChain(ctx, fixture.asset.Id); err != nil {
		t.Errorf("VerifyChain failed: %v", err)
	}
}

func TestSale_RejectsUnrelatedReceiver(t *testing.T) {
	fixture, cleanup := setupEngineTest(t)
	defer cleanup()
	ctx := context.Background()
	fixture.anchor(t)

	other, err := fixture.service.CreateWallet(ctx, store.CreateWalletParams{Name: "other", PublicPEM: "other-pem"})
	if err != nil {
		t.Fatalf("Failed to create wallet: %v", err)
	}

	mustAppend(t, fixture, AppendParams{
		SenderId: fixture.placeWallet.Id, ReceiverId: fixture.placeWallet.Id,
		AssetId: fixture.asset.Id, Amount: 1000, Action: ActionCreation,
	})
	mustAppend(t, fixture, AppendParams{
		SenderId: fixture.placeWallet.Id, ReceiverId: fixture.userWallet.Id,
		AssetId: fixture.asset.Id, Amount: 500, Action: ActionRefill,
	})

	_, err = fixture.engine.Append(ctx, AppendParams{
		SenderId:   fixture.userWallet.Id,
		ReceiverId: other.Id,
		AssetId:    fixture.asset.Id,
		Amount:     100,
		Action:     ActionSale,
	})
	if !errors.Is(err, store.ErrActionNotPermitted) {
		t.Errorf("Expected action not permitted for unrelated receiver, got %v", err)
	}
}

func mustAppend(t *testing.T, fixture *engineFixture, params AppendParams) *models.Transaction {
	t.Helper()
	entry, err := fixture.engine.Append(context.Background(), params)
	if err != nil {
		t.Fatalf("Append %s failed: %v", params.Action, err)
	}
	return entry
}
