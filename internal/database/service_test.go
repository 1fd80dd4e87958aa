package database

import (
	"context"
	"errors"
	"testing"

	"ledger-hub-go/internal/ledger"
	"ledger-hub-go/internal/models"
	"ledger-hub-go/internal/store"
)

func setupStoreTest(t *testing.T) (*Service, func()) {
	t.Helper()

	service, err := NewInMemoryService()
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	return service, func() { service.Close() }
}

func TestGetOrCreateUserWallet(t *testing.T) {
	service, cleanup := setupStoreTest(t)
	defer cleanup()
	ctx := context.Background()

	wallet, created, err := service.GetOrCreateUserWallet(ctx, "user@example.com", "user-pem", "10.0.0.1")
	if err != nil {
		t.Fatalf("GetOrCreateUserWallet failed: %v", err)
	}
	if !created {
		t.Error("Expected first call to create the wallet")
	}

	again, created, err := service.GetOrCreateUserWallet(ctx, "user@example.com", "user-pem", "10.0.0.2")
	if err != nil {
		t.Fatalf("GetOrCreateUserWallet failed: %v", err)
	}
	if created {
		t.Error("Expected second call to reuse the wallet")
	}
	if again.Id != wallet.Id {
		t.Errorf("Expected wallet %s, got %s", wallet.Id, again.Id)
	}

	// Same email with a different key is rejected, never silently rebound.
	_, _, err = service.GetOrCreateUserWallet(ctx, "user@example.com", "other-pem", "10.0.0.3")
	var verr *store.ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("Expected validation error for key mismatch, got %v", err)
	}
}

func TestCreateAsset_SinglePrimary(t *testing.T) {
	service, cleanup := setupStoreTest(t)
	defer cleanup()
	ctx := context.Background()

	hub, err := service.CreateWallet(ctx, store.CreateWalletParams{Name: "hub", PublicPEM: "hub-pem"})
	if err != nil {
		t.Fatalf("CreateWallet failed: %v", err)
	}

	primary, err := service.CreateAsset(ctx, store.CreateAssetParams{
		Name:           "EUR",
		CurrencyCode:   "EUR",
		Category:       models.AssetBridgedFiat,
		OriginWalletId: hub.Id,
	})
	if err != nil {
		t.Fatalf("CreateAsset failed: %v", err)
	}

	_, err = service.CreateAsset(ctx, store.CreateAssetParams{
		Name:           "EUR-2",
		CurrencyCode:   "EUR",
		Category:       models.AssetBridgedFiat,
		OriginWalletId: hub.Id,
	})
	if !errors.Is(err, store.ErrPrimaryAssetExists) {
		t.Errorf("Expected primary asset conflict, got %v", err)
	}

	got, err := service.GetPrimaryAsset(ctx)
	if err != nil {
		t.Fatalf("GetPrimaryAsset failed: %v", err)
	}
	if got.Id != primary.Id {
		t.Errorf("Expected primary asset %s, got %s", primary.Id, got.Id)
	}

	_, err = service.CreateAsset(ctx, store.CreateAssetParams{
		Name:         "Mystery",
		CurrencyCode: "MYS",
		Category:     "mystery",
	})
	var verr *store.ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("Expected validation error for unknown category, got %v", err)
	}
}

func TestDeleteAsset_OnlyWithoutLedgerHistory(t *testing.T) {
	service, cleanup := setupStoreTest(t)
	defer cleanup()
	ctx := context.Background()

	place, err := service.CreateWallet(ctx, store.CreateWalletParams{Name: "place", PublicPEM: "place-pem"})
	if err != nil {
		t.Fatalf("CreateWallet failed: %v", err)
	}

	stranded, err := service.CreateAsset(ctx, store.CreateAssetParams{
		Name:           "Stranded",
		CurrencyCode:   "STR",
		Category:       models.AssetLocalFiat,
		OriginWalletId: place.Id,
	})
	if err != nil {
		t.Fatalf("CreateAsset failed: %v", err)
	}
	if err := service.DeleteAsset(ctx, stranded.Id); err != nil {
		t.Fatalf("DeleteAsset failed: %v", err)
	}
	if _, err := service.GetAsset(ctx, stranded.Id); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected asset gone after delete, got %v", err)
	}

	if err := service.DeleteAsset(ctx, stranded.Id); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected not found for missing asset, got %v", err)
	}

	// An anchored asset refuses deletion.
	anchored, err := service.CreateAsset(ctx, store.CreateAssetParams{
		Name:           "Anchored",
		CurrencyCode:   "ANC",
		Category:       models.AssetLocalFiat,
		OriginWalletId: place.Id,
	})
	if err != nil {
		t.Fatalf("CreateAsset failed: %v", err)
	}
	engine := ledger.NewEngine(service.DB(), service, place.Id)
	if _, err := engine.Append(ctx, ledger.AppendParams{
		SenderId: place.Id, ReceiverId: place.Id, AssetId: anchored.Id, Action: ledger.ActionFirst,
	}); err != nil {
		t.Fatalf("Failed to anchor chain: %v", err)
	}
	if err := service.DeleteAsset(ctx, anchored.Id); !errors.Is(err, store.ErrActionNotPermitted) {
		t.Errorf("Expected action not permitted for anchored asset, got %v", err)
	}
	if _, err := service.GetAsset(ctx, anchored.Id); err != nil {
		t.Errorf("Anchored asset disappeared: %v", err)
	}
}

func TestBridgePayment_ClaimLifecycle(t *testing.T) {
	service, cleanup := setupStoreTest(t)
	defer cleanup()
	ctx := context.Background()

	if _, err := service.CreateBridgePayment(ctx, "cs_1", "wallet-1", "asset-1", 5000); err != nil {
		t.Fatalf("CreateBridgePayment failed: %v", err)
	}
	if _, err := service.CreateBridgePayment(ctx, "cs_1", "wallet-1", "asset-1", 5000); !errors.Is(err, store.ErrDuplicateTransaction) {
		t.Errorf("Expected duplicate for repeated external ref, got %v", err)
	}

	claimed, err := service.ClaimBridgePayment(ctx, "cs_1")
	if err != nil {
		t.Fatalf("ClaimBridgePayment failed: %v", err)
	}
	if !claimed {
		t.Fatal("Expected first claim to win")
	}
	claimed, err = service.ClaimBridgePayment(ctx, "cs_1")
	if err != nil {
		t.Fatalf("ClaimBridgePayment failed: %v", err)
	}
	if claimed {
		t.Error("Expected second claim to lose while in progress")
	}

	// An errored payment can be claimed again; a settled one cannot.
	if err := service.SettleBridgePayment(ctx, "cs_1", models.BridgeError); err != nil {
		t.Fatalf("SettleBridgePayment failed: %v", err)
	}
	claimed, err = service.ClaimBridgePayment(ctx, "cs_1")
	if err != nil {
		t.Fatalf("ClaimBridgePayment failed: %v", err)
	}
	if !claimed {
		t.Error("Expected errored payment to be claimable again")
	}
	if err := service.SettleBridgePayment(ctx, "cs_1", models.BridgePaid); err != nil {
		t.Fatalf("SettleBridgePayment failed: %v", err)
	}
	claimed, err = service.ClaimBridgePayment(ctx, "cs_1")
	if err != nil {
		t.Fatalf("ClaimBridgePayment failed: %v", err)
	}
	if claimed {
		t.Error("Expected settled payment to refuse further claims")
	}

	if err := service.SettleBridgePayment(ctx, "cs_1", "nonsense"); err == nil {
		t.Error("Expected error for invalid settlement status")
	}
}

func TestBridgeRefund_Accumulation(t *testing.T) {
	service, cleanup := setupStoreTest(t)
	defer cleanup()
	ctx := context.Background()

	first, err := service.CreateBridgePayment(ctx, "cs_old", "wallet-1", "asset-1", 1000)
	if err != nil {
		t.Fatalf("CreateBridgePayment failed: %v", err)
	}
	second, err := service.CreateBridgePayment(ctx, "cs_new", "wallet-1", "asset-1", 500)
	if err != nil {
		t.Fatalf("CreateBridgePayment failed: %v", err)
	}
	for _, ref := range []string{"cs_old", "cs_new"} {
		if err := service.SettleBridgePayment(ctx, ref, models.BridgePaid); err != nil {
			t.Fatalf("SettleBridgePayment failed: %v", err)
		}
	}

	refundable, err := service.ListRefundableBridgePayments(ctx, "wallet-1")
	if err != nil {
		t.Fatalf("ListRefundableBridgePayments failed: %v", err)
	}
	if len(refundable) != 2 {
		t.Fatalf("Expected 2 refundable payments, got %d", len(refundable))
	}
	if refundable[0].Id != second.Id {
		t.Errorf("Expected newest payment first, got %s", refundable[0].ExternalRef)
	}

	addRefund := func(amount int64) error {
		tx, err := service.DB().BeginTx(ctx, nil)
		if err != nil {
			t.Fatalf("BeginTx failed: %v", err)
		}
		if err := service.AddBridgeRefundInTx(ctx, tx, second.Id, amount); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			t.Fatalf("Commit failed: %v", err)
		}
		return nil
	}
	if err := addRefund(300); err != nil {
		t.Fatalf("AddBridgeRefundInTx failed: %v", err)
	}
	if err := addRefund(200); err != nil {
		t.Fatalf("AddBridgeRefundInTx failed: %v", err)
	}
	// 300 + 200 exhausts the 500 credit.
	if err := addRefund(1); !errors.Is(err, store.ErrBridgeAmountExceeded) {
		t.Errorf("Expected refund over-consumption to be rejected, got %v", err)
	}

	refundable, err = service.ListRefundableBridgePayments(ctx, "wallet-1")
	if err != nil {
		t.Fatalf("ListRefundableBridgePayments failed: %v", err)
	}
	if len(refundable) != 1 || refundable[0].Id != first.Id {
		t.Errorf("Expected only the older payment to remain refundable, got %+v", refundable)
	}
}

func TestCommitHandshake_OnceOnly(t *testing.T) {
	service, cleanup := setupStoreTest(t)
	defer cleanup()
	ctx := context.Background()

	wallet, err := service.CreateWallet(ctx, store.CreateWalletParams{Name: "festival", PublicPEM: "pem"})
	if err != nil {
		t.Fatalf("CreateWallet failed: %v", err)
	}
	place, err := service.CreatePlace(ctx, "festival", wallet.Id, []string{"admin@example.com"})
	if err != nil {
		t.Fatalf("CreatePlace failed: %v", err)
	}

	admin, err := service.IsPlaceAdmin(ctx, place.Id, "admin@example.com")
	if err != nil {
		t.Fatalf("IsPlaceAdmin failed: %v", err)
	}
	if !admin {
		t.Error("Expected seeded admin to be recognized")
	}

	if err := service.CommitHandshake(ctx, place.Id, "https://node.example.com", "node-pem", "sealed"); err != nil {
		t.Fatalf("CommitHandshake failed: %v", err)
	}
	err = service.CommitHandshake(ctx, place.Id, "https://other.example.com", "other-pem", "sealed")
	if !errors.Is(err, store.ErrActionNotPermitted) {
		t.Errorf("Expected second handshake commit to be refused, got %v", err)
	}

	stored, err := service.GetPlaceByWallet(ctx, wallet.Id)
	if err != nil {
		t.Fatalf("GetPlaceByWallet failed: %v", err)
	}
	if stored.NodeURL != "https://node.example.com" {
		t.Errorf("Expected first node URL to stick, got %s", stored.NodeURL)
	}
}

func TestSharesFederation(t *testing.T) {
	service, cleanup := setupStoreTest(t)
	defer cleanup()
	ctx := context.Background()

	origin, err := service.CreateWallet(ctx, store.CreateWalletParams{Name: "origin", PublicPEM: "pem"})
	if err != nil {
		t.Fatalf("CreateWallet failed: %v", err)
	}
	member, err := service.CreateWallet(ctx, store.CreateWalletParams{Name: "member", PublicPEM: "pem"})
	if err != nil {
		t.Fatalf("CreateWallet failed: %v", err)
	}
	outsider, err := service.CreateWallet(ctx, store.CreateWalletParams{Name: "outsider", PublicPEM: "pem"})
	if err != nil {
		t.Fatalf("CreateWallet failed: %v", err)
	}

	asset, err := service.CreateAsset(ctx, store.CreateAssetParams{
		Name:           "Tokens",
		CurrencyCode:   "TKN",
		Category:       models.AssetLocalNonFiat,
		OriginWalletId: origin.Id,
	})
	if err != nil {
		t.Fatalf("CreateAsset failed: %v", err)
	}
	memberPlace, err := service.CreatePlace(ctx, "member-place", member.Id, nil)
	if err != nil {
		t.Fatalf("CreatePlace failed: %v", err)
	}
	if _, err := service.CreatePlace(ctx, "outsider-place", outsider.Id, nil); err != nil {
		t.Fatalf("CreatePlace failed: %v", err)
	}

	fed, err := service.CreateFederation(ctx, "regional")
	if err != nil {
		t.Fatalf("CreateFederation failed: %v", err)
	}
	if err := service.AddAssetToFederation(ctx, fed.Id, asset.Id); err != nil {
		t.Fatalf("AddAssetToFederation failed: %v", err)
	}
	if err := service.AddPlaceToFederation(ctx, fed.Id, memberPlace.Id); err != nil {
		t.Fatalf("AddPlaceToFederation failed: %v", err)
	}

	shared, err := service.SharesFederation(ctx, asset.Id, member.Id)
	if err != nil {
		t.Fatalf("SharesFederation failed: %v", err)
	}
	if !shared {
		t.Error("Expected asset and member place to share a federation")
	}
	shared, err = service.SharesFederation(ctx, asset.Id, outsider.Id)
	if err != nil {
		t.Fatalf("SharesFederation failed: %v", err)
	}
	if shared {
		t.Error("Expected outsider place to share no federation with the asset")
	}
}

func TestBindCardToUser_OnceOnly(t *testing.T) {
	service, cleanup := setupStoreTest(t)
	defer cleanup()
	ctx := context.Background()

	origin, err := service.CreateOrigin(ctx, "festival", 1)
	if err != nil {
		t.Fatalf("CreateOrigin failed: %v", err)
	}
	same, err := service.CreateOrigin(ctx, "festival", 1)
	if err != nil {
		t.Fatalf("CreateOrigin failed: %v", err)
	}
	if same.Id != origin.Id {
		t.Errorf("Expected origin reuse for same name/generation, got %s and %s", origin.Id, same.Id)
	}

	cardWallet, err := service.CreateWallet(ctx, store.CreateWalletParams{Name: "card-ABCD", PublicPEM: "pem"})
	if err != nil {
		t.Fatalf("CreateWallet failed: %v", err)
	}
	card, err := service.RegisterCard(ctx, "ABCD1234", origin.Id, cardWallet.Id)
	if err != nil {
		t.Fatalf("RegisterCard failed: %v", err)
	}

	if err := service.BindCardToUser(ctx, card.Id, "user-wallet-1"); err != nil {
		t.Fatalf("BindCardToUser failed: %v", err)
	}
	err = service.BindCardToUser(ctx, card.Id, "user-wallet-2")
	if !errors.Is(err, store.ErrActionNotPermitted) {
		t.Errorf("Expected rebind to be refused, got %v", err)
	}

	stored, err := service.GetCardByUID(ctx, "ABCD1234")
	if err != nil {
		t.Fatalf("GetCardByUID failed: %v", err)
	}
	if stored.UserWalletId != "user-wallet-1" {
		t.Errorf("Expected first binding to stick, got %s", stored.UserWalletId)
	}
}
