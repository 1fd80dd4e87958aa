package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ledger-hub-go/internal/models"
)

// Sentinel errors shared across the persistence and ledger layers.
var (
	ErrNotFound               = errors.New("record not found")
	ErrDuplicateTransaction   = errors.New("duplicate transaction")
	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrInsufficientBalance    = errors.New("insufficient balance")
	ErrMissingCreation        = errors.New("asset has no prior creation transaction")
	ErrActionNotPermitted     = errors.New("action not permitted between sender and receiver")
	ErrPrimaryAssetExists     = errors.New("a bridged-fiat primary asset already exists")
	ErrBridgeAmountExceeded   = errors.New("amount exceeds refundable bridge credits")
)

// ValidationError reports malformed input with field-level detail. It is
// rejected synchronously with no state change.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validation builds a field-level validation error.
func Validation(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// IntegrityError signals irrecoverable ledger corruption (hash mismatch or a
// broken chain link). It must be surfaced, never repaired, and blocks further
// writes to the affected chain pending manual intervention.
type IntegrityError struct {
	AssetId       string
	TransactionId string
	Detail        string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("ledger integrity violation on asset %s (transaction %s): %s",
		e.AssetId, e.TransactionId, e.Detail)
}

// CreateWalletParams describes a wallet to persist.
type CreateWalletParams struct {
	Name          string
	PublicPEM     string
	PrivatePEMEnc string
	SourceIP      string
}

// CreateAssetParams describes an asset to persist. The FIRST transaction is
// appended synchronously by the caller inside the same unit of work.
type CreateAssetParams struct {
	Name           string
	CurrencyCode   string
	Category       string
	OriginWalletId string
}

// CreateAPIKeyParams describes a capability token record (secret never stored).
type CreateAPIKeyParams struct {
	Name      string
	PlaceId   string
	UserEmail string
	Prefix    string
	HashedKey string
	Scope     string
}

// HubStore is the contract the HTTP layer and the bridge adapter depend on.
// The ledger engine mutates tokens/transactions directly and is deliberately
// not behind this interface: it is the sole balance mutator.
type HubStore interface {
	// --- Wallets ---
	CreateWallet(ctx context.Context, params CreateWalletParams) (*models.Wallet, error)
	GetWallet(ctx context.Context, walletId string) (*models.Wallet, error)
	GetOrCreateUserWallet(ctx context.Context, email, publicPEM, sourceIP string) (*models.Wallet, bool, error)

	// --- Assets ---
	CreateAsset(ctx context.Context, params CreateAssetParams) (*models.Asset, error)
	DeleteAsset(ctx context.Context, assetId string) error
	GetAsset(ctx context.Context, assetId string) (*models.Asset, error)
	GetPrimaryAsset(ctx context.Context) (*models.Asset, error)
	ListAssets(ctx context.Context) ([]models.Asset, error)

	// --- Places & federations ---
	CreatePlace(ctx context.Context, name, walletId string, admins []string) (*models.Place, error)
	GetPlace(ctx context.Context, placeId string) (*models.Place, error)
	GetPlaceByWallet(ctx context.Context, walletId string) (*models.Place, error)
	IsPlaceAdmin(ctx context.Context, placeId, userEmail string) (bool, error)
	CommitHandshake(ctx context.Context, placeId, nodeURL, nodePublicPEM, adminSecretEnc string) error
	CreateFederation(ctx context.Context, name string) (*models.Federation, error)
	AddAssetToFederation(ctx context.Context, federationId, assetId string) error
	AddPlaceToFederation(ctx context.Context, federationId, placeId string) error
	SharesFederation(ctx context.Context, assetId, placeWalletId string) (bool, error)

	// --- Capability tokens ---
	CreateAPIKey(ctx context.Context, params CreateAPIKeyParams) (*models.APIKey, error)
	GetAPIKeyByPrefix(ctx context.Context, prefix string) (*models.APIKey, error)
	DeleteAPIKey(ctx context.Context, keyId string) error
	RevokeAPIKey(ctx context.Context, keyId string) error

	// --- Tokens (read side; writes go through the ledger engine) ---
	GetTokenValue(ctx context.Context, walletId, assetId string) (int64, error)
	ListWalletBalances(ctx context.Context, walletId string) ([]models.BalanceEntry, error)

	// --- Transactions (read side) ---
	GetTransactionByHash(ctx context.Context, hash string) (*models.Transaction, error)
	GetBridgeTransaction(ctx context.Context, bridgePaymentId, action string) (*models.Transaction, error)
	ListAssetChain(ctx context.Context, assetId string) ([]models.Transaction, error)

	// --- Bridge payments ---
	CreateBridgePayment(ctx context.Context, externalRef, walletId, assetId string, amount int64) (*models.BridgePayment, error)
	GetBridgePayment(ctx context.Context, externalRef string) (*models.BridgePayment, error)
	ClaimBridgePayment(ctx context.Context, externalRef string) (bool, error)
	SettleBridgePayment(ctx context.Context, externalRef, status string) error
	ListRefundableBridgePayments(ctx context.Context, walletId string) ([]models.BridgePayment, error)
	AddBridgeRefundInTx(ctx context.Context, tx *sql.Tx, bridgePaymentId string, amount int64) error

	// --- Cards ---
	CreateOrigin(ctx context.Context, name string, generation int) (*models.Origin, error)
	RegisterCard(ctx context.Context, uid, originId, walletId string) (*models.Card, error)
	GetCardByUID(ctx context.Context, uid string) (*models.Card, error)
	BindCardToUser(ctx context.Context, cardId, userWalletId string) error

	// --- Lifecycle ---
	Close()
}
