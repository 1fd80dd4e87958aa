package models

import "time"

// Asset categories. At most one non-archived bridged-fiat asset may exist per hub.
const (
	AssetLocalFiat    = "local-fiat"
	AssetLocalNonFiat = "local-non-fiat"
	AssetSubscription = "subscription"
	AssetBadge        = "badge"
	AssetBridgedFiat  = "bridged-fiat"
)

// Capability token scopes.
const (
	ScopeRoot      = "root"
	ScopePlace     = "place"
	ScopeHandshake = "handshake"
)

// Bridge payment statuses. The status doubles as a cooperative lock between the
// webhook and the polling confirmation path.
const (
	BridgePending    = "pending"
	BridgeInProgress = "in_progress"
	BridgePaid       = "paid"
	BridgeError      = "error"
)

// Wallet is the identity unit: a key pair plus per-asset Token balances.
// Wallets are never deleted; the ledger's referential integrity depends on them.
type Wallet struct {
	Id            string    `db:"id"`
	Name          string    `db:"name"`
	PublicPEM     string    `db:"public_pem"`
	PrivatePEMEnc string    `db:"private_pem_enc"` // AES-GCM under the hub master key; empty for node-held keys
	SourceIP      string    `db:"source_ip"`
	CreatedAt     time.Time `db:"created_at"`
}

// Asset is a currency/token class anchored by its own hash chain.
type Asset struct {
	Id             string    `db:"id"`
	Name           string    `db:"name"`
	CurrencyCode   string    `db:"currency_code"`
	Category       string    `db:"category"`
	OriginWalletId string    `db:"origin_wallet_id"`
	Archived       bool      `db:"archived"`
	CreatedAt      time.Time `db:"created_at"`
}

// Token is the cached balance of one (wallet, asset) pair in minor currency
// units. Created lazily and mutated only by the ledger engine.
type Token struct {
	Id                string    `db:"id"`
	WalletId          string    `db:"wallet_id"`
	AssetId           string    `db:"asset_id"`
	Value             int64     `db:"value"`
	LastTransactionId string    `db:"last_transaction_id"`
	Version           int64     `db:"version"`
	UpdatedAt         time.Time `db:"updated_at"`
}

// Transaction is an immutable, hash-chained ledger entry.
type Transaction struct {
	Id              string    `db:"id"`
	Hash            string    `db:"hash"`
	PreviousHash    string    `db:"previous_hash"`
	SenderId        string    `db:"sender_id"`
	ReceiverId      string    `db:"receiver_id"`
	AssetId         string    `db:"asset_id"`
	Amount          int64     `db:"amount"`
	Action          string    `db:"action"`
	SourceIP        string    `db:"source_ip"`
	CardId          string    `db:"card_id"`
	PrimaryCardId   string    `db:"primary_card_id"`
	BridgePaymentId string    `db:"bridge_payment_id"`
	Comment         string    `db:"comment"`
	CreatedAt       time.Time `db:"created_at"`
}

// Place is a federated point-of-sale node wrapping one Wallet.
type Place struct {
	Id                 string    `db:"id"`
	Name               string    `db:"name"`
	WalletId           string    `db:"wallet_id"`
	NodeURL            string    `db:"node_url"`
	NodePublicPEM      string    `db:"node_public_pem"`
	NodeAdminSecretEnc string    `db:"node_admin_secret_enc"`
	CreatedAt          time.Time `db:"created_at"`
}

// Federation is a named grouping of Places and Assets sharing acceptance.
// Purely a visibility/acceptance filter; no balance effects.
type Federation struct {
	Id        string    `db:"id"`
	Name      string    `db:"name"`
	CreatedAt time.Time `db:"created_at"`
}

// APIKey is a scoped capability token bound to one (Place, user) pair. The
// secret is never stored: only its lookup prefix and SHA-256 hash. Temporary
// bootstrap keys carry the "temp_" name prefix and are deleted after Handshake.
type APIKey struct {
	Id        string     `db:"id"`
	Name      string     `db:"name"`
	PlaceId   string     `db:"place_id"`
	UserEmail string     `db:"user_email"`
	Prefix    string     `db:"prefix"`
	HashedKey string     `db:"hashed_key"`
	Scope     string     `db:"scope"`
	Revoked   bool       `db:"revoked"`
	ExpiresAt *time.Time `db:"expires_at"`
	CreatedAt time.Time  `db:"created_at"`
}

// BridgePayment records one inbound payment-provider credit, keyed by the
// provider's unique external reference. Amounts are minor units.
type BridgePayment struct {
	Id          string    `db:"id"`
	ExternalRef string    `db:"external_ref"`
	WalletId    string    `db:"wallet_id"`
	AssetId     string    `db:"asset_id"`
	Amount      int64     `db:"amount"`
	Refunded    int64     `db:"refunded"`
	Status      string    `db:"status"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// Card is a physical tag bound to an ephemeral wallet until fused into a user wallet.
type Card struct {
	Id           string    `db:"id"`
	UID          string    `db:"uid"`
	OriginId     string    `db:"origin_id"`
	WalletId     string    `db:"wallet_id"`
	UserWalletId string    `db:"user_wallet_id"`
	CreatedAt    time.Time `db:"created_at"`
}

// Origin is a card generation batch.
type Origin struct {
	Id         string    `db:"id"`
	Name       string    `db:"name"`
	Generation int       `db:"generation"`
	CreatedAt  time.Time `db:"created_at"`
}
