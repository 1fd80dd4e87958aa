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

package models

import "time"

// TransactionRequest is the body of POST /transaction/. The action type is
// derived server-side from the caller identity and the sender/receiver
// relationship; it is never taken from the client.
type TransactionRequest struct {
	SenderId       string `json:"sender"`
	ReceiverId     string `json:"receiver"`
	AssetId        string `json:"asset"`
	Amount         int64  `json:"amount"`
	Comment        string `json:"comment,omitempty"`
	CardUID        string `json:"card_uid,omitempty"`
	PrimaryCardUID string `json:"primary_card_uid,omitempty"`
}

// TransactionResult is returned after a successful ledger append.
type TransactionResult struct {
	Id              string    `json:"id"`
	Hash            string    `json:"hash"`
	PreviousHash    string    `json:"previous_hash"`
	SenderId        string    `json:"sender"`
	ReceiverId      string    `json:"receiver"`
	AssetId         string    `json:"asset"`
	Amount          int64     `json:"amount"`
	Action          string    `json:"action"`
	CreatedAt       time.Time `json:"created_at"`
	SenderBalance   int64     `json:"sender_balance"`
	ReceiverBalance int64     `json:"receiver_balance"`
}

// PlaceRequest provisions a new Place (root scope).
type PlaceRequest struct {
	Name       string   `json:"name"`
	AdminEmail string   `json:"admin_email"`
	Admins     []string `json:"admins,omitempty"`
}

// PlaceResult carries the one-time temporary capability token handed
// out-of-band to the node operator.
type PlaceResult struct {
	Id             string `json:"id"`
	Name           string `json:"name"`
	WalletId       string `json:"wallet"`
	TemporaryToken string `json:"temporary_token"`
}

// HandshakeRequest is the pairing request of a cashless node.
type HandshakeRequest struct {
	PlaceId       string `json:"place_uuid"`
	NodeURL       string `json:"cashless_server_url"`
	NodePublicPEM string `json:"cashless_rsa_pub_key"`
	AdminSecret   string `json:"cashless_admin_apikey"`
}

// HandshakeBundle is the base64-encoded response of a successful pairing:
// the permanent capability token and the Place wallet id.
type HandshakeBundle struct {
	PlaceId        string `json:"place_uuid"`
	PlaceWalletId  string `json:"place_wallet_uuid"`
	PermanentToken string `json:"place_admin_apikey"`
}

// AssetRequest creates an Asset; its FIRST transaction is appended synchronously.
type AssetRequest struct {
	Name         string `json:"name"`
	CurrencyCode string `json:"currency_code"`
	Category     string `json:"category"`
}

// WalletGetOrCreateRequest provisions an end-user wallet idempotently,
// keyed by email plus the submitted public key.
type WalletGetOrCreateRequest struct {
	Email     string `json:"email"`
	PublicPEM string `json:"public_pem"`
}

// CardBatchRequest bulk-registers cards under an Origin generation batch.
type CardBatchRequest struct {
	OriginName string   `json:"origin"`
	Generation int      `json:"generation"`
	UIDs       []string `json:"uids"`
}

// FusionRequest merges an ephemeral card wallet into a user wallet.
type FusionRequest struct {
	CardUID      string `json:"card_uid"`
	UserWalletId string `json:"user_wallet"`
}

// RefundRequest asks the bridge to reverse previously credited fiat.
type RefundRequest struct {
	WalletId string `json:"wallet"`
	Amount   int64  `json:"amount"`
}

// CheckoutResult is returned by both bridge confirmation paths. Duplicate
// confirmations return the previously recorded result.
type CheckoutResult struct {
	ExternalRef     string `json:"external_ref"`
	Status          string `json:"status"`
	WalletId        string `json:"wallet,omitempty"`
	Amount          int64  `json:"amount,omitempty"`
	TransactionHash string `json:"transaction_hash,omitempty"`
	AlreadyRecorded bool   `json:"already_recorded"`
}

// BalanceEntry is one row of a wallet balance listing.
type BalanceEntry struct {
	AssetId      string `json:"asset"`
	CurrencyCode string `json:"currency_code"`
	Value        int64  `json:"value"`
}

// ErrorResponse is the structured error body for recoverable failures.
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}
