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

const (
	// Wallet queries
	queryInsertWallet = `
		INSERT INTO wallets (id, name, public_pem, private_pem_enc, source_ip)
		VALUES (?, ?, ?, ?, ?)`

	queryGetWallet = `
		SELECT id, name, public_pem, private_pem_enc, source_ip, created_at
		FROM wallets
		WHERE id = ?`

	queryGetWalletByName = `
		SELECT id, name, public_pem, private_pem_enc, source_ip, created_at
		FROM wallets
		WHERE name = ?
		LIMIT 1`

	// Asset queries
	queryInsertAsset = `
		INSERT INTO assets (id, name, currency_code, category, origin_wallet_id)
		VALUES (?, ?, ?, ?, ?)`

	queryGetAsset = `
		SELECT id, name, currency_code, category, origin_wallet_id, archived, created_at
		FROM assets
		WHERE id = ?`

	queryDeleteUnanchoredAsset = `
		DELETE FROM assets
		WHERE id = ?
		  AND NOT EXISTS (SELECT 1 FROM transactions WHERE asset_id = assets.id)`

	queryGetPrimaryAsset = `
		SELECT id, name, currency_code, category, origin_wallet_id, archived, created_at
		FROM assets
		WHERE category = ? AND archived = 0
		LIMIT 1`

	queryListAssets = `
		SELECT id, name, currency_code, category, origin_wallet_id, archived, created_at
		FROM assets
		WHERE archived = 0
		ORDER BY created_at`

	// Place queries
	queryInsertPlace = `
		INSERT INTO places (id, name, wallet_id)
		VALUES (?, ?, ?)`

	queryGetPlace = `
		SELECT id, name, wallet_id, node_url, node_public_pem, node_admin_secret_enc, created_at
		FROM places
		WHERE id = ?`

	queryGetPlaceByWallet = `
		SELECT id, name, wallet_id, node_url, node_public_pem, node_admin_secret_enc, created_at
		FROM places
		WHERE wallet_id = ?`

	queryInsertPlaceAdmin = `
		INSERT OR IGNORE INTO place_admins (place_id, user_email) VALUES (?, ?)`

	queryIsPlaceAdmin = `
		SELECT COUNT(1) FROM place_admins WHERE place_id = ? AND user_email = ?`

	queryCommitHandshake = `
		UPDATE places
		SET node_url = ?, node_public_pem = ?, node_admin_secret_enc = ?
		WHERE id = ? AND node_url = ''`

	// Federation queries
	queryInsertFederation = `
		INSERT INTO federations (id, name) VALUES (?, ?)`

	queryInsertFederationAsset = `
		INSERT OR IGNORE INTO federation_assets (federation_id, asset_id) VALUES (?, ?)`

	queryInsertFederationPlace = `
		INSERT OR IGNORE INTO federation_places (federation_id, place_id) VALUES (?, ?)`

	querySharesFederation = `
		SELECT COUNT(1)
		FROM federation_assets fa
		JOIN federation_places fp ON fa.federation_id = fp.federation_id
		JOIN places p ON p.id = fp.place_id
		WHERE fa.asset_id = ? AND p.wallet_id = ?`

	// Capability token queries
	queryInsertAPIKey = `
		INSERT INTO api_keys (id, name, place_id, user_email, prefix, hashed_key, scope)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	queryGetAPIKeyByPrefix = `
		SELECT id, name, place_id, user_email, prefix, hashed_key, scope, revoked, expires_at, created_at
		FROM api_keys
		WHERE prefix = ?`

	queryDeleteAPIKey = `
		DELETE FROM api_keys WHERE id = ?`

	queryRevokeAPIKey = `
		UPDATE api_keys SET revoked = 1 WHERE id = ?`

	// Token (balance cache) read queries; writes belong to the ledger engine
	queryGetTokenValue = `
		SELECT value
		FROM tokens
		WHERE wallet_id = ? AND asset_id = ?`

	queryListWalletBalances = `
		SELECT t.asset_id, a.currency_code, t.value
		FROM tokens t
		JOIN assets a ON a.id = t.asset_id
		WHERE t.wallet_id = ?
		ORDER BY a.currency_code`

	// Transaction read queries
	queryGetTransactionByHash = `
		SELECT id, hash, previous_hash, sender_id, receiver_id, asset_id, amount, action,
		       source_ip, card_id, primary_card_id, bridge_payment_id, comment, created_at
		FROM transactions
		WHERE hash = ?`

	queryGetBridgeTransaction = `
		SELECT id, hash, previous_hash, sender_id, receiver_id, asset_id, amount, action,
		       source_ip, card_id, primary_card_id, bridge_payment_id, comment, created_at
		FROM transactions
		WHERE bridge_payment_id = ? AND action = ?`

	queryListAssetChain = `
		SELECT id, hash, previous_hash, sender_id, receiver_id, asset_id, amount, action,
		       source_ip, card_id, primary_card_id, bridge_payment_id, comment, created_at
		FROM transactions
		WHERE asset_id = ?
		ORDER BY created_at DESC, rowid DESC`

	// Bridge payment queries
	queryInsertBridgePayment = `
		INSERT INTO bridge_payments (id, external_ref, wallet_id, asset_id, amount)
		VALUES (?, ?, ?, ?, ?)`

	queryGetBridgePayment = `
		SELECT id, external_ref, wallet_id, asset_id, amount, refunded, status, created_at, updated_at
		FROM bridge_payments
		WHERE external_ref = ?`

	queryClaimBridgePayment = `
		UPDATE bridge_payments
		SET status = 'in_progress', updated_at = CURRENT_TIMESTAMP
		WHERE external_ref = ? AND status IN ('pending', 'error')`

	querySettleBridgePayment = `
		UPDATE bridge_payments
		SET status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE external_ref = ?`

	queryListRefundableBridgePayments = `
		SELECT id, external_ref, wallet_id, asset_id, amount, refunded, status, created_at, updated_at
		FROM bridge_payments
		WHERE wallet_id = ? AND status = 'paid' AND refunded < amount
		ORDER BY created_at DESC, rowid DESC`

	queryAddBridgeRefund = `
		UPDATE bridge_payments
		SET refunded = refunded + ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND refunded + ? <= amount`

	// Card queries
	queryInsertOrigin = `
		INSERT INTO origins (id, name, generation) VALUES (?, ?, ?)`

	queryGetOrigin = `
		SELECT id, name, generation, created_at
		FROM origins
		WHERE name = ? AND generation = ?`

	queryInsertCard = `
		INSERT INTO cards (id, uid, origin_id, wallet_id) VALUES (?, ?, ?, ?)`

	queryGetCardByUID = `
		SELECT id, uid, origin_id, wallet_id, user_wallet_id, created_at
		FROM cards
		WHERE uid = ?`

	queryBindCardToUser = `
		UPDATE cards SET user_wallet_id = ? WHERE id = ?`
)
