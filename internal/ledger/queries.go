package ledger

const (
	queryChainHead = `
		SELECT hash, created_at
		FROM transactions
		WHERE asset_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT 1`

	queryChainAscending = `
		SELECT id, hash, previous_hash, sender_id, receiver_id, asset_id, amount, action,
		       source_ip, card_id, primary_card_id, bridge_payment_id, comment, created_at
		FROM transactions
		WHERE asset_id = ?
		ORDER BY created_at ASC, rowid ASC`

	queryCountAction = `
		SELECT COUNT(1) FROM transactions WHERE asset_id = ? AND action = ?`

	queryInsertTransaction = `
		INSERT INTO transactions (id, hash, previous_hash, sender_id, receiver_id, asset_id,
		                          amount, action, source_ip, card_id, primary_card_id,
		                          bridge_payment_id, comment, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetToken = `
		SELECT id, value, version
		FROM tokens
		WHERE wallet_id = ? AND asset_id = ?`

	queryInsertToken = `
		INSERT INTO tokens (id, wallet_id, asset_id, value, last_transaction_id)
		VALUES (?, ?, ?, ?, ?)`

	queryUpdateToken = `
		UPDATE tokens
		SET value = ?, last_transaction_id = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND version = ?`

	queryListWalletTokens = `
		SELECT asset_id, value
		FROM tokens
		WHERE wallet_id = ? AND value > 0
		ORDER BY asset_id`

	querySumCredits = `
		SELECT COALESCE(SUM(amount), 0)
		FROM transactions
		WHERE receiver_id = ? AND asset_id = ? AND action != 'FIRST'`

	querySumDebits = `
		SELECT COALESCE(SUM(amount), 0)
		FROM transactions
		WHERE sender_id = ? AND asset_id = ? AND action NOT IN ('FIRST', 'CREATION')`
)
