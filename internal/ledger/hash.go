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

package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"ledger-hub-go/internal/models"
)

// canonicalPayload encodes the hashed fields of a transaction in a fixed
// order. Timestamps are normalized to UTC RFC 3339 with nanoseconds so the
// digest survives a round trip through the database.
func canonicalPayload(t *models.Transaction) string {
	return strings.Join([]string{
		t.SenderId,
		t.ReceiverId,
		t.AssetId,
		strconv.FormatInt(t.Amount, 10),
		t.Action,
		t.CreatedAt.UTC().Format(time.RFC3339Nano),
		t.PreviousHash,
	}, "|")
}

// ComputeHash returns the hex SHA-256 digest chaining this transaction to
// its predecessor.
func ComputeHash(t *models.Transaction) string {
	sum := sha256.Sum256([]byte(canonicalPayload(t)))
	return hex.EncodeToString(sum[:])
}

// VerifyHash recomputes the digest from the stored fields and compares it
// to the stored hash.
func VerifyHash(t *models.Transaction) bool {
	return t.Hash == ComputeHash(t)
}
