package ledger

import (
	"testing"
	"time"

	"ledger-hub-go/internal/models"
)

func TestComputeHash_Deterministic(t *testing.T) {
	entry := &models.Transaction{
		SenderId:     "sender-1",
		ReceiverId:   "receiver-1",
		AssetId:      "asset-1",
		Amount:       1500,
		Action:       ActionSale,
		PreviousHash: "abc123",
		CreatedAt:    time.Date(2026, 3, 14, 9, 26, 53, 589793238, time.UTC),
	}
	entry.Hash = ComputeHash(entry)

	if !VerifyHash(entry) {
		t.Fatal("freshly computed hash does not verify")
	}
	if entry.Hash != ComputeHash(entry) {
		t.Error("hash is not deterministic")
	}
}

func TestVerifyHash_DetectsTampering(t *testing.T) {
	entry := &models.Transaction{
		SenderId:     "sender-1",
		ReceiverId:   "receiver-1",
		AssetId:      "asset-1",
		Amount:       1500,
		Action:       ActionSale,
		PreviousHash: "abc123",
		CreatedAt:    time.Now().UTC(),
	}
	entry.Hash = ComputeHash(entry)

	tampered := *entry
	tampered.Amount = 1501
	if VerifyHash(&tampered) {
		t.Error("amount tampering went undetected")
	}

	relinked := *entry
	relinked.PreviousHash = "abc124"
	if VerifyHash(&relinked) {
		t.Error("previous hash tampering went undetected")
	}
}

func TestCanonicalPayload_NormalizesTimezone(t *testing.T) {
	paris := time.FixedZone("CET", 3600)
	local := &models.Transaction{
		SenderId: "s", ReceiverId: "r", AssetId: "a", Amount: 1, Action: ActionTransfer,
		CreatedAt: time.Date(2026, 1, 2, 13, 0, 0, 0, paris),
	}
	utc := &models.Transaction{
		SenderId: "s", ReceiverId: "r", AssetId: "a", Amount: 1, Action: ActionTransfer,
		CreatedAt: time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC),
	}
	if ComputeHash(local) != ComputeHash(utc) {
		t.Error("equal instants in different zones hash differently")
	}
}
