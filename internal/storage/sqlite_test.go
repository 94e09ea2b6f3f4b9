package storage_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/nilvm/node/internal/storage"
)

func openTestDB(t *testing.T) *storage.Bookkeeping {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := storage.Open(path)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestInsertNonceRejectsDuplicate(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	nonce := []byte("some-32-byte-nonce-value-000000")
	expires := time.Now().Add(time.Hour)

	if err := db.InsertNonce(ctx, nonce, "AuthToken", expires); err != nil {
		t.Fatalf("first InsertNonce returned error: %v", err)
	}
	if err := db.InsertNonce(ctx, nonce, "AuthToken", expires); err != storage.ErrDuplicateNonce {
		t.Fatalf("expected ErrDuplicateNonce, got %v", err)
	}
	// Same nonce, different kind, is not a duplicate.
	if err := db.InsertNonce(ctx, nonce, "Receipt", expires); err != nil {
		t.Fatalf("expected distinct kind to succeed: %v", err)
	}
}

func TestEvictExpiredNonces(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	if err := db.InsertNonce(ctx, []byte("expired"), "AuthToken", past); err != nil {
		t.Fatalf("InsertNonce returned error: %v", err)
	}
	if err := db.InsertNonce(ctx, []byte("live"), "AuthToken", future); err != nil {
		t.Fatalf("InsertNonce returned error: %v", err)
	}

	n, err := db.EvictExpiredNonces(ctx, time.Now())
	if err != nil {
		t.Fatalf("EvictExpiredNonces returned error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 row evicted, got %d", n)
	}
}

func TestCreditAccountAccumulatesBalance(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now()

	if err := db.CreditAccount(ctx, "alice", 100, "tx1", now); err != nil {
		t.Fatalf("CreditAccount returned error: %v", err)
	}
	if err := db.CreditAccount(ctx, "alice", 50, "tx2", now); err != nil {
		t.Fatalf("CreditAccount returned error: %v", err)
	}

	bal, ok, err := db.GetBalance(ctx, "alice")
	if err != nil {
		t.Fatalf("GetBalance returned error: %v", err)
	}
	if !ok {
		t.Fatal("expected balance row to exist")
	}
	if bal.Balance != 150 {
		t.Fatalf("expected balance 150, got %d", bal.Balance)
	}
}

func TestCreditAccountRejectsDuplicateTransfer(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now()

	if err := db.CreditAccount(ctx, "alice", 100, "tx1", now); err != nil {
		t.Fatalf("CreditAccount returned error: %v", err)
	}
	if err := db.CreditAccount(ctx, "alice", 100, "tx1", now); err == nil {
		t.Fatal("expected duplicate tx_hash to be rejected")
	}
}

func TestPreprocessingOffsetsRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	loaded, err := db.LoadOffsets(ctx, "Compare")
	if err != nil {
		t.Fatalf("LoadOffsets returned error: %v", err)
	}
	if loaded.GeneratedOffset != -1 {
		t.Fatalf("expected default -1, got %d", loaded.GeneratedOffset)
	}

	if err := db.SaveOffsets(ctx, storage.PreprocessingOffsets{
		Element:              "Compare",
		GeneratedOffset:       1024,
		CandidateDeleteOffset: 512,
		DeletedOffset:         256,
	}); err != nil {
		t.Fatalf("SaveOffsets returned error: %v", err)
	}

	loaded, err = db.LoadOffsets(ctx, "Compare")
	if err != nil {
		t.Fatalf("LoadOffsets returned error: %v", err)
	}
	if loaded.GeneratedOffset != 1024 || loaded.CandidateDeleteOffset != 512 || loaded.DeletedOffset != 256 {
		t.Fatalf("unexpected offsets after save: %+v", loaded)
	}
}

func TestBlobExpirations(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	past := time.Now().Add(-time.Minute)
	future := time.Now().Add(time.Hour)

	if err := db.RecordBlobExpiration(ctx, "program-1", "program", past); err != nil {
		t.Fatalf("RecordBlobExpiration returned error: %v", err)
	}
	if err := db.RecordBlobExpiration(ctx, "value-1", "value", future); err != nil {
		t.Fatalf("RecordBlobExpiration returned error: %v", err)
	}

	expired, err := db.ExpiredBlobKeys(ctx, time.Now())
	if err != nil {
		t.Fatalf("ExpiredBlobKeys returned error: %v", err)
	}
	if len(expired) != 1 || expired[0].Key != "program-1" {
		t.Fatalf("unexpected expired blobs: %+v", expired)
	}
}
