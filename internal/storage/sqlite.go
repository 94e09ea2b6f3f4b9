// Package storage is a node's persistence layer: SQLite bookkeeping
// (account balances, add-funds transfers, used nonces, blob expirations,
// preprocessing offsets) via jmoiron/sqlx over mattn/go-sqlite3, and an
// S3-compatible object store for content-addressed program/value blobs via
// aws-sdk-go-v2. Both the SQLite schema and the bucket layout are
// explicitly out of scope as functionality (spec.md §1 lists "persistent
// blob/object storage" and "SQLite bookkeeping" among the external
// collaborators this specification treats as given) — this package exists
// only to give internal/orchestrator's ProgramStore/ValueStore/OutputStore
// interfaces a concrete backing so the rest of the node can run
// end-to-end, following spec.md §6's minimum schemas verbatim.
//
// republicprotocol/tau has no persistence layer at all (its VM runs
// entirely in memory); this package's shape is therefore grounded on the
// jmoiron/sqlx and aws-sdk-go-v2 dependency manifests retrieved for this
// spec and those libraries' own documented idioms, not on teacher source.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// Bookkeeping wraps a SQLite database holding the tables spec.md §6 names.
type Bookkeeping struct {
	db *sqlx.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS account_balances (
	account    TEXT PRIMARY KEY,
	balance    INTEGER NOT NULL DEFAULT 0 CHECK (balance >= 0),
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS add_funds_transfers (
	tx_hash      TEXT PRIMARY KEY,
	account      TEXT NOT NULL,
	amount       INTEGER NOT NULL,
	processed_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS used_nonces (
	nonce      BLOB NOT NULL,
	kind       TEXT NOT NULL,
	expires_at INTEGER NOT NULL,
	PRIMARY KEY (nonce, kind)
);
CREATE INDEX IF NOT EXISTS used_nonces_expires_at ON used_nonces (expires_at);

CREATE TABLE IF NOT EXISTS blob_expirations (
	key        TEXT NOT NULL,
	kind       TEXT NOT NULL,
	expires_at INTEGER NOT NULL,
	PRIMARY KEY (key, kind)
);
CREATE INDEX IF NOT EXISTS blob_expirations_kind_expires_at ON blob_expirations (kind, expires_at);

CREATE TABLE IF NOT EXISTS preprocessing_offsets (
	element                 TEXT PRIMARY KEY,
	generated_offset        INTEGER NOT NULL DEFAULT -1,
	candidate_delete_offset INTEGER NOT NULL DEFAULT -1,
	deleted_offset          INTEGER NOT NULL DEFAULT -1
);
`

// Open opens (creating if necessary) a SQLite database at dsn and ensures
// every table spec.md §6 names exists.
func Open(dsn string) (*Bookkeeping, error) {
	db, err := sqlx.Connect("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", dsn, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: migrate schema: %w", err)
	}
	return &Bookkeeping{db: db}, nil
}

// Close releases the underlying database handle.
func (b *Bookkeeping) Close() error { return b.db.Close() }

// ErrDuplicateNonce is returned by InsertNonce when (nonce, kind) was
// already recorded — spec.md §8 property 8's nonce-uniqueness invariant.
var ErrDuplicateNonce = fmt.Errorf("storage: nonce already used")

// InsertNonce records a (nonce, kind) pair with its expiry, rejecting a
// duplicate at the storage layer per spec.md §5's shared-resource policy.
func (b *Bookkeeping) InsertNonce(ctx context.Context, nonce []byte, kind string, expiresAt time.Time) error {
	_, err := b.db.ExecContext(ctx,
		`INSERT INTO used_nonces (nonce, kind, expires_at) VALUES (?, ?, ?)`,
		nonce, kind, expiresAt.Unix(),
	)
	if err != nil {
		if isUniqueConstraintErr(err) {
			return ErrDuplicateNonce
		}
		return fmt.Errorf("storage: insert nonce: %w", err)
	}
	return nil
}

// EvictExpiredNonces deletes every used_nonces row whose expiry has
// passed as of now.
func (b *Bookkeeping) EvictExpiredNonces(ctx context.Context, now time.Time) (int64, error) {
	res, err := b.db.ExecContext(ctx, `DELETE FROM used_nonces WHERE expires_at < ?`, now.Unix())
	if err != nil {
		return 0, fmt.Errorf("storage: evict expired nonces: %w", err)
	}
	return res.RowsAffected()
}

// AccountBalance is one row of account_balances.
type AccountBalance struct {
	Account   string `db:"account"`
	Balance   int64  `db:"balance"`
	UpdatedAt int64  `db:"updated_at"`
}

// GetBalance reads an account's current balance, or (0, false) if the
// account has never been credited.
func (b *Bookkeeping) GetBalance(ctx context.Context, account string) (AccountBalance, bool, error) {
	var row AccountBalance
	err := b.db.GetContext(ctx, &row, `SELECT account, balance, updated_at FROM account_balances WHERE account = ?`, account)
	if err == sql.ErrNoRows {
		return AccountBalance{}, false, nil
	}
	if err != nil {
		return AccountBalance{}, false, fmt.Errorf("storage: get balance: %w", err)
	}
	return row, true, nil
}

// CreditAccount upserts account's balance by delta (which may be negative
// for a debit), recording an add_funds_transfers row keyed by txHash so a
// transfer is never applied twice.
func (b *Bookkeeping) CreditAccount(ctx context.Context, account string, delta int64, txHash string, now time.Time) error {
	tx, err := b.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage: begin credit transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO add_funds_transfers (tx_hash, account, amount, processed_at) VALUES (?, ?, ?, ?)`,
		txHash, account, delta, now.Unix(),
	); err != nil {
		if isUniqueConstraintErr(err) {
			return fmt.Errorf("storage: transfer %s already processed", txHash)
		}
		return fmt.Errorf("storage: record transfer: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO account_balances (account, balance, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(account) DO UPDATE SET balance = balance + excluded.balance, updated_at = excluded.updated_at`,
		account, delta, now.Unix(),
	); err != nil {
		return fmt.Errorf("storage: credit account: %w", err)
	}

	return tx.Commit()
}

// PreprocessingOffsets is one element's durable offset row, mirroring
// internal/preprocessing.Pool's in-memory counters for crash recovery.
type PreprocessingOffsets struct {
	Element               string `db:"element"`
	GeneratedOffset        int64  `db:"generated_offset"`
	CandidateDeleteOffset  int64  `db:"candidate_delete_offset"`
	DeletedOffset          int64  `db:"deleted_offset"`
}

// SaveOffsets upserts element's durable offset row.
func (b *Bookkeeping) SaveOffsets(ctx context.Context, o PreprocessingOffsets) error {
	_, err := b.db.ExecContext(ctx,
		`INSERT INTO preprocessing_offsets (element, generated_offset, candidate_delete_offset, deleted_offset)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(element) DO UPDATE SET
			generated_offset = excluded.generated_offset,
			candidate_delete_offset = excluded.candidate_delete_offset,
			deleted_offset = excluded.deleted_offset`,
		o.Element, o.GeneratedOffset, o.CandidateDeleteOffset, o.DeletedOffset,
	)
	if err != nil {
		return fmt.Errorf("storage: save offsets: %w", err)
	}
	return nil
}

// LoadOffsets reads element's durable offset row, defaulting to -1 for
// every column (per spec.md §6) if no row exists yet.
func (b *Bookkeeping) LoadOffsets(ctx context.Context, element string) (PreprocessingOffsets, error) {
	row := PreprocessingOffsets{Element: element, GeneratedOffset: -1, CandidateDeleteOffset: -1, DeletedOffset: -1}
	err := b.db.GetContext(ctx, &row,
		`SELECT element, generated_offset, candidate_delete_offset, deleted_offset FROM preprocessing_offsets WHERE element = ?`,
		element,
	)
	if err == sql.ErrNoRows {
		return row, nil
	}
	if err != nil {
		return PreprocessingOffsets{}, fmt.Errorf("storage: load offsets: %w", err)
	}
	return row, nil
}

// RecordBlobExpiration upserts an expiration for a content-addressed blob
// key of the given kind ("program" or "value").
func (b *Bookkeeping) RecordBlobExpiration(ctx context.Context, key, kind string, expiresAt time.Time) error {
	_, err := b.db.ExecContext(ctx,
		`INSERT INTO blob_expirations (key, kind, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(key, kind) DO UPDATE SET expires_at = excluded.expires_at`,
		key, kind, expiresAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("storage: record blob expiration: %w", err)
	}
	return nil
}

// ExpiredBlobKeys returns every (key, kind) pair whose expiry has passed,
// for a garbage-collection sweep against the object store.
func (b *Bookkeeping) ExpiredBlobKeys(ctx context.Context, now time.Time) ([]struct {
	Key  string `db:"key"`
	Kind string `db:"kind"`
}, error) {
	var rows []struct {
		Key  string `db:"key"`
		Kind string `db:"kind"`
	}
	err := b.db.SelectContext(ctx, &rows, `SELECT key, kind FROM blob_expirations WHERE expires_at < ?`, now.Unix())
	if err != nil {
		return nil, fmt.Errorf("storage: list expired blobs: %w", err)
	}
	return rows, nil
}

func isUniqueConstraintErr(err error) bool {
	// mattn/go-sqlite3 reports constraint violations as *sqlite3.Error with
	// an ExtendedCode of ErrConstraintPrimaryKey/ErrConstraintUnique; we
	// avoid importing the driver's error type directly here (it would tie
	// every caller of this helper to the driver package) and instead match
	// on the message sqlite3 always includes, which is stable across the
	// driver's releases.
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "PRIMARY KEY constraint failed")
}
