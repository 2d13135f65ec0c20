// Package history persists submitted transactions and their outcomes
package history

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"swapdesk/internal/core"
)

// Record is one submitted swap or deposit and its lifecycle
type Record struct {
	RequestID   string       `json:"request_id"`
	Kind        string       `json:"kind"` // "swap" or "provision"
	WalletAddr  string       `json:"wallet_address"`
	AssetA      core.Asset   `json:"asset_a"`
	AssetB      core.Asset   `json:"asset_b"`
	AmountA     string       `json:"amount_a"`
	AmountB     string       `json:"amount_b"`
	PoolAddress string       `json:"pool_address,omitempty"`
	State       core.TxState `json:"state"`
	Hash        string       `json:"hash,omitempty"`
	Detail      string       `json:"detail,omitempty"`
	SubmittedAt time.Time    `json:"submitted_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Store keeps records in SQLite with WAL journaling. Each row carries a
// checksum of its payload to detect corruption on read.
type Store struct {
	db *sql.DB
}

func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Enable WAL mode for crash recovery
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	schema := `CREATE TABLE IF NOT EXISTS history (
		request_id   TEXT PRIMARY KEY,
		data         TEXT NOT NULL,
		checksum     BLOB NOT NULL,
		submitted_at INTEGER NOT NULL,
		updated_at   INTEGER NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Save inserts or replaces a record
func (s *Store) Save(ctx context.Context, rec *Record) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	rec.UpdatedAt = time.Now()
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	checksum := sha256.Sum256(data)
	query := `INSERT OR REPLACE INTO history (request_id, data, checksum, submitted_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`
	_, err = tx.ExecContext(ctx, query, rec.RequestID, string(data), checksum[:],
		rec.SubmittedAt.UnixNano(), rec.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}

	return tx.Commit()
}

// UpdateStatus applies a status snapshot to an existing record
func (s *Store) UpdateStatus(ctx context.Context, st core.TxStatus) error {
	rec, err := s.Get(ctx, st.RequestID)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("no history record for request %s", st.RequestID)
	}

	rec.State = st.State
	if st.Hash != "" {
		rec.Hash = st.Hash
	}
	rec.Detail = st.Detail
	return s.Save(ctx, rec)
}

// Get returns the record for requestID, nil when absent
func (s *Store) Get(ctx context.Context, requestID string) (*Record, error) {
	query := `SELECT data, checksum FROM history WHERE request_id = ?`
	var data string
	var storedChecksum []byte
	err := s.db.QueryRowContext(ctx, query, requestID).Scan(&data, &storedChecksum)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read record: %w", err)
	}
	return decodeRecord(data, storedChecksum)
}

// List returns the most recent records, newest first
func (s *Store) List(ctx context.Context, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT data, checksum FROM history ORDER BY submitted_at DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		var data string
		var checksum []byte
		if err := rows.Scan(&data, &checksum); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		rec, err := decodeRecord(data, checksum)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func decodeRecord(data string, storedChecksum []byte) (*Record, error) {
	computed := sha256.Sum256([]byte(data))
	if len(storedChecksum) != len(computed) {
		return nil, fmt.Errorf("checksum length mismatch: expected %d, got %d", len(computed), len(storedChecksum))
	}
	for i := range computed {
		if storedChecksum[i] != computed[i] {
			return nil, fmt.Errorf("checksum verification failed: data corruption detected")
		}
	}

	var rec Record
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}
	return &rec, nil
}

// Ping reports database liveness for health checks
func (s *Store) Ping() error {
	return s.db.Ping()
}

func (s *Store) Close() error {
	return s.db.Close()
}
