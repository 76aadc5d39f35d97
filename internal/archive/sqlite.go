package archive

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/lox/fairtable/internal/hand"
)

//go:embed schema.sql
var schema string

// ErrNotFound is returned when a hand is not in the archive.
var ErrNotFound = errors.New("archive: not found")

// SQLite archives hands, stack deltas and incidents in a SQLite database.
// Histories are stored as JSON alongside indexed columns.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at path and applies the schema.
// ":memory:" opens a private in-memory database.
func OpenSQLite(path string) (*SQLite, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("archive: database path is required")
	}
	dsn := path
	if path != ":memory:" {
		dsn = filepath.Clean(path)
	}
	dsn += "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if path == ":memory:" {
		// Each connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Close releases the database.
func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveHand stores a finished hand. Hands are immutable; saving the same
// hand twice fails.
func (s *SQLite) SaveHand(ctx context.Context, h *hand.History) error {
	data, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("encode hand %s: %w", h.HandID, err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO hands (
	hand_id,
	table_id,
	hand_number,
	started_at,
	ended_at,
	voided,
	commitment_root,
	history
) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`,
		h.HandID,
		h.TableID,
		int64(h.HandNumber),
		h.StartedAt.UTC().UnixMilli(),
		h.EndedAt.UTC().UnixMilli(),
		h.Voided,
		hex.EncodeToString(h.Commitment.Root),
		string(data),
	)
	if err != nil {
		return fmt.Errorf("save hand %s: %w", h.HandID, err)
	}
	return nil
}

// SaveStackDeltas records the chip changes of one hand, or a cash-out
// outside a hand when handID is empty.
func (s *SQLite) SaveStackDeltas(ctx context.Context, tableID, handID string, deltas []StackDelta) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO stack_deltas (table_id, hand_id, player_id, delta, stack, cash_out)
VALUES (?, ?, ?, ?, ?, ?)
`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, d := range deltas {
		if _, err := stmt.ExecContext(ctx, tableID, handID, d.PlayerID, d.Delta, d.Stack, d.CashOut); err != nil {
			return fmt.Errorf("save delta for %s: %w", d.PlayerID, err)
		}
	}
	return tx.Commit()
}

// ReportIncident records a voided hand or frozen table.
func (s *SQLite) ReportIncident(ctx context.Context, inc Incident) error {
	if inc.At.IsZero() {
		inc.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO incidents (table_id, hand_id, severity, error, at)
VALUES (?, ?, ?, ?, ?)
`, inc.TableID, inc.HandID, inc.Severity, inc.Error, inc.At.UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("report incident: %w", err)
	}
	return nil
}

// LoadHand returns an archived hand.
func (s *SQLite) LoadHand(ctx context.Context, handID string) (*hand.History, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT history FROM hands WHERE hand_id = ?`, handID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: hand %s", ErrNotFound, handID)
	}
	if err != nil {
		return nil, fmt.Errorf("load hand %s: %w", handID, err)
	}
	var h hand.History
	if err := json.Unmarshal([]byte(data), &h); err != nil {
		return nil, fmt.Errorf("decode hand %s: %w", handID, err)
	}
	return &h, nil
}

// HandIDs lists a table's archived hands in the order they were dealt.
func (s *SQLite) HandIDs(ctx context.Context, tableID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT hand_id FROM hands WHERE table_id = ? ORDER BY hand_number, started_at
`, tableID)
	if err != nil {
		return nil, fmt.Errorf("list hands: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan hand: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// PlayerNet sums a player's results at a table.
func (s *SQLite) PlayerNet(ctx context.Context, tableID, playerID string) (int64, error) {
	var net sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
SELECT SUM(delta) FROM stack_deltas WHERE table_id = ? AND player_id = ?
`, tableID, playerID).Scan(&net)
	if err != nil {
		return 0, fmt.Errorf("player net: %w", err)
	}
	return net.Int64, nil
}

// Incidents lists a table's incidents, oldest first.
func (s *SQLite) Incidents(ctx context.Context, tableID string) ([]Incident, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT table_id, hand_id, severity, error, at FROM incidents WHERE table_id = ? ORDER BY id
`, tableID)
	if err != nil {
		return nil, fmt.Errorf("list incidents: %w", err)
	}
	defer rows.Close()

	var out []Incident
	for rows.Next() {
		var inc Incident
		var at int64
		if err := rows.Scan(&inc.TableID, &inc.HandID, &inc.Severity, &inc.Error, &at); err != nil {
			return nil, fmt.Errorf("scan incident: %w", err)
		}
		inc.At = time.UnixMilli(at).UTC()
		out = append(out, inc)
	}
	return out, rows.Err()
}
