package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/kalambet/paris/internal/profile"
	"github.com/kalambet/paris/internal/session"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrHistoryRewrite is returned when an upsert's history does not start with
// the turns already stored. Turns are append-only.
var ErrHistoryRewrite = errors.New("conversation history is append-only")

// Store is a session.Store backed by SQLite.
type Store struct {
	db *sql.DB
}

var _ session.Store = (*Store)(nil)

// Open opens (or creates) a SQLite database in dataDir and runs pending migrations.
// Pass ":memory:" as dataDir for an in-memory database (used by tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "paris.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// A single connection keeps ":memory:" databases alive and avoids
	// "database is locked" errors.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying %q: %w", pragma, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate applies embedded SQL migrations that haven't been run yet, in
// filename order.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}
	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// --- Sessions ---

type sessionRow struct {
	id, key, role, language, dataJSON, createdAt, updatedAt string
}

func (s *Store) Get(ctx context.Context, key session.Key) (profile.Session, error) {
	var r sessionRow
	err := s.db.QueryRowContext(ctx, `
		SELECT id, session_key, role, language, data_json, created_at, updated_at
		FROM sessions WHERE session_key = ? AND role = ?`, key.ID, string(key.Role),
	).Scan(&r.id, &r.key, &r.role, &r.language, &r.dataJSON, &r.createdAt, &r.updatedAt)
	if err == sql.ErrNoRows {
		return profile.Session{}, session.ErrNotFound
	}
	if err != nil {
		return profile.Session{}, fmt.Errorf("loading session %s: %w", key, err)
	}
	return s.hydrate(ctx, r)
}

func (s *Store) Upsert(ctx context.Context, key session.Key, sess profile.Session) error {
	data := sess.Fields
	if data == nil {
		data = profile.FieldSet{}
	}
	dataJSON, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshalling fields: %w", err)
	}

	now := time.Now().UTC()
	updatedAt := sess.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = now
	}
	createdAt := sess.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning upsert transaction: %w", err)
	}
	defer tx.Rollback()

	var id string
	err = tx.QueryRowContext(ctx, `SELECT id FROM sessions WHERE session_key = ? AND role = ?`, key.ID, string(key.Role)).Scan(&id)
	switch {
	case err == sql.ErrNoRows:
		id = sess.ID
		if id == "" {
			id = uuid.New().String()
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO sessions (id, session_key, role, language, data_json, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id, key.ID, string(key.Role), string(sess.Language), string(dataJSON),
			createdAt.UTC().Format(time.RFC3339Nano), updatedAt.UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("inserting session %s: %w", key, err)
		}
	case err != nil:
		return fmt.Errorf("looking up session %s: %w", key, err)
	default:
		// Language is pinned at creation and never rewritten.
		_, err = tx.ExecContext(ctx, `UPDATE sessions SET data_json = ?, updated_at = ? WHERE id = ?`,
			string(dataJSON), updatedAt.UTC().Format(time.RFC3339Nano), id)
		if err != nil {
			return fmt.Errorf("updating session %s: %w", key, err)
		}
	}

	stored, err := storedPrefixLen(ctx, tx, id, sess.History)
	if err != nil {
		return err
	}

	for seq := stored; seq < len(sess.History); seq++ {
		t := sess.History[seq]
		_, err := tx.ExecContext(ctx, `
			INSERT INTO turns (id, session_id, seq, speaker, content, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), id, seq, string(t.Speaker), t.Content, now.Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("appending turn %d: %w", seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing session %s: %w", key, err)
	}
	return nil
}

// storedPrefixLen returns how many turns are already stored for the session,
// after checking that they match the head of history.
func storedPrefixLen(ctx context.Context, tx *sql.Tx, id string, history []profile.Turn) (int, error) {
	rows, err := tx.QueryContext(ctx, `SELECT speaker, content FROM turns WHERE session_id = ? ORDER BY seq ASC`, id)
	if err != nil {
		return 0, fmt.Errorf("reading stored turns: %w", err)
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var speaker, content string
		if err := rows.Scan(&speaker, &content); err != nil {
			return 0, fmt.Errorf("scanning stored turn: %w", err)
		}
		if n >= len(history) {
			return 0, fmt.Errorf("%w: more stored turns than the %d given", ErrHistoryRewrite, len(history))
		}
		if t := history[n]; string(t.Speaker) != speaker || t.Content != content {
			return 0, fmt.Errorf("%w: turn %d differs from stored", ErrHistoryRewrite, n)
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("reading stored turns: %w", err)
	}
	return n, nil
}

func (s *Store) List(ctx context.Context) ([]session.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_key, role, language, data_json, created_at, updated_at
		FROM sessions ORDER BY role ASC, session_key ASC`)
	if err != nil {
		return nil, err
	}

	var raw []sessionRow
	for rows.Next() {
		var r sessionRow
		if err := rows.Scan(&r.id, &r.key, &r.role, &r.language, &r.dataJSON, &r.createdAt, &r.updatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		raw = append(raw, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	out := make([]session.Record, 0, len(raw))
	for _, r := range raw {
		sess, err := s.hydrate(ctx, r)
		if err != nil {
			return nil, err
		}
		out = append(out, session.Record{
			Key:     session.Key{ID: r.key, Role: profile.Role(r.role)},
			Session: sess,
		})
	}
	return out, nil
}

// hydrate builds a Session from its row and its turns.
func (s *Store) hydrate(ctx context.Context, r sessionRow) (profile.Session, error) {
	sess := profile.Session{
		ID:       r.id,
		Role:     profile.Role(r.role),
		Language: profile.Language(r.language),
		Fields:   profile.FieldSet{},
	}
	if err := json.Unmarshal([]byte(r.dataJSON), &sess.Fields); err != nil {
		return profile.Session{}, fmt.Errorf("decoding fields of session %s: %w", r.id, err)
	}
	if sess.Fields == nil {
		sess.Fields = profile.FieldSet{}
	}

	var err error
	if sess.CreatedAt, err = time.Parse(time.RFC3339Nano, r.createdAt); err != nil {
		return profile.Session{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if sess.UpdatedAt, err = time.Parse(time.RFC3339Nano, r.updatedAt); err != nil {
		return profile.Session{}, fmt.Errorf("parsing updated_at: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT speaker, content FROM turns WHERE session_id = ? ORDER BY seq ASC`, r.id)
	if err != nil {
		return profile.Session{}, fmt.Errorf("loading turns: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var speaker, content string
		if err := rows.Scan(&speaker, &content); err != nil {
			return profile.Session{}, err
		}
		sess.History = append(sess.History, profile.Turn{Speaker: profile.Speaker(speaker), Content: content})
	}
	return sess, rows.Err()
}
