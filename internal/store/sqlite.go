package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/joescharf/pmo/internal/models"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, no CGO).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// One writer at a time; the local API and MCP server share this handle.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", strings.ToLower(pragma), err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// newULID generates a new ULID string.
func newULID() string {
	entropy := rand.New(rand.NewSource(time.Now().UnixNano()))
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(entropy, 0)).String()
}

// Migrate runs all embedded SQL migration files in order.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()

		var count int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Reviews ---

// UpsertReviews replaces the cached snapshot of each review in one transaction.
func (s *SQLiteStore) UpsertReviews(ctx context.Context, reviews []*models.Review) error {
	if len(reviews) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	for _, r := range reviews {
		if r == nil || r.ID == "" {
			continue
		}
		payload, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("encode review %s: %w", r.ID, err)
		}

		var reviewedAt sql.NullTime
		if r.ReviewedAt != nil {
			reviewedAt = sql.NullTime{Time: r.ReviewedAt.UTC(), Valid: true}
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO reviews (id, status, source, type, payload, created_at, reviewed_at, fetched_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				status=excluded.status, source=excluded.source, type=excluded.type,
				payload=excluded.payload, created_at=excluded.created_at,
				reviewed_at=excluded.reviewed_at, fetched_at=excluded.fetched_at`,
			r.ID, string(r.Status), string(r.Source), string(r.Type), string(payload),
			r.CreatedAt.UTC(), reviewedAt, now,
		)
		if err != nil {
			return fmt.Errorf("upsert review %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetReview(ctx context.Context, id string) (*models.Review, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, "SELECT payload FROM reviews WHERE id = ?", id).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("review %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get review: %w", err)
	}
	return decodeReview(payload)
}

// ListReviews returns cached reviews, newest first.
func (s *SQLiteStore) ListReviews(ctx context.Context, filter ReviewFilter) ([]*models.Review, error) {
	query := "SELECT payload FROM reviews"
	var args []any
	if filter.Status != "" {
		query += " WHERE status = ?"
		args = append(args, string(filter.Status))
	}
	query += " ORDER BY created_at DESC, id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var reviews []*models.Review
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		r, err := decodeReview(payload)
		if err != nil {
			return nil, err
		}
		reviews = append(reviews, r)
	}
	return reviews, rows.Err()
}

func decodeReview(payload string) (*models.Review, error) {
	var r models.Review
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		return nil, fmt.Errorf("decode cached review: %w", err)
	}
	return &r, nil
}

// --- Actions ---

func (s *SQLiteStore) RecordAction(ctx context.Context, a *models.ReviewAction) error {
	if a.ID == "" {
		a.ID = newULID()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO review_actions (id, review_id, kind, outcome, detail, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.ReviewID, string(a.Kind), string(a.Outcome), a.Detail, a.Error, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("record action: %w", err)
	}
	return nil
}

// ListActions returns the action log for a review, oldest first.
func (s *SQLiteStore) ListActions(ctx context.Context, reviewID string) ([]*models.ReviewAction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, review_id, kind, outcome, detail, error, created_at
		FROM review_actions WHERE review_id = ? ORDER BY created_at, id`, reviewID)
	if err != nil {
		return nil, fmt.Errorf("list actions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var actions []*models.ReviewAction
	for rows.Next() {
		a := &models.ReviewAction{}
		var kind, outcome string
		if err := rows.Scan(&a.ID, &a.ReviewID, &kind, &outcome, &a.Detail, &a.Error, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		a.Kind = models.ActionKind(kind)
		a.Outcome = models.ActionOutcome(outcome)
		actions = append(actions, a)
	}
	return actions, rows.Err()
}
