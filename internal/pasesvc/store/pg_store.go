package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/avvvet/pases-service/internal/pasesvc/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	log "github.com/sirupsen/logrus"
)

// PgConn is the slice of *pgxpool.Pool used by PgStore.
type PgConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

const (
	createPasesTable = `
		CREATE TABLE IF NOT EXISTS pases (
			id SERIAL PRIMARY KEY,
			created_at TIMESTAMPTZ DEFAULT NOW(),
			para TEXT NOT NULL,
			pases INT NOT NULL,
			ref_id TEXT NOT NULL,
			link TEXT NOT NULL,
			usuario TEXT
		)
	`
	createPasesIndex = `CREATE INDEX IF NOT EXISTS pases_created_at_idx ON pases (created_at DESC)`

	listPases = `
		SELECT created_at, para, pases, ref_id, link, COALESCE(usuario, '')
		FROM pases
		ORDER BY created_at DESC, id ASC
	`
	insertPase = `
		INSERT INTO pases (para, pases, ref_id, link, usuario)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`
)

// PgStore keeps the ledger in the postgres table "pases".
type PgStore struct {
	db PgConn

	mu    sync.Mutex
	ready bool
}

func NewPgStore(db PgConn) *PgStore {
	return &PgStore{db: db}
}

// Ensure creates the table once per store. Concurrent callers wait for the
// first one; a lost CREATE race against another process counts as success.
func (s *PgStore) Ensure(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ready {
		return nil
	}

	for _, stmt := range []string{createPasesTable, createPasesIndex} {
		if _, err := s.db.Exec(ctx, stmt); err != nil && !isDuplicateObject(err) {
			return fmt.Errorf("%w: create pases table: %w", ErrPersistence, err)
		}
	}

	s.ready = true
	log.Debug("pases table ready")
	return nil
}

func (s *PgStore) List(ctx context.Context) ([]models.PassRecord, error) {
	rows, err := s.db.Query(ctx, listPases)
	if err != nil {
		return nil, fmt.Errorf("%w: query pases: %w", ErrPersistence, err)
	}
	defer rows.Close()

	records := make([]models.PassRecord, 0)
	for rows.Next() {
		var (
			rec       models.PassRecord
			createdAt time.Time
		)
		err := rows.Scan(
			&createdAt,
			&rec.Para,
			&rec.Pases,
			&rec.ID,
			&rec.Link,
			&rec.User,
		)
		if err != nil {
			return nil, fmt.Errorf("%w: scan pase: %w", ErrPersistence, err)
		}
		rec.Timestamp = models.FormatTimestamp(createdAt)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: read pases: %w", ErrPersistence, err)
	}

	return records, nil
}

// Append inserts rec and lets the database stamp created_at.
func (s *PgStore) Append(ctx context.Context, rec models.PassRecord) (models.PassRecord, error) {
	var createdAt time.Time
	err := s.db.QueryRow(ctx, insertPase,
		rec.Para,
		rec.Pases,
		rec.ID,
		rec.Link,
		nullable(rec.User),
	).Scan(&createdAt)
	if err != nil {
		return models.PassRecord{}, fmt.Errorf("%w: insert pase: %w", ErrPersistence, err)
	}

	rec.Timestamp = models.FormatTimestamp(createdAt)
	return rec, nil
}

func (s *PgStore) Close() error {
	s.db.Close()
	return nil
}

// isDuplicateObject reports the errors postgres raises when two sessions
// race on CREATE ... IF NOT EXISTS.
func isDuplicateObject(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "23505", "42P07":
		return true
	}
	return false
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
