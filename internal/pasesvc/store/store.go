package store

import (
	"context"
	"errors"

	"github.com/avvvet/pases-service/internal/pasesvc/models"
)

// ErrPersistence wraps every failure reading or writing the medium.
var ErrPersistence = errors.New("persistence error")

// Backend is a durable medium for the pases ledger.
//
// Ensure must be idempotent and safe under concurrent callers. List returns
// records by timestamp descending, ties in insertion order, and an empty
// slice (not nil) when the ledger is empty. Append stores an already
// validated record and returns it as stored, timestamp included.
type Backend interface {
	Ensure(ctx context.Context) error
	List(ctx context.Context) ([]models.PassRecord, error)
	Append(ctx context.Context, rec models.PassRecord) (models.PassRecord, error)
	Close() error
}

const (
	// TableName is the relational table and the mongo collection.
	TableName = "pases"
	// SheetName is the worksheet holding the ledger in the xlsx backend.
	SheetName = models.SheetName
)
