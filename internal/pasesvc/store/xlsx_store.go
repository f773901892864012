package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/avvvet/pases-service/internal/pasesvc/models"
	log "github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

// XlsxFileName is the workbook kept under the data directory.
const XlsxFileName = "pases.xlsx"

// XlsxStore keeps the ledger in one sheet of a shared .xlsx workbook.
//
// Every change to the file is a read-modify-write of the whole workbook and
// runs on the file's WriteSerializer lane, shared by all stores of this
// process that point at the same path. Two processes writing the same file
// are not supported.
//
// List does not wait for queued appends: a listing taken while an append is
// still in the lane may not include it. Files are replaced by rename, so a
// reader always sees a complete workbook.
type XlsxStore struct {
	path string
	lane *WriteSerializer
	now  func() time.Time

	mu     sync.Mutex
	ready  bool
	closed bool
}

// NewXlsxStore opens a store on the workbook at path. The file is not touched
// until Ensure or Append.
func NewXlsxStore(path string) (*XlsxStore, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}

	return &XlsxStore{
		path: abs,
		lane: acquireLane(abs),
		now:  time.Now,
	}, nil
}

func (s *XlsxStore) Path() string {
	return s.path
}

// Ensure creates the workbook, the Pases sheet and its header row when any of
// them is missing. Existing rows are never rewritten.
func (s *XlsxStore) Ensure(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ready {
		return nil
	}

	if err := s.lane.Submit(ctx, s.prepareWorkbook); err != nil {
		return fmt.Errorf("%w: prepare %s: %w", ErrPersistence, s.path, err)
	}

	s.ready = true
	log.WithField("file", s.path).Debug("pases workbook ready")
	return nil
}

func (s *XlsxStore) prepareWorkbook() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}

	f, created, err := openOrCreateWorkbook(s.path)
	if err != nil {
		return err
	}
	defer f.Close()

	changed := created

	idx, err := f.GetSheetIndex(SheetName)
	if err != nil {
		return err
	}
	if idx == -1 {
		if created {
			err = f.SetSheetName(f.GetSheetName(0), SheetName)
		} else {
			_, err = f.NewSheet(SheetName)
		}
		if err != nil {
			return err
		}
		changed = true
	}

	rows, err := f.GetRows(SheetName)
	if err != nil {
		return err
	}
	if len(rows) == 0 || isBlankRow(rows[0]) {
		header := make([]any, len(models.Header))
		for i, h := range models.Header {
			header[i] = h
		}
		if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
			return err
		}
		changed = true
	}

	if !changed {
		return nil
	}
	return saveWorkbook(f, s.path)
}

func (s *XlsxStore) List(ctx context.Context) ([]models.PassRecord, error) {
	records := make([]models.PassRecord, 0)

	f, err := excelize.OpenFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return records, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrPersistence, s.path, err)
	}
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	if err != nil {
		return nil, fmt.Errorf("%w: read sheet %s: %w", ErrPersistence, SheetName, err)
	}

	for i, row := range rows {
		if i == 0 || isBlankRow(row) {
			continue
		}
		records = append(records, rowToRecord(row, i+1))
	}

	// fixed width timestamps: string order is time order
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp > records[j].Timestamp
	})

	return records, nil
}

// Append writes rec as the next row and stamps it with the file's clock,
// which never goes backwards even if the wall clock does. Text a cell would
// not hold verbatim is refused rather than stored altered.
func (s *XlsxStore) Append(ctx context.Context, rec models.PassRecord) (models.PassRecord, error) {
	if err := models.CheckCells(rec); err != nil {
		return models.PassRecord{}, fmt.Errorf("%w: append to %s: %w", ErrPersistence, s.path, err)
	}

	if err := s.Ensure(ctx); err != nil {
		return models.PassRecord{}, err
	}

	err := s.lane.Submit(ctx, func() error {
		f, err := excelize.OpenFile(s.path)
		if err != nil {
			return err
		}
		defer f.Close()

		rows, err := f.GetRows(SheetName)
		if err != nil {
			return err
		}

		rec.Timestamp = s.nextTimestamp(rows)

		cell, err := excelize.CoordinatesToCellName(1, max(len(rows)+1, 2))
		if err != nil {
			return err
		}
		row := []any{rec.Timestamp, rec.Para, rec.Pases, rec.ID, rec.Link, rec.User}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return err
		}

		return saveWorkbook(f, s.path)
	})
	if err != nil {
		return models.PassRecord{}, fmt.Errorf("%w: append to %s: %w", ErrPersistence, s.path, err)
	}

	return rec, nil
}

// Close releases this store's hold on the file lane.
func (s *XlsxStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		releaseLane(s.path)
	}
	return nil
}

func (s *XlsxStore) nextTimestamp(rows [][]string) string {
	now := s.now().UTC().Truncate(time.Microsecond)

	latest := ""
	for i, row := range rows {
		if i == 0 || len(row) == 0 {
			continue
		}
		if row[0] > latest {
			latest = row[0]
		}
	}
	if latest == "" {
		return models.FormatTimestamp(now)
	}

	last, err := models.ParseTimestamp(latest)
	if err != nil {
		log.WithField("timestamp", latest).Warn("unparsable timestamp in pases sheet")
		return models.FormatTimestamp(now)
	}
	if !now.After(last) {
		now = last.Add(time.Microsecond)
	}
	return models.FormatTimestamp(now)
}

func rowToRecord(row []string, line int) models.PassRecord {
	cells := make([]string, len(models.Header))
	copy(cells, row)

	pases, err := strconv.Atoi(strings.TrimSpace(cells[2]))
	if err != nil {
		log.WithFields(log.Fields{"row": line, "value": cells[2]}).Warn("pases cell is not an integer")
	}

	return models.PassRecord{
		Timestamp: cells[0],
		Para:      cells[1],
		Pases:     pases,
		ID:        cells[3],
		Link:      cells[4],
		User:      cells[5],
	}
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func openOrCreateWorkbook(path string) (*excelize.File, bool, error) {
	_, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return excelize.NewFile(), true, nil
	}
	if err != nil {
		return nil, false, err
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, false, err
	}
	return f, false, nil
}

// saveWorkbook writes f next to path and renames it into place.
func saveWorkbook(f *excelize.File, path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".pases-*.xlsx")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := f.Write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), path)
}
