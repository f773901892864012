package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/avvvet/pases-service/internal/pasesvc/export"
	"github.com/avvvet/pases-service/internal/pasesvc/models"
	"github.com/avvvet/pases-service/internal/pasesvc/store"
	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"
)

// ErrValidation marks input rejected before it reaches the store.
var ErrValidation = errors.New("validation error")

// postgres INT
const maxPases = math.MaxInt32

// Notifier is told about every record once it is stored.
type Notifier interface {
	PublishPase(rec models.PassRecord) error
}

type PassService struct {
	store    store.Backend
	validate *validator.Validate
	notifier Notifier
}

// NewPassService wraps store; notifier may be nil.
func NewPassService(store store.Backend, notifier Notifier) *PassService {
	return &PassService{
		store:    store,
		validate: newValidator(),
		notifier: notifier,
	}
}

// newValidator adds the "cell" tag: text must survive a workbook cell.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := models.RegisterWithValidator(v); err != nil {
		panic(err)
	}
	return v
}

func (s *PassService) List(ctx context.Context) ([]models.PassRecord, error) {
	if err := s.store.Ensure(ctx); err != nil {
		return nil, err
	}
	return s.store.List(ctx)
}

// Append validates in and stores it. Invalid input returns ErrValidation
// without touching the store.
func (s *PassService) Append(ctx context.Context, in models.PassInput) (models.PassRecord, error) {
	rec, err := s.Validate(in)
	if err != nil {
		return models.PassRecord{}, err
	}

	if err := s.store.Ensure(ctx); err != nil {
		return models.PassRecord{}, err
	}

	stored, err := s.store.Append(ctx, rec)
	if err != nil {
		return models.PassRecord{}, err
	}

	if s.notifier != nil {
		if err := s.notifier.PublishPase(stored); err != nil {
			log.Warnf("pase %s stored but not announced: %s", stored.ID, err)
		}
	}

	return stored, nil
}

// Export renders the current ledger, newest first, as a workbook.
func (s *PassService) Export(ctx context.Context, w io.Writer) error {
	records, err := s.List(ctx)
	if err != nil {
		return err
	}
	return export.WriteWorkbook(w, records)
}

// Validate turns a request body into a record ready to store.
func (s *PassService) Validate(in models.PassInput) (models.PassRecord, error) {
	pases, err := ParseCount(in.Pases)
	if err != nil {
		return models.PassRecord{}, err
	}

	rec := models.PassRecord{
		Para:  strings.TrimSpace(in.Para),
		Pases: pases,
		ID:    strings.TrimSpace(in.ID),
		Link:  strings.TrimSpace(in.Link),
		User:  strings.TrimSpace(in.User),
	}

	if err := s.validate.Struct(rec); err != nil {
		return models.PassRecord{}, fmt.Errorf("%w: %s", ErrValidation, err)
	}

	return rec, nil
}

// ParseCount accepts a JSON number or a numeric string holding a whole
// number from 1 to MaxInt32.
func ParseCount(raw json.RawMessage) (int, error) {
	v := strings.TrimSpace(string(raw))
	if v == "" || v == "null" {
		return 0, fmt.Errorf("%w: pases is required", ErrValidation)
	}

	if strings.HasPrefix(v, `"`) {
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return 0, fmt.Errorf("%w: pases: %s", ErrValidation, err)
		}
		v = strings.TrimSpace(str)
	}

	n, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) || n != math.Trunc(n) {
		return 0, fmt.Errorf("%w: pases %q is not an integer", ErrValidation, v)
	}
	if n < 1 || n > maxPases {
		return 0, fmt.Errorf("%w: pases %q out of range", ErrValidation, v)
	}

	return int(n), nil
}
