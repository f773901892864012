package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/avvvet/pases-service/internal/pasesvc/export"
	"github.com/avvvet/pases-service/internal/pasesvc/models"
	"github.com/avvvet/pases-service/internal/pasesvc/service"
	log "github.com/sirupsen/logrus"
)

const maxBodyBytes = 1 << 20

// error codes returned to clients; causes stay in the server log
const (
	codeBadRequest  = "bad_request"
	codeReadError   = "read_error"
	codeWriteError  = "write_error"
	codeExportError = "export_error"
	codeNotFound    = "not_found"
)

type Handler struct {
	svc *service.PassService
}

func NewHandler(svc *service.PassService) *Handler {
	return &Handler{svc: svc}
}

type Response struct {
	Ok    bool        `json:"ok"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
	Code  int         `json:"-"`
}

func (h *Handler) CreateResponse(w http.ResponseWriter, rsp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rsp.Code)

	if err := json.NewEncoder(w).Encode(rsp); err != nil {
		log.Errorf("unable to encode response: %s", err)
	}
}

func (h *Handler) fail(w http.ResponseWriter, status int, code string) {
	h.CreateResponse(w, Response{Ok: false, Error: code, Code: status})
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	h.CreateResponse(w, Response{Ok: true, Code: http.StatusOK})
}

func (h *Handler) ListPases(w http.ResponseWriter, r *http.Request) {
	records, err := h.svc.List(r.Context())
	if err != nil {
		log.Errorf("[ListPases] %s", err)
		h.fail(w, http.StatusInternalServerError, codeReadError)
		return
	}

	h.CreateResponse(w, Response{Ok: true, Data: records, Code: http.StatusOK})
}

func (h *Handler) CreatePase(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var in models.PassInput
	if err := decodeBody(r.Body, &in); err != nil {
		log.Infof("[CreatePase] malformed body: %s", err)
		h.fail(w, http.StatusBadRequest, codeBadRequest)
		return
	}

	rec, err := h.svc.Append(r.Context(), in)
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			log.Infof("[CreatePase] rejected: %s", err)
			h.fail(w, http.StatusBadRequest, codeBadRequest)
			return
		}
		log.Errorf("[CreatePase] %s", err)
		h.fail(w, http.StatusInternalServerError, codeWriteError)
		return
	}

	log.WithFields(log.Fields{"id": rec.ID, "pases": rec.Pases, "timestamp": rec.Timestamp}).Info("pase recorded")
	h.CreateResponse(w, Response{Ok: true, Code: http.StatusOK})
}

// ExportExcel renders the workbook fully before writing headers so a
// failure can still be reported as JSON.
func (h *Handler) ExportExcel(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.svc.Export(r.Context(), &buf); err != nil {
		log.Errorf("[ExportExcel] %s", err)
		h.fail(w, http.StatusInternalServerError, codeExportError)
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.FileName+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)

	if _, err := buf.WriteTo(w); err != nil {
		log.Errorf("[ExportExcel] write body: %s", err)
	}
}

// decodeBody reads exactly one JSON value from body into v.
func decodeBody(body io.Reader, v any) error {
	dec := json.NewDecoder(body)
	if err := dec.Decode(v); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("unexpected data after JSON body")
	}
	return nil
}

func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.fail(w, http.StatusNotFound, codeNotFound)
}
