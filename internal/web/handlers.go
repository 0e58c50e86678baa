package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/Steff1414/Slojd-Admin-sub000/internal/integrity"
	"github.com/Steff1414/Slojd-Admin-sub000/internal/workbook"
)

var (
	errNoFile       = errors.New("no file provided")
	errFileTooLarge = errors.New("file too large")
)

// handleValidate validates an import batch sent either as a multipart
// upload of an .xlsx workbook (field "file") or as a JSON ImportBatch.
// A batch that cannot be imported is still a 200: the verdict is in the body.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	if err := s.limiter.Acquire(r.Context()); err != nil {
		if errors.Is(err, ErrTooManyRuns) {
			w.Header().Set("Retry-After", "5")
			respondError(w, r, err, http.StatusServiceUnavailable)
			return
		}
		respondError(w, r, err, http.StatusRequestTimeout)
		return
	}
	defer s.limiter.Release()

	batch, err := s.readBatch(w, r)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errFileTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		respondError(w, r, err, status)
		return
	}

	result, err := s.service.ValidateImport(r.Context(), batch)
	if err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	writeJSON(w, r, http.StatusOK, result)
}

// readBatch decodes the request body according to its content type.
func (s *Server) readBatch(w http.ResponseWriter, r *http.Request) (integrity.ImportBatch, error) {
	maxSize := s.cfg.Import.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch {
	case mediaType == "multipart/form-data":
		if err := r.ParseMultipartForm(maxSize); err != nil {
			return integrity.ImportBatch{}, bodyError(err)
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			return integrity.ImportBatch{}, errNoFile
		}
		defer file.Close()
		return workbook.Parse(file)

	case mediaType == "application/json" || strings.HasSuffix(mediaType, "+json"):
		var batch integrity.ImportBatch
		if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
			return integrity.ImportBatch{}, bodyError(err)
		}
		return batch, nil

	default:
		return integrity.ImportBatch{}, fmt.Errorf("invalid request body: unsupported content type %q", mediaType)
	}
}

func bodyError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return fmt.Errorf("%w: limit is %d bytes", errFileTooLarge, tooLarge.Limit)
	}
	return fmt.Errorf("invalid request body: %w", err)
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	res, err := s.service.Scan(r.Context())
	if err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	res, err := s.service.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, integrity.ErrEmptyQuery) {
			status = http.StatusBadRequest
		}
		respondError(w, r, err, status)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

type healthResponse struct {
	Status   string           `json:"status"`
	Database string           `json:"database,omitempty"`
	Runs     RunLimiterStatus `json:"runs"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Runs: s.limiter.Status()}
	status := http.StatusOK

	if s.ping != nil {
		if err := s.ping(r.Context()); err != nil {
			resp.Status = "unavailable"
			resp.Database = integrity.MapError(err).Code
			status = http.StatusServiceUnavailable
		} else {
			resp.Database = "ok"
		}
	}

	writeJSON(w, r, status, resp)
}
