// Package http exposes the ledger over JSON.
package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sheikh-saqib/tamper-evident-ledger/internal/chain"
	"github.com/sheikh-saqib/tamper-evident-ledger/internal/ledger"
	"github.com/sheikh-saqib/tamper-evident-ledger/internal/log"
	"github.com/sheikh-saqib/tamper-evident-ledger/internal/models"
)

// Server is the ledger HTTP API.
type Server struct {
	ledger         *ledger.Ledger
	logger         *log.Logger
	metricsEnabled bool
}

func NewServer(l *ledger.Ledger, logger *log.Logger) *Server {
	return &Server{ledger: l, logger: logger.WithComponent(log.ComponentHTTP)}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":          "ok",
			"protocolVersion": chain.ProtocolVersion,
		})
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Get("/ledgers", s.handleListLedgers)
	r.Route("/ledgers/{ledgerID}", func(r chi.Router) {
		r.Post("/entries", s.handleAppend)
		r.Get("/entries", s.handleListEntries)
		r.Get("/entries/{entryID}", s.handleGetEntry)
		r.Patch("/entries/{entryID}", s.handleEdit)
		r.Delete("/entries/{entryID}", s.handleDelete)
		r.Post("/entries/{entryID}/rechain", s.handleRechain)
		r.Get("/verify", s.handleVerify)
		r.Get("/merkle/{date}", s.handleMerkle)
		r.Post("/anchors/{date}", s.handleAnchor)
		r.Get("/tamper-scan", s.handleTamperScan)
		r.Get("/summary", s.handleSummary)
	})

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.DebugContext(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			log.FieldDuration, time.Since(start).Milliseconds(),
			log.FieldRequestID, middleware.GetReqID(r.Context()))
	})
}

func (s *Server) handleListLedgers(w http.ResponseWriter, r *http.Request) {
	ids, err := s.ledger.Ledgers(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ledgers": ids})
}

func (s *Server) handleAppend(w http.ResponseWriter, r *http.Request) {
	var draft models.Draft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	entry, err := s.ledger.Append(r.Context(), chi.URLParam(r, "ledgerID"), draft)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	ledgerID := chi.URLParam(r, "ledgerID")

	var (
		entries []models.LedgerEntry
		err     error
	)
	if r.URL.Query().Get("include_deleted") == "true" {
		entries, err = s.ledger.ChainEntries(r.Context(), ledgerID)
	} else {
		entries, err = s.ledger.Entries(r.Context(), ledgerID)
	}
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if entries == nil {
		entries = []models.LedgerEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := s.ledger.Entry(r.Context(), chi.URLParam(r, "ledgerID"), chi.URLParam(r, "entryID"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	var patch models.EntryPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rechained, err := s.ledger.EditEntry(r.Context(), chi.URLParam(r, "ledgerID"), chi.URLParam(r, "entryID"), patch)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rechained": rechained})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	entry, err := s.ledger.DeleteEntry(r.Context(), chi.URLParam(r, "ledgerID"), chi.URLParam(r, "entryID"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleRechain(w http.ResponseWriter, r *http.Request) {
	rechained, err := s.ledger.RechainFrom(r.Context(), chi.URLParam(r, "ledgerID"), chi.URLParam(r, "entryID"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rechained": rechained})
}

// handleVerify answers 200 for both valid and invalid chains; the report
// carries the verdict.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	from, to, ok := parseRange(w, r)
	if !ok {
		return
	}

	ledgerID := chi.URLParam(r, "ledgerID")
	var (
		report models.IntegrityReport
		err    error
	)
	switch r.URL.Query().Get("mode") {
	case "", "first":
		report, err = s.ledger.Verify(r.Context(), ledgerID, from, to)
	case "all":
		report, err = s.ledger.VerifyAll(r.Context(), ledgerID, from, to)
	default:
		writeError(w, http.StatusBadRequest, "mode must be 'first' or 'all'")
		return
	}
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type merkleResponse struct {
	LedgerID  string            `json:"ledgerId"`
	Date      string            `json:"date"`
	TimeZone  string            `json:"timeZone"`
	Root      string            `json:"root"`
	LeafCount int               `json:"leafCount"`
	EntryID   string            `json:"entryId,omitempty"`
	Leaf      string            `json:"leaf,omitempty"`
	Proof     []chain.ProofStep `json:"proof,omitempty"`
}

// handleMerkle returns a day's root; ?entry=<id> adds an inclusion proof.
func (s *Server) handleMerkle(w http.ResponseWriter, r *http.Request) {
	day, err := models.ParseDay(chi.URLParam(r, "date"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	ledgerID := chi.URLParam(r, "ledgerID")
	tree, err := s.ledger.DailyTree(r.Context(), ledgerID, day)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	resp := merkleResponse{
		LedgerID:  ledgerID,
		Date:      day.String(),
		TimeZone:  s.ledger.Location().String(),
		Root:      tree.Root,
		LeafCount: tree.LeafCount,
	}

	if entryID := r.URL.Query().Get("entry"); entryID != "" {
		entry, err := s.ledger.Entry(r.Context(), ledgerID, entryID)
		if err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		index := -1
		if tree.LeafCount > 0 {
			for i, leaf := range tree.Levels[0] {
				if leaf == entry.CurrentHash {
					index = i
					break
				}
			}
		}
		if index < 0 {
			writeError(w, http.StatusNotFound, "entry is not part of this day's tree")
			return
		}
		proof, err := tree.Proof(index)
		if err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		resp.EntryID, resp.Leaf, resp.Proof = entryID, entry.CurrentHash, proof
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAnchor(w http.ResponseWriter, r *http.Request) {
	day, err := models.ParseDay(chi.URLParam(r, "date"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	event, err := s.ledger.Anchor(r.Context(), chi.URLParam(r, "ledgerID"), day)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, event)
}

func (s *Server) handleTamperScan(w http.ResponseWriter, r *http.Request) {
	from, to, ok := parseRange(w, r)
	if !ok {
		return
	}

	report, err := s.ledger.ScanForTampering(r.Context(), chi.URLParam(r, "ledgerID"), from, to)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.ledger.Summary(r.Context(), chi.URLParam(r, "ledgerID"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// parseRange reads optional from/to millisecond query parameters.
func parseRange(w http.ResponseWriter, r *http.Request) (from, to *int64, ok bool) {
	parse := func(name string) (*int64, bool) {
		raw := r.URL.Query().Get(name)
		if raw == "" {
			return nil, true
		}
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, name+" must be milliseconds since epoch")
			return nil, false
		}
		return &v, true
	}

	if from, ok = parse("from"); !ok {
		return nil, nil, false
	}
	if to, ok = parse("to"); !ok {
		return nil, nil, false
	}
	if from != nil && to != nil && *from > *to {
		writeError(w, http.StatusBadRequest, "from must not be after to")
		return nil, nil, false
	}
	return from, to, true
}

// writeDomainError maps ledger errors to status codes. Unexpected errors are
// logged and hidden from the client.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, models.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrEntryNotFound), errors.Is(err, models.ErrLedgerNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrTailChanged),
		errors.Is(err, models.ErrDuplicateEntry),
		errors.Is(err, models.ErrEntryDeleted),
		errors.Is(err, models.ErrIntegrityViolation):
		writeError(w, http.StatusConflict, err.Error())
	default:
		s.logger.ErrorContext(r.Context(), "request failed",
			"path", r.URL.Path, log.FieldRequestID, middleware.GetReqID(r.Context()), log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"message": msg,
			"status":  status,
		},
	})
}
