package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sheikh-saqib/household-ledger/internal/ledger"
)

// Server exposes the ledger services as JSON over HTTP. Every resource lives
// under /v1/orgs/{org}, which scopes the call to one organization.
type Server struct {
	ledger  *ledger.Ledger
	journal *ledger.Journal
	goals   *ledger.GoalTracker
	debts   *ledger.DebtTracker
	log     logrus.FieldLogger
}

func NewServer(l *ledger.Ledger, j *ledger.Journal, g *ledger.GoalTracker, d *ledger.DebtTracker, log logrus.FieldLogger) *Server {
	return &Server{ledger: l, journal: j, goals: g, debts: d, log: log}
}

// Handler returns the routed handler wrapped in request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("POST /v1/orgs/{org}/accounts", s.createAccount)
	mux.HandleFunc("GET /v1/orgs/{org}/accounts", s.listAccounts)
	mux.HandleFunc("GET /v1/orgs/{org}/accounts/{id}", s.getAccount)
	mux.HandleFunc("GET /v1/orgs/{org}/accounts/{id}/entries", s.listEntries)
	mux.HandleFunc("DELETE /v1/orgs/{org}/accounts/{id}", s.deleteAccount)

	mux.HandleFunc("POST /v1/orgs/{org}/transactions", s.createTransaction)
	mux.HandleFunc("GET /v1/orgs/{org}/transactions", s.listTransactions)
	mux.HandleFunc("GET /v1/orgs/{org}/transactions/{id}", s.getTransaction)
	mux.HandleFunc("PATCH /v1/orgs/{org}/transactions/{id}", s.updateTransaction)
	mux.HandleFunc("DELETE /v1/orgs/{org}/transactions/{id}", s.deleteTransaction)

	mux.HandleFunc("POST /v1/orgs/{org}/goals", s.createGoal)
	mux.HandleFunc("GET /v1/orgs/{org}/goals", s.listGoals)
	mux.HandleFunc("GET /v1/orgs/{org}/goals/{id}", s.getGoal)
	mux.HandleFunc("PATCH /v1/orgs/{org}/goals/{id}", s.updateGoal)
	mux.HandleFunc("DELETE /v1/orgs/{org}/goals/{id}", s.deleteGoal)
	mux.HandleFunc("POST /v1/orgs/{org}/goals/{id}/contributions", s.contribute)

	mux.HandleFunc("POST /v1/orgs/{org}/debts", s.createDebt)
	mux.HandleFunc("GET /v1/orgs/{org}/debts", s.listDebts)
	mux.HandleFunc("GET /v1/orgs/{org}/debts/{id}", s.getDebt)
	mux.HandleFunc("PATCH /v1/orgs/{org}/debts/{id}", s.updateDebt)
	mux.HandleFunc("DELETE /v1/orgs/{org}/debts/{id}", s.deleteDebt)
	mux.HandleFunc("POST /v1/orgs/{org}/debts/{id}/payments", s.pay)

	return s.logRequests(mux)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start),
		}).Debug("http request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps ledger errors onto status codes.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ledger.ErrInsufficientFunds):
		status = http.StatusPaymentRequired
	case errors.Is(err, ledger.ErrAccountNotFound),
		errors.Is(err, ledger.ErrTransactionNotFound),
		errors.Is(err, ledger.ErrGoalNotFound),
		errors.Is(err, ledger.ErrDebtNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ledger.ErrAccountInUse):
		status = http.StatusConflict
	case errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrInvalidKind),
		errors.Is(err, ledger.ErrInvalidTransfer):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, ledger.ErrTransientStore):
		w.Header().Set("Retry-After", "1")
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		s.log.WithError(err).WithField("path", r.URL.Path).Error("request failed")
		writeJSON(w, status, errorResponse{Error: "internal error"})
		return
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		badRequest(w, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// actor identifies the caller for audit fields.
func actor(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-Actor-ID"))
}

// requireActor is actor for operations that write the change log, where an
// anonymous caller is rejected.
func requireActor(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := actor(r)
	if id == "" {
		badRequest(w, "X-Actor-ID header is required")
		return "", false
	}
	return id, true
}

// parseDate accepts a calendar date or an RFC 3339 timestamp. Empty means
// zero, which the ledger treats as today.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if d, err := time.Parse(time.DateOnly, s); err == nil {
		return d, nil
	}
	d, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return d, nil
}

func parseOptionalDate(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	d, err := parseDate(*s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
