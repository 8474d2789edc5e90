package httpapi

import (
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/household-ledger/internal/ledger"
	"github.com/sheikh-saqib/household-ledger/internal/models"
)

type createTransactionRequest struct {
	Kind        models.TransactionKind `json:"kind"`
	Amount      decimal.Decimal        `json:"amount"`
	Category    string                 `json:"category"`
	Description string                 `json:"description"`
	Date        string                 `json:"date"`
	AccountID   *string                `json:"account_id"`
	ToAccountID *string                `json:"to_account_id"`
}

type updateTransactionRequest struct {
	Kind           *models.TransactionKind `json:"kind"`
	Amount         *decimal.Decimal        `json:"amount"`
	Category       *string                 `json:"category"`
	Description    *string                 `json:"description"`
	Date           *string                 `json:"date"`
	AccountID      *string                 `json:"account_id"`
	ClearAccount   bool                    `json:"clear_account"`
	ToAccountID    *string                 `json:"to_account_id"`
	ClearToAccount bool                    `json:"clear_to_account"`
}

func (s *Server) createTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if !decode(w, r, &req) {
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	tx, err := s.journal.AddTransaction(r.Context(), ledger.NewTransaction{
		OrgID:          r.PathValue("org"),
		ActorID:        actor(r),
		IdempotencyKey: strings.TrimSpace(r.Header.Get("Idempotency-Key")),
		Kind:           req.Kind,
		Amount:         req.Amount,
		Category:       req.Category,
		Description:    req.Description,
		Date:           date,
		AccountID:      req.AccountID,
		ToAccountID:    req.ToAccountID,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

func (s *Server) listTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := s.journal.ListTransactions(r.Context(), r.PathValue("org"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if txs == nil {
		txs = []models.Transaction{}
	}
	writeJSON(w, http.StatusOK, txs)
}

func (s *Server) getTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := s.journal.GetTransaction(r.Context(), r.PathValue("org"), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (s *Server) updateTransaction(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req updateTransactionRequest
	if !decode(w, r, &req) {
		return
	}
	date, err := parseOptionalDate(req.Date)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	tx, err := s.journal.UpdateTransaction(r.Context(), r.PathValue("org"), r.PathValue("id"), actorID, models.TransactionPatch{
		Kind:           req.Kind,
		Amount:         req.Amount,
		Category:       req.Category,
		Description:    req.Description,
		Date:           date,
		AccountID:      req.AccountID,
		ClearAccount:   req.ClearAccount,
		ToAccountID:    req.ToAccountID,
		ClearToAccount: req.ClearToAccount,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (s *Server) deleteTransaction(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}
	if err := s.journal.DeleteTransaction(r.Context(), r.PathValue("org"), r.PathValue("id"), actorID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
