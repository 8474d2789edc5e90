package httpapi

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/household-ledger/internal/ledger"
	"github.com/sheikh-saqib/household-ledger/internal/models"
)

type createDebtRequest struct {
	Name         string               `json:"name"`
	Counterparty string               `json:"counterparty"`
	Direction    models.DebtDirection `json:"direction"`
	TotalAmount  decimal.Decimal      `json:"total_amount"`
	DueDate      *string              `json:"due_date"`
}

type updateDebtRequest struct {
	Name         *string          `json:"name"`
	Counterparty *string          `json:"counterparty"`
	TotalAmount  *decimal.Decimal `json:"total_amount"`
	DueDate      *string          `json:"due_date"`
	ClearDueDate bool             `json:"clear_due_date"`
}

func (s *Server) createDebt(w http.ResponseWriter, r *http.Request) {
	var req createDebtRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Name == "" {
		badRequest(w, "name is required")
		return
	}
	due, err := parseOptionalDate(req.DueDate)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	debt, err := s.debts.CreateDebt(r.Context(), ledger.NewDebt{
		OrgID:        r.PathValue("org"),
		Name:         req.Name,
		Counterparty: req.Counterparty,
		Direction:    req.Direction,
		TotalAmount:  req.TotalAmount,
		DueDate:      due,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, debt)
}

func (s *Server) listDebts(w http.ResponseWriter, r *http.Request) {
	debts, err := s.debts.ListDebts(r.Context(), r.PathValue("org"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if debts == nil {
		debts = []models.Debt{}
	}
	writeJSON(w, http.StatusOK, debts)
}

func (s *Server) getDebt(w http.ResponseWriter, r *http.Request) {
	debt, err := s.debts.GetDebt(r.Context(), r.PathValue("org"), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, debt)
}

func (s *Server) updateDebt(w http.ResponseWriter, r *http.Request) {
	var req updateDebtRequest
	if !decode(w, r, &req) {
		return
	}
	due, err := parseOptionalDate(req.DueDate)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	debt, err := s.debts.UpdateDebt(r.Context(), r.PathValue("org"), r.PathValue("id"), models.DebtPatch{
		Name:         req.Name,
		Counterparty: req.Counterparty,
		TotalAmount:  req.TotalAmount,
		DueDate:      due,
		ClearDueDate: req.ClearDueDate,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, debt)
}

func (s *Server) deleteDebt(w http.ResponseWriter, r *http.Request) {
	if err := s.debts.DeleteDebt(r.Context(), r.PathValue("org"), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) pay(w http.ResponseWriter, r *http.Request) {
	var req movementRequest
	if !decode(w, r, &req) {
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	debt, err := s.debts.Pay(r.Context(), r.PathValue("org"), r.PathValue("id"), req.Amount, req.SourceAccountID, date)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, debt)
}
