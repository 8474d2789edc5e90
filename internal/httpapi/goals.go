package httpapi

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/household-ledger/internal/models"
)

type createGoalRequest struct {
	Name         string          `json:"name"`
	TargetAmount decimal.Decimal `json:"target_amount"`
	Deadline     *string         `json:"deadline"`
	Icon         string          `json:"icon"`
}

type updateGoalRequest struct {
	Name          *string          `json:"name"`
	TargetAmount  *decimal.Decimal `json:"target_amount"`
	Deadline      *string          `json:"deadline"`
	ClearDeadline bool             `json:"clear_deadline"`
	Icon          *string          `json:"icon"`
}

// movementRequest is the body of a goal contribution or a debt payment.
type movementRequest struct {
	Amount          decimal.Decimal `json:"amount"`
	SourceAccountID string          `json:"source_account_id"`
	Date            string          `json:"date"`
}

func (s *Server) createGoal(w http.ResponseWriter, r *http.Request) {
	var req createGoalRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Name == "" {
		badRequest(w, "name is required")
		return
	}
	deadline, err := parseOptionalDate(req.Deadline)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	goal, err := s.goals.CreateGoal(r.Context(), r.PathValue("org"), req.Name, req.TargetAmount, deadline, req.Icon)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, goal)
}

func (s *Server) listGoals(w http.ResponseWriter, r *http.Request) {
	goals, err := s.goals.ListGoals(r.Context(), r.PathValue("org"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if goals == nil {
		goals = []models.SavingsGoal{}
	}
	writeJSON(w, http.StatusOK, goals)
}

func (s *Server) getGoal(w http.ResponseWriter, r *http.Request) {
	goal, err := s.goals.GetGoal(r.Context(), r.PathValue("org"), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, goal)
}

func (s *Server) updateGoal(w http.ResponseWriter, r *http.Request) {
	var req updateGoalRequest
	if !decode(w, r, &req) {
		return
	}
	deadline, err := parseOptionalDate(req.Deadline)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	goal, err := s.goals.UpdateGoal(r.Context(), r.PathValue("org"), r.PathValue("id"), models.GoalPatch{
		Name:          req.Name,
		TargetAmount:  req.TargetAmount,
		Deadline:      deadline,
		ClearDeadline: req.ClearDeadline,
		Icon:          req.Icon,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, goal)
}

func (s *Server) deleteGoal(w http.ResponseWriter, r *http.Request) {
	if err := s.goals.DeleteGoal(r.Context(), r.PathValue("org"), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) contribute(w http.ResponseWriter, r *http.Request) {
	var req movementRequest
	if !decode(w, r, &req) {
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	goal, err := s.goals.Contribute(r.Context(), r.PathValue("org"), r.PathValue("id"), req.Amount, req.SourceAccountID, date)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, goal)
}
