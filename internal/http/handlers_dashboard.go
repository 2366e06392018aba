package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"bilancio/internal/analytics"
	"bilancio/internal/log"
)

// readTimeout bounds a dashboard read against a slow spreadsheet backend.
const readTimeout = 10 * time.Second

// dashboardParams parses the query or writes a 400 and returns false.
func (s *Server) dashboardParams(w http.ResponseWriter, r *http.Request) (DashboardParams, bool) {
	p, err := ParseDashboardParams(r.URL.Query(), s.localNow(), s.dashboard.TopN())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return p, false
	}
	return p, true
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	p, ok := s.dashboardParams(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	bal, err := s.dashboard.Balance(ctx, p.Period, p.Ref)
	if err != nil {
		s.fail(w, r, "balance", err)
		return
	}
	NewResponse().JSON(bal).Write(w)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	p, ok := s.dashboardParams(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	ranking, err := s.dashboard.Categories(ctx, p.Period, p.Type, p.TopN, p.Ref)
	if err != nil {
		s.fail(w, r, "categories", err)
		return
	}
	NewResponse().JSON(ranking).Write(w)
}

func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	p, ok := s.dashboardParams(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	tr, err := s.dashboard.Trend(ctx, p.Period, p.Categories, p.Ref)
	if err != nil {
		s.fail(w, r, "trend", err)
		return
	}
	NewResponse().JSON(tr).Write(w)
}

func (s *Server) handleBudgets(w http.ResponseWriter, r *http.Request) {
	p, ok := s.dashboardParams(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	budgets, err := s.dashboard.Budgets(ctx, p.Ref)
	if err != nil {
		s.fail(w, r, "budgets", err)
		return
	}
	if budgets == nil {
		budgets = []analytics.BudgetStatus{}
	}
	NewResponse().JSON(budgets).Write(w)
}

func (s *Server) handleGoals(w http.ResponseWriter, r *http.Request) {
	p, ok := s.dashboardParams(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	goals, err := s.dashboard.Goals(ctx, p.Ref)
	if err != nil {
		s.fail(w, r, "goals", err)
		return
	}
	if goals == nil {
		goals = []analytics.GoalStatus{}
	}
	NewResponse().JSON(goals).Write(w)
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	p, ok := s.dashboardParams(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	ov, err := s.dashboard.Overview(ctx, p.Period, p.Ref)
	if err != nil {
		s.fail(w, r, "overview", err)
		return
	}
	NewResponse().JSON(ov).Write(w)
}

func (s *Server) handleTaxonomy(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	tax, err := s.dashboard.Taxonomy(ctx)
	if err != nil {
		s.fail(w, r, "taxonomy", err)
		return
	}
	NewResponse().JSON(tax).Write(w)
}

// fail maps err to a response. Parameter errors are the caller's fault;
// anything else is logged and reported as a 500.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, errBadParam),
		errors.Is(err, analytics.ErrUnknownPeriod),
		errors.Is(err, analytics.ErrInvalidTopN):
		BadRequestError(err.Error()).Write(w)
		return
	case errors.Is(err, context.DeadlineExceeded):
		s.logger.WarnContext(r.Context(), "Backend timed out", log.FieldOperation, op, log.FieldError, err.Error())
		reportError(r, err)
		ErrorResponse(http.StatusGatewayTimeout, "backend timed out").Write(w)
		return
	}

	log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
		log.NewFields().WithError(err).WithOperation(op).WithComponent(log.ComponentHTTP).ToSlice()...)
	reportError(r, err)
	InternalServerError("internal error").Write(w)
}
