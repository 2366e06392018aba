package http

import (
	"net/http"
	"sync/atomic"

	"bilancio/internal/log"
)

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	in, err := NewRequestBodyParser(r).Transaction()
	if err != nil {
		BadRequestError("invalid request body").Write(w)
		return
	}
	tx, err := in.Transaction(s.localNow())
	if err == nil {
		err = tx.Validate()
	}
	if err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}

	ref, err := s.transactions.Create(r.Context(), tx)
	if err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}

	atomic.AddInt64(&s.appMetrics.transactionsCreated, 1)
	log.FromContext(r.Context()).InfoContext(r.Context(), "Transaction created",
		append(log.NewFields().
			WithTransaction(string(tx.Type), tx.Category, tx.Amount.Cents).
			WithOperation(log.OpCreate).
			ToSlice(), log.FieldSheetsRef, ref)...)

	NewResponse().
		Status(http.StatusCreated).
		JSON(map[string]any{"ref": ref, "transaction": tx}).
		Write(w)
}
