package http

import (
	"errors"
	"net/http"

	"moneytrack/internal/core"
	"moneytrack/internal/log"
)

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	list, err := s.api.List(r.Context())
	if err != nil {
		s.apiError(w, r, "List transactions failed", err)
		return
	}
	if list == nil {
		list = []core.Transaction{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var d core.Draft
	if err := decodeJSONBody(w, r, &d); err != nil {
		s.badRequest(w, r, err)
		return
	}
	created, err := s.api.Create(r.Context(), d)
	if err != nil {
		s.apiError(w, r, "Create transaction failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// handleUpdateTransaction applies a partial update. An id in the body is ignored.
func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.badRequest(w, r, err)
		return
	}
	var p core.Patch
	if err := decodeJSONBody(w, r, &p); err != nil {
		s.badRequest(w, r, err)
		return
	}
	updated, err := s.api.Update(r.Context(), id, p)
	if err != nil {
		s.apiError(w, r, "Update transaction failed", err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.badRequest(w, r, err)
		return
	}
	if err := s.api.Delete(r.Context(), id); err != nil {
		s.apiError(w, r, "Delete transaction failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Transaction deleted"})
}

// badRequest answers a request that never reached the service.
func (s *Server) badRequest(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := errorStatus(err)
	if status == http.StatusInternalServerError {
		// Body decoding problems are the client's fault.
		status, msg = http.StatusBadRequest, err.Error()
		if errors.Is(err, errBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
	}
	log.FromContext(r.Context()).DebugContext(r.Context(), "Rejected request", log.FieldError, err)
	writeError(w, status, msg)
}

// apiError maps a service failure to a response. Details of unexpected
// failures stay in the log.
func (s *Server) apiError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	status, public := errorStatus(err)
	logger := log.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), msg, log.FieldError, err)
	} else {
		logger.DebugContext(r.Context(), msg, log.FieldError, err)
	}
	writeError(w, status, public)
}
