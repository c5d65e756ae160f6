package http

import (
	"net/http"

	"caja/internal/commands"
	"caja/internal/core"
)

func (s *Server) reject(w http.ResponseWriter, r *http.Request, op string, err error) {
	writeResponse(w, r, s.cmd.Fail(r.Context(), op, err))
}

// ==================== Sessions ====================

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req commands.CreateSessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.reject(w, r, "create_session", err)
		return
	}
	writeCreated(w, r, s.cmd.CreateSession(r.Context(), req))
}

func (s *Server) handleActiveSession(w http.ResponseWriter, r *http.Request) {
	writeResponse(w, r, s.cmd.GetActiveSession(r.Context()))
}

func (s *Server) handleHasActiveSession(w http.ResponseWriter, r *http.Request) {
	writeResponse(w, r, s.cmd.HasActiveSession(r.Context()))
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.reject(w, r, "close_session", err)
		return
	}
	var req commands.CloseSessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.reject(w, r, "close_session", err)
		return
	}
	req.SessionID = id
	writeResponse(w, r, s.cmd.CloseSession(r.Context(), req))
}

func (s *Server) handleSessionSummary(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.reject(w, r, "get_session_summary", err)
		return
	}
	writeResponse(w, r, s.cmd.GetSessionSummary(r.Context(), id))
}

// ==================== Transactions ====================

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req core.NewTransaction
	if err := decodeJSON(w, r, &req); err != nil {
		s.reject(w, r, "create_transaction", err)
		return
	}
	writeCreated(w, r, s.cmd.CreateTransaction(r.Context(), req))
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.reject(w, r, "get_transaction", err)
		return
	}
	writeResponse(w, r, s.cmd.GetTransactionByID(r.Context(), id))
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	const op = "get_transactions"
	q := r.URL.Query()
	req := commands.GetTransactionsRequest{
		TransactionType: q.Get("type"),
		StartDate:       q.Get("start_date"),
		EndDate:         q.Get("end_date"),
	}
	var err error
	if req.SessionID, err = optionalInt64(q, "session_id"); err != nil {
		s.reject(w, r, op, err)
		return
	}
	if req.CategoryID, err = optionalInt64(q, "category_id"); err != nil {
		s.reject(w, r, op, err)
		return
	}
	if req.Limit, err = intParam(q, "limit", 0); err != nil {
		s.reject(w, r, op, err)
		return
	}
	if req.Offset, err = intParam(q, "offset", 0); err != nil {
		s.reject(w, r, op, err)
		return
	}
	writeResponse(w, r, s.cmd.GetTransactions(r.Context(), req))
}

func (s *Server) handleRecentTransactions(w http.ResponseWriter, r *http.Request) {
	const op = "get_recent_transactions"
	q := r.URL.Query()
	sessionID, err := optionalInt64(q, "session_id")
	if err != nil {
		s.reject(w, r, op, err)
		return
	}
	limit, err := intParam(q, "limit", 10)
	if err != nil {
		s.reject(w, r, op, err)
		return
	}
	writeResponse(w, r, s.cmd.GetRecentTransactions(r.Context(), sessionID, limit))
}

func (s *Server) handleSearchTransactions(w http.ResponseWriter, r *http.Request) {
	const op = "search_transactions"
	q := r.URL.Query()
	req := commands.SearchRequest{Query: q.Get("q")}
	var err error
	if req.Limit, err = intParam(q, "limit", 0); err != nil {
		s.reject(w, r, op, err)
		return
	}
	if req.Offset, err = intParam(q, "offset", 0); err != nil {
		s.reject(w, r, op, err)
		return
	}
	writeResponse(w, r, s.cmd.SearchTransactions(r.Context(), req))
}

// ==================== Categories ====================

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	if typ := r.URL.Query().Get("type"); typ != "" {
		writeResponse(w, r, s.cmd.GetCategoriesByType(r.Context(), typ))
		return
	}
	writeResponse(w, r, s.cmd.GetAllCategories(r.Context()))
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req commands.CategoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.reject(w, r, "create_category", err)
		return
	}
	writeCreated(w, r, s.cmd.CreateCategory(r.Context(), req))
}

func (s *Server) handleRenameCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.reject(w, r, "rename_category", err)
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.reject(w, r, "rename_category", err)
		return
	}
	writeResponse(w, r, s.cmd.RenameCategory(r.Context(), id, req.Name))
}

func (s *Server) handleDeactivateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.reject(w, r, "deactivate_category", err)
		return
	}
	writeResponse(w, r, s.cmd.DeactivateCategory(r.Context(), id))
}

// ==================== Summaries ====================

func (s *Server) handleTodaySummary(w http.ResponseWriter, r *http.Request) {
	writeResponse(w, r, s.cmd.GetTodaySummary(r.Context()))
}

func (s *Server) handleTodayTransactionsSummary(w http.ResponseWriter, r *http.Request) {
	writeResponse(w, r, s.cmd.GetTodayTransactionsSummary(r.Context()))
}

func (s *Server) handleDailySummary(w http.ResponseWriter, r *http.Request) {
	writeResponse(w, r, s.cmd.GetDailySummary(r.Context(), r.PathValue("date")))
}

// ==================== Backups ====================

func (s *Server) handleCreateBackup(w http.ResponseWriter, r *http.Request) {
	var req commands.BackupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.reject(w, r, "create_backup", err)
		return
	}
	// Remote callers cannot pick arbitrary directories.
	req.Dir = ""
	writeCreated(w, r, s.cmd.CreateBackup(r.Context(), req))
}

func (s *Server) handleListBackups(w http.ResponseWriter, r *http.Request) {
	writeResponse(w, r, s.cmd.ListBackups(r.Context(), ""))
}

func (s *Server) handleDeleteBackup(w http.ResponseWriter, r *http.Request) {
	writeResponse(w, r, s.cmd.DeleteBackup(r.Context(), r.PathValue("name")))
}

func (s *Server) handleBackupHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r.URL.Query(), "limit", 0)
	if err != nil {
		s.reject(w, r, "backup_history", err)
		return
	}
	writeResponse(w, r, s.cmd.BackupHistory(r.Context(), limit))
}

func (s *Server) handleDatabaseInfo(w http.ResponseWriter, r *http.Request) {
	writeResponse(w, r, s.cmd.DatabaseInfo(r.Context()))
}

// ==================== Probes ====================

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady succeeds once the store answers a read.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	resp := s.cmd.HasActiveSession(r.Context())
	if !resp.Success {
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
