package http

import (
	"bytes"
	"net/http"
	"time"

	"finora/internal/backup"
	"finora/internal/exchange"
	applog "finora/internal/log"
)

type sessionResponse struct {
	Source       backup.Source `json:"source"`
	Transactions int           `json:"transactions"`
	Accounts     int           `json:"accounts"`
	Categories   int           `json:"categories"`
}

// handleOpenSession makes sure the user has a local document: the existing
// one, the remote backup, or the sample dataset, in that order.
func (s *Server) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	uid := r.PathValue("uid")
	data, src, err := s.backups.LoadOrSample(r.Context(), uid)
	if err != nil {
		s.writeError(w, r, applog.OpRestore, err)
		return
	}
	if src != backup.SourceLocal {
		s.ledger.Touch(uid)
		s.invalidate(uid)
	}
	s.logger.InfoContext(r.Context(), "Session opened", applog.FieldUserID, uid, applog.FieldSource, src)
	writeJSON(w, http.StatusOK, sessionResponse{
		Source:       src,
		Transactions: len(data.Transactions),
		Accounts:     len(data.Accounts),
		Categories:   len(data.Categories),
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	data, err := s.ledger.Data(r.Context(), r.PathValue("uid"))
	if err != nil {
		s.writeError(w, r, applog.OpExport, err)
		return
	}
	var buf bytes.Buffer
	if err := exchange.Encode(&buf, data); err != nil {
		s.writeError(w, r, applog.OpExport, err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+exchange.Filename(s.now().In(s.loc))+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	data, err := exchange.Decode(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.writeError(w, r, applog.OpImport, err)
		return
	}
	uid := r.PathValue("uid")
	if err := s.ledger.Import(r.Context(), uid, data); err != nil {
		s.writeError(w, r, applog.OpImport, err)
		return
	}
	s.invalidate(uid)
	writeJSON(w, http.StatusOK, map[string]int{"transactions": len(data.Transactions)})
}

// handleReset clears local data only. The remote backup and the PIN stay.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	uid := r.PathValue("uid")
	if err := s.ledger.Reset(r.Context(), uid); err != nil {
		s.writeError(w, r, applog.OpDelete, err)
		return
	}
	s.invalidate(uid)
	w.WriteHeader(http.StatusNoContent)
}

// handleWipe clears local data and the PIN. It is reachable without an
// unlock token: it is the way out for a user who forgot the PIN.
func (s *Server) handleWipe(w http.ResponseWriter, r *http.Request) {
	uid := r.PathValue("uid")
	if err := s.ledger.Wipe(r.Context(), uid); err != nil {
		s.writeError(w, r, applog.OpDelete, err)
		return
	}
	s.revokeUnlocks(uid)
	s.invalidate(uid)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBackup(w http.ResponseWriter, r *http.Request) {
	queued, err := s.backups.RequestBackup(r.Context(), r.PathValue("uid"))
	if err != nil {
		s.writeError(w, r, applog.OpBackup, err)
		return
	}
	if queued {
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "done"})
}

type syncStatusResponse struct {
	RemoteEnabled bool       `json:"remoteEnabled"`
	LastSync      *time.Time `json:"lastSync,omitempty"`
	LastSyncAgo   string     `json:"lastSyncAgo,omitempty"`
	LastSaved     *time.Time `json:"lastSaved,omitempty"`
	NeedsSync     bool       `json:"needsSync"`
}

// handleSyncStatus reports the last backup or restore and whether the user
// should back up again.
func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.backups.SyncStatus(r.Context(), r.PathValue("uid"))
	if err != nil {
		s.writeError(w, r, applog.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, syncStatusResponse{
		RemoteEnabled: st.RemoteEnabled,
		LastSync:      st.LastSync,
		LastSyncAgo:   st.Since(s.now()),
		LastSaved:     st.LastSaved,
		NeedsSync:     st.NeedsSync,
	})
}

func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	uid := r.PathValue("uid")
	data, found, err := s.backups.Restore(r.Context(), uid)
	if err != nil {
		s.writeError(w, r, applog.OpRestore, err)
		return
	}
	if found {
		s.ledger.Touch(uid)
		s.invalidate(uid)
	}
	writeJSON(w, http.StatusOK, map[string]any{"found": found, "transactions": len(data.Transactions)})
}

func (s *Server) handleSample(w http.ResponseWriter, r *http.Request) {
	uid := r.PathValue("uid")
	data, err := s.backups.UseSample(r.Context(), uid)
	if err != nil {
		s.writeError(w, r, applog.OpImport, err)
		return
	}
	s.ledger.Touch(uid)
	s.invalidate(uid)
	writeJSON(w, http.StatusOK, map[string]int{"transactions": len(data.Transactions)})
}
