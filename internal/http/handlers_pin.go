package http

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	applog "finora/internal/log"
)

// HeaderUnlockToken carries the token returned by a successful PIN
// verification.
const HeaderUnlockToken = "X-Unlock-Token"

var errPINRequired = errors.New("PIN verification required")

// unlocked guards h behind the PIN gate. Users without a PIN pass through;
// the others need a live unlock token issued for the same user.
func (s *Server) unlocked(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid := r.PathValue("uid")
		st, err := s.pins.Status(r.Context(), uid)
		if err != nil {
			s.writeError(w, r, "pin_gate", err)
			return
		}
		if st.IsPINSet {
			token := r.Header.Get(HeaderUnlockToken)
			if owner, ok := s.unlocks.Get(unlockKey(uid, token)); token == "" || !ok || owner != uid {
				s.writeError(w, r, "pin_gate", errPINRequired)
				return
			}
		}
		h(w, r)
	}
}

// Unlock tokens are keyed by user so that all of a user's tokens can be
// revoked at once.
func unlockKey(uid, token string) string { return uid + "|" + token }

// revokeUnlocks drops every unlock token issued to uid.
func (s *Server) revokeUnlocks(uid string) {
	s.unlocks.DeletePrefix(uid + "|")
}

type pinStatusResponse struct {
	IsPINSet           bool  `json:"isPINSet"`
	IsLocked           bool  `json:"isLocked"`
	AttemptsLeft       int   `json:"attemptsLeft"`
	SecondsUntilUnlock int64 `json:"secondsUntilUnlock"`
}

func (s *Server) handlePINStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.pins.Status(r.Context(), r.PathValue("uid"))
	if err != nil {
		s.writeError(w, r, applog.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, pinStatusResponse{
		IsPINSet:           st.IsPINSet,
		IsLocked:           st.IsLocked,
		AttemptsLeft:       st.AttemptsLeft,
		SecondsUntilUnlock: st.SecondsUntilUnlock(),
	})
}

type pinRequest struct {
	PIN string `json:"pin"`
}

func (s *Server) handleSetPIN(w http.ResponseWriter, r *http.Request) {
	var req pinRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, applog.OpUpdate, err)
		return
	}
	uid := r.PathValue("uid")
	if err := s.pins.SetPIN(r.Context(), uid, req.PIN); err != nil {
		s.writeError(w, r, applog.OpUpdate, err)
		return
	}
	s.revokeUnlocks(uid)
	s.logger.InfoContext(r.Context(), "PIN set", applog.FieldUserID, uid)
	w.WriteHeader(http.StatusNoContent)
}

type unlockResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expiresInSeconds"`
}

// handleVerifyPIN exchanges a correct PIN for an unlock token.
func (s *Server) handleVerifyPIN(w http.ResponseWriter, r *http.Request) {
	var req pinRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, applog.OpVerify, err)
		return
	}
	uid := r.PathValue("uid")
	if err := s.pins.VerifyPIN(r.Context(), uid, req.PIN); err != nil {
		s.writeError(w, r, applog.OpVerify, err)
		return
	}
	token := uuid.NewString()
	s.unlocks.Set(unlockKey(uid, token), uid)
	writeJSON(w, http.StatusOK, unlockResponse{Token: token, ExpiresIn: int64(s.unlockTTL.Seconds())})
}

func (s *Server) handleClearPIN(w http.ResponseWriter, r *http.Request) {
	uid := r.PathValue("uid")
	if err := s.pins.ClearPIN(r.Context(), uid); err != nil {
		s.writeError(w, r, applog.OpDelete, err)
		return
	}
	s.revokeUnlocks(uid)
	s.logger.InfoContext(r.Context(), "PIN cleared", applog.FieldUserID, uid)
	w.WriteHeader(http.StatusNoContent)
}
