package web

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"log"
	"net/http"
)

// handleHashLogin processes hash-based login handed out by the Telegram bot.
// URL format: /auth?user=<username>&hash=<hmac>
func (s *Server) handleHashLogin(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("user")
	providedHash := r.URL.Query().Get("hash")
	if username == "" || providedHash == "" {
		writeError(w, http.StatusBadRequest, "missing user or hash")
		return
	}

	expectedHash := s.generateLoginHash(username)
	if !hmac.Equal([]byte(providedHash), []byte(expectedHash)) {
		log.Printf("invalid login hash for user %q", username)
		writeError(w, http.StatusUnauthorized, "invalid or expired login link")
		return
	}

	user, err := s.service.GetUserByUsername(username)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unknown user")
		return
	}
	if err := s.setUserID(w, r, user.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"userId": user.ID, "username": user.Username})
}

// generateLoginHash generates an HMAC-SHA256 hash for a username
func (s *Server) generateLoginHash(username string) string {
	h := hmac.New(sha256.New, []byte(s.sessionSecret))
	h.Write([]byte(username))
	return hex.EncodeToString(h.Sum(nil))
}

// handleLogout clears the session
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.clearSession(w, r); err != nil {
		log.Printf("failed to clear session: %v", err)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}
