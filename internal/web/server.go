package web

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"

	"github.com/mckayc/task-donegeon-sub005/internal/core"
)

const sessionName = "quest-session"
const sessionUserIDKey = "user_id"

// Server is the JSON API surface over the quest engine
type Server struct {
	service       *core.Service
	sessionStore  *sessions.CookieStore
	sessionSecret string
}

// NewServer creates a new Server instance
func NewServer(service *core.Service, sessionSecret, publicURL string) *Server {
	store := sessions.NewCookieStore([]byte(sessionSecret))
	isHTTPS := strings.HasPrefix(publicURL, "https")
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		HttpOnly: true,
		Secure:   isHTTPS,
		SameSite: http.SameSiteLaxMode,
	}

	return &Server{
		service:       service,
		sessionStore:  store,
		sessionSecret: sessionSecret,
	}
}

// Router creates and configures the HTTP router
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Get("/healthz", s.handleHealth)
	r.Get("/auth", s.handleHashLogin)
	r.Post("/logout", s.handleLogout)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.requireAuth)

		r.Get("/me", s.handleMe)

		r.Post("/guilds", s.handleCreateGuild)
		r.Post("/guilds/join", s.handleJoinGuild)
		r.Get("/guilds/{guildID}/board", s.handleQuestBoard)
		r.Get("/guilds/{guildID}/quests", s.handleListQuests)
		r.Get("/guilds/{guildID}/market", s.handleListMarket)
		r.Get("/guilds/{guildID}/ledger", s.handleLedger)
		r.Get("/guilds/{guildID}/purchases", s.handlePurchaseHistory)

		r.Post("/quests", s.handleCreateQuest)
		r.Put("/quests/{questID}", s.handleUpdateQuest)
		r.Delete("/quests/{questID}", s.handleDeleteQuest)
		r.Get("/quests/{questID}/availability", s.handleAvailability)
		r.Post("/quests/{questID}/claim", s.handleSubmitClaim)
		r.Post("/quests/{questID}/complete", s.handleSubmitCompletion)

		r.Post("/claims/{claimID}/approve", s.handleApproveClaim)
		r.Post("/claims/{claimID}/reject", s.handleRejectClaim)
		r.Post("/claims/{claimID}/cancel", s.handleCancelClaim)

		r.Post("/completions/{completionID}/approve", s.handleApproveCompletion)
		r.Post("/completions/{completionID}/reject", s.handleRejectCompletion)

		r.Post("/condition-sets", s.handleCreateConditionSet)
		r.Post("/events", s.handleCreateEvent)

		r.Post("/rotations", s.handleCreateRotation)
		r.Post("/rotations/{rotationID}/run", s.handleRunRotation)

		r.Post("/market-items", s.handleCreateMarketItem)
		r.Delete("/market-items/{itemID}", s.handleDeleteMarketItem)
		r.Post("/market-items/{itemID}/buy", s.handleBuyItem)
		r.Post("/purchases/{purchaseID}/fulfill", s.handleFulfillPurchase)

		r.Post("/users/{userID}/trophies", s.handleAwardTrophy)
		r.Post("/catalog/refresh", s.handleRefreshCatalog)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// requireAuth rejects requests without an authenticated session
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := s.getUserID(r); !ok {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// getUserID retrieves the user ID from the session
func (s *Server) getUserID(r *http.Request) (int64, bool) {
	session, err := s.sessionStore.Get(r, sessionName)
	if err != nil {
		return 0, false
	}
	userID, ok := session.Values[sessionUserIDKey].(int64)
	return userID, ok
}

// setUserID sets the user ID in the session
func (s *Server) setUserID(w http.ResponseWriter, r *http.Request, userID int64) error {
	session, err := s.sessionStore.Get(r, sessionName)
	if err != nil {
		return err
	}
	session.Values[sessionUserIDKey] = userID
	return session.Save(r, w)
}

// clearSession clears the session
func (s *Server) clearSession(w http.ResponseWriter, r *http.Request) error {
	session, err := s.sessionStore.Get(r, sessionName)
	if err != nil {
		return err
	}
	session.Options.MaxAge = -1
	return session.Save(r, w)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeServiceError maps engine errors onto HTTP status codes: malformed
// definitions are 400, missing records 404, state conflicts 409.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case core.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case err == core.ErrNotFound:
		writeError(w, http.StatusNotFound, err.Error())
	case core.IsConflict(err):
		writeError(w, http.StatusConflict, err.Error())
	default:
		log.Printf("internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
