// Package web serves the chat page, the JSON API and the websocket stream.
package web

import (
	"errors"
	"html/template"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/zeeshanml/math-assistant/internal/assistant"
	"github.com/zeeshanml/math-assistant/internal/llm"
)

const (
	sessionCookie = "math_assistant_session"
	sessionKey    = "session_id"

	busyWarning  = "Please wait for the current answer to finish."
	errorWarning = "Something went wrong. Please try again."
)

// Config holds what the page shows about the running instance.
type Config struct {
	Provider string
	Model    string
	Version  string

	// CookieTTL is the session cookie lifetime. Zero makes it a browser
	// session cookie.
	CookieTTL time.Duration

	// SecureCookies marks the session cookie Secure; set behind TLS.
	SecureCookies bool

	// Profiler backs the usage endpoint. Nil reports an empty profile.
	Profiler *llm.Profiler
}

// Server holds the HTTP handlers. Conversations live in the manager; the
// server itself keeps no per-session state.
type Server struct {
	manager   *assistant.Manager
	cfg       Config
	templates *template.Template
	engine    *gin.Engine
}

// NewServer builds the gin engine with all routes registered.
func NewServer(manager *assistant.Manager, cfg Config) *Server {
	s := &Server{
		manager:   manager,
		cfg:       cfg,
		templates: loadTemplates(),
		engine:    gin.Default(),
	}
	s.routes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes() {
	s.engine.GET("/healthz", s.handleHealth)
	s.engine.GET("/api/v1/usage", s.handleUsageAPI)

	pages := s.engine.Group("/", s.withSession)
	{
		pages.GET("/", s.handleIndex)
		pages.POST("/credential", s.handleCredentialForm)
		pages.POST("/ask", s.handleAskForm)
		pages.POST("/reset", s.handleReset)
		pages.GET("/ws", s.handleStream)
	}

	v1 := s.engine.Group("/api/v1", s.withSession)
	{
		v1.POST("/credential", s.handleCredentialAPI)
		v1.POST("/ask", s.handleAskAPI)
		v1.GET("/transcript", s.handleTranscriptAPI)
	}
}

// withSession makes sure the request carries a session cookie and stores
// the session ID in the gin context.
func (s *Server) withSession(c *gin.Context) {
	id, err := c.Cookie(sessionCookie)
	if err != nil || uuid.Validate(id) != nil {
		id = uuid.NewString()
		maxAge := 0
		if s.cfg.CookieTTL > 0 {
			maxAge = int(s.cfg.CookieTTL.Seconds())
		}
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(sessionCookie, id, maxAge, "/", "", s.cfg.SecureCookies, true)
	}
	c.Set(sessionKey, id)
	c.Next()
}

func (s *Server) conversation(c *gin.Context) *assistant.Conversation {
	return s.manager.Get(c.GetString(sessionKey))
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": s.manager.Len(), "version": s.cfg.Version})
}

// handleUsageAPI reports the configured model's call statistics, summed over
// every session.
func (s *Server) handleUsageAPI(c *gin.Context) {
	profile, err := s.cfg.Profiler.GetProfile(c.Request.Context(), s.cfg.Model)
	if err != nil {
		log.Printf("❌ Failed to read usage profile for %s: %v", s.cfg.Model, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errorWarning})
		return
	}
	c.JSON(http.StatusOK, gin.H{"provider": s.cfg.Provider, "profile": profile})
}

// statusFor maps the conversation guard errors onto HTTP statuses and the
// warning shown to the user.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, assistant.ErrEmptyQuestion):
		return http.StatusBadRequest, assistant.EmptyQuestionWarning
	case errors.Is(err, assistant.ErrMissingCredential):
		return http.StatusUnauthorized, assistant.MissingCredentialWarning
	case errors.Is(err, assistant.ErrBusy):
		return http.StatusConflict, busyWarning
	default:
		log.Printf("❌ Request failed: %v", err)
		return http.StatusInternalServerError, errorWarning
	}
}
