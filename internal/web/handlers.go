package web

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/zeeshanml/math-assistant/internal/api"
	"github.com/zeeshanml/math-assistant/internal/assistant"
)

// Warning codes carried in the redirect after a form post.
const (
	warnEmptyQuestion     = "empty"
	warnMissingCredential = "credential"
	warnBusy              = "busy"
	warnError             = "error"
)

var warnings = map[string]string{
	warnEmptyQuestion:     assistant.EmptyQuestionWarning,
	warnMissingCredential: assistant.MissingCredentialWarning,
	warnBusy:              busyWarning,
	warnError:             errorWarning,
}

func (s *Server) handleIndex(c *gin.Context) {
	conv := s.conversation(c)
	messages, err := conv.Transcript(c.Request.Context())
	if err != nil {
		_, msg := statusFor(err)
		c.String(http.StatusInternalServerError, msg)
		return
	}

	data := pageData{
		HasCredential: conv.HasCredential(),
		Messages:      messageViews(messages),
		LastTurn:      turnViewOf(conv.LastTurn()),
		Warning:       warnings[c.Query("warning")],
		Provider:      s.cfg.Provider,
		Model:         s.cfg.Model,
		Version:       s.cfg.Version,
	}
	s.render(c, "index.html", data)
}

func (s *Server) handleCredentialForm(c *gin.Context) {
	if err := s.conversation(c).SetCredential(c.PostForm("api_key")); err != nil {
		redirectWith(c, warningCode(err))
		return
	}
	redirectWith(c, "")
}

func (s *Server) handleAskForm(c *gin.Context) {
	_, err := s.conversation(c).Ask(c.Request.Context(), c.PostForm("question"), nil)
	if err != nil {
		redirectWith(c, warningCode(err))
		return
	}
	redirectWith(c, "")
}

func (s *Server) handleReset(c *gin.Context) {
	if err := s.conversation(c).Reset(c.Request.Context()); err != nil {
		redirectWith(c, warningCode(err))
		return
	}
	redirectWith(c, "")
}

func (s *Server) handleCredentialAPI(c *gin.Context) {
	var req api.CredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	if err := s.conversation(c).SetCredential(req.APIKey); err != nil {
		status, msg := statusFor(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleAskAPI(c *gin.Context) {
	var req api.AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": warnings[warnEmptyQuestion]})
		return
	}
	turn, err := s.conversation(c).Ask(c.Request.Context(), req.Question, nil)
	if err != nil {
		status, msg := statusFor(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}
	c.JSON(http.StatusOK, turn.Response())
}

func (s *Server) handleTranscriptAPI(c *gin.Context) {
	conv := s.conversation(c)
	messages, err := conv.Transcript(c.Request.Context())
	if err != nil {
		status, msg := statusFor(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}
	resp := api.TranscriptResponse{
		SessionID:     conv.ID(),
		HasCredential: conv.HasCredential(),
		Messages:      make([]api.Message, len(messages)),
	}
	for i, m := range messages {
		resp.Messages[i] = api.Message{Role: string(m.Role), Content: m.Content}
	}
	c.JSON(http.StatusOK, resp)
}

func warningCode(err error) string {
	status, _ := statusFor(err)
	switch status {
	case http.StatusBadRequest:
		return warnEmptyQuestion
	case http.StatusUnauthorized:
		return warnMissingCredential
	case http.StatusConflict:
		return warnBusy
	default:
		return warnError
	}
}

func redirectWith(c *gin.Context, warning string) {
	target := "/"
	if warning != "" {
		target += "?" + url.Values{"warning": {warning}}.Encode()
	}
	c.Redirect(http.StatusSeeOther, target)
}
