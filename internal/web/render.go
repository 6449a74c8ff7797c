package web

import (
	"bytes"
	"embed"
	"html/template"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/zeeshanml/math-assistant/internal/agent"
	"github.com/zeeshanml/math-assistant/internal/api"
	"github.com/zeeshanml/math-assistant/internal/assistant"
	"github.com/zeeshanml/math-assistant/internal/session"
)

//go:embed templates/*.html
var templateFiles embed.FS

// markdown renders chat messages. Raw HTML in the source is dropped, which
// is goldmark's default.
var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

type messageView struct {
	Role string
	HTML template.HTML
}

type turnView struct {
	State  string
	Error  string
	Steps  []api.Step
	Failed bool
}

type pageData struct {
	HasCredential bool
	Messages      []messageView
	LastTurn      *turnView
	Warning       string
	Provider      string
	Model         string
	Version       string
}

func loadTemplates() *template.Template {
	return template.Must(template.New("").ParseFS(templateFiles, "templates/*.html"))
}

func (s *Server) render(c *gin.Context, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		log.Printf("❌ Template %s failed: %v", name, err)
		c.String(http.StatusInternalServerError, "template error")
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

// renderMarkdown converts message text to HTML. On a conversion error the
// text is shown escaped.
func renderMarkdown(src string) template.HTML {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(src))
	}
	return template.HTML(buf.String())
}

func messageViews(messages []session.Message) []messageView {
	views := make([]messageView, len(messages))
	for i, m := range messages {
		views[i] = messageView{Role: string(m.Role), HTML: renderMarkdown(m.Content)}
	}
	return views
}

func turnViewOf(turn *assistant.Turn) *turnView {
	if turn == nil {
		return nil
	}
	resp := turn.Response()
	return &turnView{
		State:  resp.State,
		Error:  resp.Error,
		Steps:  resp.Steps,
		Failed: turn.State == agent.StateFailed,
	}
}
