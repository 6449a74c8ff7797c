package web

import (
	"log"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"

	"github.com/zeeshanml/math-assistant/internal/agent"
	"github.com/zeeshanml/math-assistant/internal/api"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || origin == "http://"+r.Host || origin == "https://"+r.Host
	},
}

// safeConn serializes writes; gorilla connections allow one writer at a time.
type safeConn struct {
	*websocket.Conn
	mu sync.Mutex
}

func (sc *safeConn) writeFrame(frame api.StreamFrame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.Conn.WriteMessage(websocket.TextMessage, data)
}

// handleStream answers questions sent over a websocket. Each incoming frame
// is {"question": "..."}; the router's progress is streamed back as
// decision/tool_start/step frames followed by one answer or error frame.
func (s *Server) handleStream(c *gin.Context) {
	rawConn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("⚠️ Websocket upgrade failed: %v", err)
		return
	}
	conn := &safeConn{Conn: rawConn}
	defer conn.Close()

	conv := s.conversation(c)
	ctx := c.Request.Context()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var req api.AskRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			_ = conn.writeFrame(api.StreamFrame{Type: string(agent.EventFailed), Content: "Invalid request."})
			continue
		}

		observer := func(ev agent.Event) {
			// Terminal events are sent below, once the turn is recorded.
			if ev.Kind == agent.EventAnswer || ev.Kind == agent.EventFailed {
				return
			}
			if err := conn.writeFrame(ev.Frame()); err != nil {
				log.Printf("⚠️ Websocket write failed: %v", err)
			}
		}

		turn, err := conv.Ask(ctx, req.Question, observer)
		if err != nil {
			_, warning := statusFor(err)
			_ = conn.writeFrame(api.StreamFrame{Type: string(agent.EventFailed), Content: warning})
			continue
		}

		final := api.StreamFrame{Type: string(agent.EventAnswer), State: string(turn.State), Content: turn.Answer}
		if turn.Failed() {
			final.Type = string(agent.EventFailed)
		}
		if err := conn.writeFrame(final); err != nil {
			return
		}
	}
}
