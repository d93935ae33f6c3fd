package server

import (
	"encoding/json"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ajsharma/neon_playground/internal/bridge"
	"github.com/ajsharma/neon_playground/internal/config"
	"github.com/ajsharma/neon_playground/internal/transcript"
)

// checkOrigin accepts upgrades without an Origin header, from the page's own
// host, and from a loopback origin on the listen port.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	if strings.EqualFold(u.Host, r.Host) || strings.EqualFold(u.Host, s.config.ListenAddr) {
		return true
	}

	host, port, err := net.SplitHostPort(u.Host)
	if err != nil {
		return false
	}
	listenHost, listenPort, err := net.SplitHostPort(s.config.ListenAddr)
	if err != nil || port != listenPort {
		return false
	}
	return isLoopback(host) && (listenHost == "" || isLoopback(listenHost))
}

func isLoopback(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// Inbound frame types.
const (
	frameMessage = "message"
	frameRender  = "render"
	framePing    = "ping"
)

// inboundFrame is sent by the playground UI. Data carries whatever a
// message event delivered to the editor window, unfiltered.
type inboundFrame struct {
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data,omitempty"`
	Bytes int             `json:"bytes,omitempty"`
}

// outboundFrame is pushed to the UI for every appended entry and as a reply
// to control frames.
type outboundFrame struct {
	Type       string        `json:"type"`
	Entry      *bridge.Entry `json:"entry,omitempty"`
	HTML       string        `json:"html,omitempty"`
	Session    string        `json:"session,omitempty"`
	Generation uint64        `json:"generation,omitempty"`
	Message    string        `json:"message,omitempty"`
	Timestamp  int64         `json:"timestamp"`
}

// wsConn is one playground window. It owns the window's host log.
type wsConn struct {
	conn     *websocket.Conn
	writeMu  sync.Mutex
	receiver *bridge.Receiver
	recorder *transcript.Recorder
	logger   *zap.Logger
	id       string
	gen      uint64
}

func (w *wsConn) send(f outboundFrame) error {
	f.Timestamp = time.Now().Unix()
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	return w.conn.WriteJSON(f)
}

func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	s.metrics.WSConnections.Inc()
	defer s.metrics.WSConnections.Dec()

	id := s.sessions.Open(c.ClientIP())
	defer s.sessions.Close(id)

	w := &wsConn{
		conn:     conn,
		receiver: bridge.NewReceiver(nil),
		logger:   s.logger.With(zap.String("session", id)),
		id:       id,
	}

	if s.transcripts != nil {
		rec, err := transcript.NewRecorder(s.transcripts, id, "ws:"+c.ClientIP(), config.Version, w.receiver.Log(), s.redactor, w.logger)
		if err != nil {
			w.logger.Warn("Transcript disabled for session", zap.Error(err))
		} else {
			w.recorder = rec
			defer func() {
				if err := rec.Close(); err != nil {
					w.logger.Warn("Failed to close transcript", zap.Error(err))
				}
			}()
		}
	}

	unsubscribe := w.receiver.Log().Subscribe(func(e bridge.Entry) {
		s.metrics.RecordEntry(e)
		entry := e
		if err := w.send(outboundFrame{Type: "entry", Entry: &entry, HTML: bridge.RenderHTML(e)}); err != nil {
			w.logger.Debug("Failed to push entry", zap.Error(err))
		}
	})
	defer unsubscribe()

	w.logger.Info("Bridge session opened")
	if err := w.send(outboundFrame{Type: "session", Session: id}); err != nil {
		return
	}

	for {
		var frame inboundFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				w.logger.Warn("WebSocket read error", zap.Error(err))
			}
			break
		}
		s.handleFrame(w, frame)
	}

	w.logger.Info("Bridge session closed",
		zap.Int("entries", w.receiver.Log().Len()),
		zap.Int64("dropped", w.receiver.Dropped()),
	)
}

func (s *Server) handleFrame(w *wsConn, frame inboundFrame) {
	switch frame.Type {
	case frameMessage:
		if _, ok := w.receiver.Receive(frame.Data); !ok {
			s.metrics.DroppedMessages.Inc()
		}
	case frameRender:
		w.gen++
		s.metrics.RecordRender("browser", nil)
		if w.recorder != nil {
			w.recorder.Render(w.gen, frame.Bytes, nil)
		}
		_ = w.send(outboundFrame{Type: "rendered", Generation: w.gen})
	case framePing:
		_ = w.send(outboundFrame{Type: "pong"})
	default:
		_ = w.send(outboundFrame{Type: "error", Message: "unknown frame type"})
	}
}
