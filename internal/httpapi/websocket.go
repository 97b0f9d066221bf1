package httpapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"codebuddy/pkg/types"
)

const wsWriteWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  32 << 10,
	WriteBufferSize: 32 << 10,
	CheckOrigin:     checkOrigin,
}

// checkOrigin allows same-host requests, plus any configured CORS origin.
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if corsEnabled {
		for _, o := range corsAllowedOrigins {
			if o == "*" || o == origin {
				return true
			}
		}
	}
	return origin == "http://"+r.Host || origin == "https://"+r.Host
}

// wsConn serializes writes; gorilla connections allow one concurrent writer.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return c.conn.WriteJSON(v)
}

// handleWebSocket godoc
//
//	@Summary		Generate code over a WebSocket
//	@Description	Each text message is a GenerationRequest; the server answers with Chunk messages, ending with a final chunk or an ErrorResponse.
//	@Tags			generation
//	@Router			/ws/generate [get]
func (s *server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		zlog.Warn().Err(err).Msg("ws event=upgrade_failed")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxBodyBytes)
	wsSessions.Inc()
	defer wsSessions.Dec()

	rid := middleware.GetReqID(r.Context())
	zlog.Info().Str("request_id", rid).Msg("ws event=connected")
	c := &wsConn{conn: conn}
	for {
		var req types.GenerationRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				zlog.Warn().Str("request_id", rid).Err(err).Msg("ws event=read_failed")
			}
			return
		}
		if err := s.Validator.Struct(req); err != nil {
			if c.send(types.ErrorResponse{Error: err.Error(), Code: http.StatusBadRequest}) != nil {
				return
			}
			continue
		}

		ctx, cancel := requestContext(r.Context())
		err := s.Assistant.Generate(ctx, req, func(ch types.Chunk) error { return c.send(ch) })
		cancel()
		if err != nil {
			if canceled(r.Context()) {
				return
			}
			status := statusFor(err)
			if status == http.StatusTooManyRequests {
				IncrementBackpressure("queue")
			}
			zlog.Info().Str("request_id", rid).Int("status", status).Err(err).Msg("ws event=generate_failed")
			if c.send(types.ErrorResponse{Error: err.Error(), Code: status}) != nil {
				return
			}
		}
	}
}
