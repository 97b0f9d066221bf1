package httpapi

import (
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// zlog is the structured logger of the HTTP layer. Nop until SetLogger.
var zlog = zerolog.Nop()

// SetLogger installs a structured logger used by the HTTP layer.
func SetLogger(l zerolog.Logger) { zlog = l }

// LogLevel controls per-request logging behavior.
type LogLevel int

const (
	LevelOff LogLevel = iota
	LevelError
	LevelInfo
	LevelDebug
)

func parseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off", "":
		return LevelOff
	case "error":
		return LevelError
	case "info":
		return LevelInfo
	case "debug", "1":
		return LevelDebug
	default:
		return LevelInfo
	}
}

// global default, read once
var defaultLogLevel = parseLevel(os.Getenv("CODEBUDDY_LOG_LEVEL"))

// SetDefaultLogLevel overrides the level used when a request names none.
func SetDefaultLogLevel(s string) { defaultLogLevel = parseLevel(s) }

// requestLogLevel honors a ?log= query or an X-Log-Level header.
func requestLogLevel(r *http.Request) LogLevel {
	if v := r.URL.Query().Get("log"); v != "" {
		return parseLevel(v)
	}
	if v := r.Header.Get("X-Log-Level"); v != "" {
		return parseLevel(v)
	}
	return defaultLogLevel
}

// reqLog carries the per-request level and start time through a handler.
type reqLog struct {
	lvl   LogLevel
	start time.Time
	op    string
	rid   string
}

func newReqLog(r *http.Request, op string) reqLog {
	return reqLog{lvl: requestLogLevel(r), start: time.Now(), op: op, rid: middleware.GetReqID(r.Context())}
}

func (l reqLog) begin(lang string) {
	if l.lvl < LevelInfo {
		return
	}
	zlog.Info().Str("request_id", l.rid).Str("language", lang).Msg(l.op + " start")
}

func (l reqLog) chunk(kind, text string) {
	if l.lvl < LevelDebug {
		return
	}
	zlog.Debug().Str("request_id", l.rid).Str("kind", kind).Int("bytes", len(text)).Msg(l.op + "> chunk")
}

func (l reqLog) end(status int, err error) {
	switch {
	case err != nil && l.lvl >= LevelError:
		zlog.Error().Str("request_id", l.rid).Int("status", status).Dur("dur", time.Since(l.start)).Err(err).Msg(l.op + " end")
	case err == nil && l.lvl >= LevelInfo:
		zlog.Info().Str("request_id", l.rid).Int("status", status).Dur("dur", time.Since(l.start)).Msg(l.op + " end")
	}
}
