// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package api exposes the admin HTTP/WebSocket surface over the
// evaluation engine: POST /evaluate for one-shot evaluation against an
// arbitrary fixture request, GET /trace/stream for a live feed of
// evaluation trace records, and GET /healthz (SPEC_FULL §6 added).
package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"grimm.is/edgesentry/internal/engine"
	"grimm.is/edgesentry/internal/logging"
	"grimm.is/edgesentry/internal/reqctx"
	"grimm.is/edgesentry/internal/ruletypes"
)

// ServerConfig holds HTTP server hardening configuration, the same shape
// (and the same slowloris/body-size rationale) as the teacher's
// api.ServerConfig.
type ServerConfig struct {
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	MaxBodyBytes      int64
}

// DefaultServerConfig returns hardened defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16,
		MaxBodyBytes:      1 << 20,
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server is the admin HTTP surface over a single flat engine.
type Server struct {
	cfg       ServerConfig
	engine    *engine.Engine
	startTime time.Time

	router *mux.Router

	tracesMu sync.Mutex
	traces   []*websocket.Conn
}

// NewServer builds a Server wrapping e, routed with gorilla/mux.
func NewServer(cfg ServerConfig, e *engine.Engine) *Server {
	s := &Server{cfg: cfg, engine: e, startTime: time.Now(), router: mux.NewRouter()}
	s.router.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	s.router.HandleFunc("/evaluate", s.handleEvaluate).Methods(http.MethodPost)
	s.router.HandleFunc("/trace/stream", s.handleTraceStream).Methods(http.MethodGet)
	return s
}

// ServeHTTP implements http.Handler, delegating to the mux router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// HTTPServer builds a *http.Server configured with cfg's timeouts, guarding
// against slowloris-style resource exhaustion the way the teacher's
// DefaultServerConfig comments document for its own admin surface.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           http.MaxBytesHandler(s, s.cfg.MaxBodyBytes),
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		IdleTimeout:       s.cfg.IdleTimeout,
		MaxHeaderBytes:    s.cfg.MaxHeaderBytes,
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":     "ok",
		"uptime_sec": int(time.Since(s.startTime).Seconds()),
		"rule_count": s.engine.RuleCount(),
	})
}

// evaluateRequestBody is the JSON fixture POST /evaluate accepts: a subset
// of the fields reqctx.Request carries (method, path, query, client and
// server IP, headers, user agent), replayed against the engine.
type evaluateRequestBody struct {
	Method      string            `json:"method"`
	Path        string            `json:"path"`
	Query       string            `json:"query"`
	ClientIP    string            `json:"client_ip"`
	ServerIP    string            `json:"server_ip"`
	Headers     map[string]string `json:"headers"`
	UserAgent   string            `json:"user_agent"`
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var body evaluateRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	headerOrder := make([]string, 0, len(body.Headers))
	for name := range body.Headers {
		headerOrder = append(headerOrder, name)
	}

	start := time.Now()
	facade := reqctx.NewRequest(reqctx.Request{
		MethodVal:    body.Method,
		PathVal:      body.Path,
		QueryVal:     body.Query,
		ClientIPVal:  body.ClientIP,
		ServerIPVal:  body.ServerIP,
		HeaderOrder:  headerOrder,
		Headers:      body.Headers,
		UserAgentVal: body.UserAgent,
	}, reqctx.NewRegexDeviceDetector(), nil)

	result := s.engine.EvaluateWithDetails(facade)

	record := logging.NewRequestRecord(facade, start)
	for _, t := range result.Trace {
		record.AddRuleEvaluation(t)
	}
	action := string(result.Verdict.Kind)
	switch {
	case result.MatchedRule != "" && !result.Recognized:
		action = "unknown_action"
	case result.Verdict.Kind == ruletypes.VerdictAllow || result.Verdict.Kind == ruletypes.VerdictForward:
		action = "forwarded"
	case result.Verdict.Kind == ruletypes.VerdictBlock:
		action = "blocked"
	}
	record.SetFinalAction(action, result.Verdict.Kind == ruletypes.VerdictBlock)
	record.Finalize()

	s.broadcastTrace(record)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"verdict": result.Verdict,
		"matched_rule": result.MatchedRule,
		"record": record,
	})
}

// handleTraceStream upgrades to a WebSocket and fans out every subsequent
// /evaluate call's log record, letting an operator watch live evaluation
// traces; cmd/edgesentry-tui shows a similar view offline by replaying a
// fixture file itself.
func (s *Server) handleTraceStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn("trace stream upgrade failed", "error", err)
		return
	}

	s.tracesMu.Lock()
	s.traces = append(s.traces, conn)
	s.tracesMu.Unlock()

	// Drain inbound control frames until the client disconnects; this
	// stream is write-only from the server's perspective.
	go func() {
		defer s.removeTraceConn(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *Server) removeTraceConn(conn *websocket.Conn) {
	s.tracesMu.Lock()
	defer s.tracesMu.Unlock()
	for i, c := range s.traces {
		if c == conn {
			s.traces = append(s.traces[:i], s.traces[i+1:]...)
			break
		}
	}
	_ = conn.Close()
}

func (s *Server) broadcastTrace(record *logging.RequestRecord) {
	s.tracesMu.Lock()
	conns := append([]*websocket.Conn(nil), s.traces...)
	s.tracesMu.Unlock()

	for _, conn := range conns {
		if err := conn.WriteJSON(record); err != nil {
			s.removeTraceConn(conn)
		}
	}
}
