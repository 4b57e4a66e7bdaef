package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/elnormous/contenttype"

	"github.com/graphgate/graphgate/graph"
	"github.com/graphgate/graphgate/internal/fault"
	"github.com/graphgate/graphgate/internal/jsonrpc"
	"github.com/graphgate/graphgate/internal/logctx"
	"github.com/graphgate/graphgate/metrics"
	"github.com/graphgate/graphgate/ratelimit"
	"github.com/graphgate/graphgate/records"
	"github.com/graphgate/graphgate/secret"
	"github.com/graphgate/graphgate/sessions"
	"github.com/graphgate/graphgate/shape"
	"github.com/graphgate/graphgate/storage"
)

var _ http.Handler = (*Server)(nil)

var jsonMediaType = contenttype.NewMediaType("application/json")

const (
	defaultMaxBodyBytes = 10 << 20 // 10MB
	defaultRateMax      = 100
	defaultRateWindow   = 60
)

// Server routes JSON-RPC tool-call requests through the authentication,
// rate-limiting, validation, and shaping pipeline. Each request is handled
// independently; all cross-request state lives in the KV store.
type Server struct {
	log       *slog.Logger
	kv        storage.KV
	sessions  *sessions.Store
	records   records.Store
	limiter   *ratelimit.Limiter
	client    *graph.Client
	extractor *graph.Extractor
	shaper    *shape.Shaper
	metrics   *metrics.Metrics
	encKey    []byte

	name    string
	version string

	rateMax           int
	rateWindowSeconds int
	tokenBudget       int
	schemaCacheTTL    time.Duration
	maxBodyBytes      int64
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the server's logger. If not provided, logs are
// discarded.
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) { s.log = log }
}

// WithMetrics attaches pipeline metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithGraphClient substitutes the remote query client.
func WithGraphClient(c *graph.Client) Option {
	return func(s *Server) { s.client = c }
}

// WithRateLimit sets the fixed-window quota applied per caller identity.
func WithRateLimit(maxRequests, windowSeconds int) Option {
	return func(s *Server) {
		s.rateMax = maxRequests
		s.rateWindowSeconds = windowSeconds
	}
}

// WithTokenBudget sets the default response budget in estimated tokens.
func WithTokenBudget(budget int) Option {
	return func(s *Server) { s.tokenBudget = budget }
}

// WithSchemaCacheTTL sets how long extracted schemas stay cached.
func WithSchemaCacheTTL(ttl time.Duration) Option {
	return func(s *Server) { s.schemaCacheTTL = ttl }
}

// WithServerInfo overrides the identity reported from initialize.
func WithServerInfo(name, version string) Option {
	return func(s *Server) {
		s.name = name
		s.version = version
	}
}

// WithSessionTTL sets the lifetime of sessions minted by the session
// store.
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Server) { s.sessions = sessions.NewStore(s.kv, ttl, s.log) }
}

// New creates a Server over the given stores. The encryption key may be
// any length; it is derived down to the cipher key size.
func New(encKey []byte, kv storage.KV, rec records.Store, opts ...Option) *Server {
	s := &Server{
		log:               slog.New(slog.NewTextHandler(io.Discard, nil)),
		kv:                kv,
		records:           rec,
		encKey:            secret.DeriveKey(encKey),
		name:              "graphgate",
		version:           "1.0.0",
		rateMax:           defaultRateMax,
		rateWindowSeconds: defaultRateWindow,
		tokenBudget:       shape.DefaultTokenBudget,
		schemaCacheTTL:    5 * time.Minute,
		maxBodyBytes:      defaultMaxBodyBytes,
		shaper:            &shape.Shaper{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sessions == nil {
		s.sessions = sessions.NewStore(kv, 0, s.log)
	}
	if s.limiter == nil {
		s.limiter = ratelimit.New(kv, s.log)
	}
	if s.client == nil {
		s.client = graph.NewClient(graph.WithLogger(s.log))
	}
	if s.extractor == nil {
		s.extractor = graph.NewExtractor(s.client, s.log)
	}
	return s
}

// Sessions exposes the session store for out-of-band issuance (the
// configuration surface creates sessions; this server only consumes them).
func (s *Server) Sessions() *sessions.Store {
	return s.sessions
}

// ServeHTTP handles one JSON-RPC request. Protocol faults are returned as
// JSON-RPC error envelopes with transport status 200; only transport-level
// rejections (wrong verb, wrong media type, oversized body) use non-200
// statuses.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeTransportError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	if mt, err := contenttype.GetMediaType(r); err != nil || !mt.Matches(jsonMediaType) {
		writeTransportError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, s.maxBodyBytes+1))
	if err != nil {
		writeTransportError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	if int64(len(body)) > s.maxBodyBytes {
		writeTransportError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}

	req, err := jsonrpc.Decode(body)
	if err != nil {
		s.countRequest("", "fault")
		s.writeResponse(w, jsonrpc.NewFaultResponse(nil, err))
		return
	}

	ctx := logctx.WithRequestData(r.Context(), &logctx.RequestData{
		RequestID:  req.ID.String(),
		Method:     req.Method,
		RemoteAddr: r.RemoteAddr,
	})

	auth, err := s.resolveAuth(ctx, extractToken(r))
	if err != nil {
		s.countRequest(req.Method, "fault")
		s.finish(w, req, jsonrpc.NewFaultResponse(req.ID, err))
		return
	}
	callerID := ""
	if auth != nil {
		callerID = auth.session.CallerID
		ctx = logctx.WithSessionData(ctx, &logctx.SessionData{
			CallerID:     auth.session.CallerID,
			ConnectionID: auth.session.ConnectionID,
		})
	}

	identity := ratelimit.ResolveIdentity(callerID, r.Header.Get("X-Forwarded-For"))
	rl := s.limiter.CheckAndIncrement(ctx, identity, s.rateMax, s.rateWindowSeconds)
	if !rl.Allowed {
		if s.metrics != nil {
			s.metrics.RateLimitRejections.Inc()
		}
		s.countRequest(req.Method, "rate_limited")
		retryAfter := rl.RetryAfterSeconds()
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		rlErr := fault.New(fault.KindRateLimit, "rate limit exceeded").WithData(map[string]any{
			"retryAfter": retryAfter,
			"current":    rl.Current,
			"limit":      s.rateMax,
		})
		s.finish(w, req, jsonrpc.NewFaultResponse(req.ID, rlErr))
		return
	}

	resp := s.dispatch(ctx, auth, req)
	outcome := "ok"
	if resp != nil && resp.Error != nil {
		outcome = "fault"
	}
	s.countRequest(req.Method, outcome)
	s.finish(w, req, resp)
}

// dispatch routes a validated request to its method handler. Methods beyond
// the declared set fall to a single method-not-found path.
func (s *Server) dispatch(ctx context.Context, auth *authState, req *jsonrpc.Request) *jsonrpc.Response {
	switch method(req.Method) {
	case methodInitialize:
		return s.handleInitialize(req)
	case methodInitialized:
		// Notification only; nothing to do beyond acknowledging.
		return s.emptyResult(req)
	case methodToolsList:
		return s.resultResponse(req, &ListToolsResult{Tools: s.toolDescriptors()})
	case methodToolsCall:
		return s.handleToolCall(ctx, auth, req)
	case methodPing:
		return s.emptyResult(req)
	default:
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.CodeMethodNotFound, "method not found: "+req.Method, nil)
	}
}

func (s *Server) handleInitialize(req *jsonrpc.Request) *jsonrpc.Response {
	var params InitializeParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return jsonrpc.NewErrorResponse(req.ID, jsonrpc.CodeInvalidParams, "invalid initialize params", nil)
		}
	}
	return s.resultResponse(req, &InitializeResult{
		ProtocolVersion: ProtocolVersion,
		Capabilities:    map[string]any{"tools": map[string]any{}},
		ServerInfo:      ServerInfo{Name: s.name, Version: s.version},
	})
}

func (s *Server) resultResponse(req *jsonrpc.Request, result any) *jsonrpc.Response {
	resp, err := jsonrpc.NewResultResponse(req.ID, result)
	if err != nil {
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.CodeInternal, "internal error", nil)
	}
	return resp
}

func (s *Server) emptyResult(req *jsonrpc.Request) *jsonrpc.Response {
	return s.resultResponse(req, map[string]any{})
}

// finish writes the response envelope, honoring notification semantics: a
// request without an id gets an empty acknowledgment, never a body.
func (s *Server) finish(w http.ResponseWriter, req *jsonrpc.Request, resp *jsonrpc.Response) {
	if req.IsNotification() {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	s.writeResponse(w, resp)
}

func (s *Server) writeResponse(w http.ResponseWriter, resp *jsonrpc.Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.log.Error("failed to write response", slog.Any("error", err))
	}
}

func (s *Server) countRequest(method, outcome string) {
	if s.metrics != nil {
		s.metrics.RequestsTotal.WithLabelValues(method, outcome).Inc()
	}
}

// writeTransportError emits a minimal JSON body for HTTP-layer rejections
// before a JSON-RPC exchange is possible. No JSON-RPC framing is claimed
// here.
func writeTransportError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"code": status, "message": msg}})
}
