package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"feeledger/internal/auth"
	"feeledger/internal/core"
	"feeledger/internal/ledger"
	"feeledger/internal/log"
	"feeledger/internal/middleware/ratelimit"
	"feeledger/internal/middleware/security"
	"feeledger/internal/services"
	"feeledger/internal/session"
)

// Ledger is the read side of the aggregator used by the ledger endpoints.
type Ledger interface {
	AggregateGroup(ctx context.Context, tenantID, groupID string, sessionYear int, st core.StructureType) (ledger.GroupLedger, error)
	AggregateGroups(ctx context.Context, tenantID string, groupIDs []string, sessionYear int, st core.StructureType) ([]ledger.GroupLedger, error)
	AggregateTenant(ctx context.Context, tenantID string, sessionYear int, st core.StructureType) (ledger.TenantLedger, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators behind the API. All fields are required except
// Logger, which defaults to the process logger.
type Deps struct {
	Auth      auth.Authenticator
	Ledger    Ledger
	Calendar  session.Calendar
	Directory *services.DirectoryService
	Finance   *services.FinanceService
	Backup    *services.BackupService
	DB        Pinger
	Logger    *log.Logger

	RateLimitPerMinute int
}

type Server struct {
	http.Server
	deps    Deps
	logger  *log.Logger
	access  *log.StructuredLogger
	limiter *ratelimit.Limiter
	ips     *security.IPExtractor
	now     func() time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	s := &Server{
		deps:    deps,
		logger:  logger,
		access:  log.NewStructuredLogger(logger),
		limiter: ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: deps.RateLimitPerMinute}),
		ips:     security.NewIPExtractor(),
		now:     time.Now,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.Handle("GET /api/ledger/groups", s.authenticated(s.handleLedgerGroups))
	mux.Handle("GET /api/ledger/groups/{id}", s.authenticated(s.handleLedgerGroup))
	mux.Handle("GET /api/ledger/summary", s.authenticated(s.handleLedgerSummary))

	mux.Handle("POST /api/groups", s.authenticated(s.handleCreateGroup))
	mux.Handle("POST /api/members", s.authenticated(s.handleCreateMember))
	mux.Handle("POST /api/structures", s.authenticated(s.handleCreateStructure))

	mux.Handle("GET /api/finance-records", s.authenticated(s.handleListFinanceRecords))
	mux.Handle("POST /api/finance-records", s.authenticated(s.handleCreateFinanceRecord))
	mux.Handle("PATCH /api/finance-records/{id}", s.authenticated(s.handleUpdateFinanceRecord))

	mux.Handle("GET /api/export", s.authenticated(s.rateLimited(s.handleExport)))
	mux.Handle("POST /api/restore", s.authenticated(s.rateLimited(s.handleRestore)))

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	s.Server = http.Server{
		Addr:              addr,
		Handler:           headers.Middleware(s.withRequestLogging(mux)),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Shutdown stops the limiter cleanup and the HTTP server. Safe to call twice.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// withRequestLogging tags the request with an id and a scoped logger, then
// logs completion with status and duration.
func (s *Server) withRequestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := s.ips.ClientIP(r)

		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" || len(requestID) > 64 {
			requestID = "req_" + uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)

		reqLogger := s.logger.With(log.FieldRequestID, requestID)
		ctx := log.NewContext(r.Context(), reqLogger)
		r = r.WithContext(ctx)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		s.access.LogHTTPEnd(ctx, r, rw.statusCode, time.Since(start).Milliseconds(), clientIP)
	})
}

// authenticated resolves the principal from the bearer token. The tenant of
// every /api call comes from here and nowhere else.
func (s *Server) authenticated(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := auth.BearerToken(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		p, err := s.deps.Auth.Authenticate(r.Context(), token)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		ctx := auth.WithPrincipal(r.Context(), p)
		ctx = log.NewContext(ctx, log.FromContext(ctx).With(log.FieldTenantID, p.TenantID))
		next(w, r.WithContext(ctx))
	})
}

// rateLimited throttles per tenant. It must run inside authenticated.
func (s *Server) rateLimited(next http.HandlerFunc) http.HandlerFunc {
	keyFn := func(r *http.Request) string {
		if p, ok := auth.FromContext(r.Context()); ok {
			return "tenant:" + p.TenantID
		}
		return "ip:" + s.ips.ClientIP(r)
	}
	onLimit := func(w http.ResponseWriter, r *http.Request, retry int) {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldPath, r.URL.Path, "retry_after", retry)
		writeJSON(w, http.StatusTooManyRequests, errorBody{Error: errorPayload{
			Status:  http.StatusTooManyRequests,
			Code:    "rate_limited",
			Message: "rate limit exceeded, please try again later",
		}})
	}
	return s.limiter.Middleware(keyFn, onLimit)(next).ServeHTTP
}

// tenantOf returns the authenticated tenant. Handlers only run behind
// authenticated, so a missing principal is a wiring bug.
func tenantOf(r *http.Request) string {
	p, ok := auth.FromContext(r.Context())
	if !ok {
		slog.ErrorContext(r.Context(), "Handler reached without principal", "path", r.URL.Path)
		return ""
	}
	return p.TenantID
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

// invalidate drops cached ledgers of tenantID after a write, when the
// configured Ledger caches.
func (s *Server) invalidate(tenantID string) {
	if inv, ok := s.deps.Ledger.(interface{ Invalidate(tenantID string) }); ok {
		inv.Invalidate(tenantID)
	}
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if s.deps.DB != nil {
		if err := s.deps.DB.Ping(ctx); err != nil {
			log.FromContext(ctx).ErrorContext(ctx, "Readiness check failed", log.FieldError, err.Error())
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
