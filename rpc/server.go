package rpc

import (
	"log/slog"
	"math/big"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"revledger/native/revshare"
	"revledger/observability/otel"
)

// Ledger is the read-only subset of the revenue share engine served over HTTP.
type Ledger interface {
	SafetyState() (*revshare.SafetyState, error)
	GetOfferingsPage(issuer [20]byte, cursor, limit uint32) ([]*revshare.Offering, *uint32, error)
	GetOfferingCount(issuer [20]byte) (uint32, error)
	GetAuditSummary(issuer, token [20]byte) (*revshare.AuditSummary, bool, error)
	GetBlacklist(token [20]byte) ([][20]byte, error)
	GetClaimRecord(token, holder [20]byte, periodID uint64) (*revshare.ClaimRecord, bool, error)
	GetClaimStatus(token, holder [20]byte, periodID uint64) (revshare.ClaimStatus, error)
	GetPendingPeriods(token, holder [20]byte) ([]uint64, error)
	GetClaimable(token, holder [20]byte) (*big.Int, error)
}

// Server exposes ledger queries as JSON over HTTP. Write routes are only
// mounted when WithMutations is supplied.
type Server struct {
	ledger  Ledger
	logger  *slog.Logger
	router  http.Handler
	mutator Mutator
	auth    *Authenticator
	callers *CallerAuthorizer
}

// NewServer builds the HTTP router for the supplied ledger.
func NewServer(ledger Ledger, logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	srv := &Server{ledger: ledger, logger: logger.With(slog.String("component", "rpc"))}
	for _, opt := range opts {
		opt(srv)
	}
	srv.router = srv.buildRouter()
	return srv
}

// Handler exposes the configured HTTP router.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.router.ServeHTTP(w, r) }

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(chimw.Recoverer)
	r.Use(s.observe)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(api chi.Router) {
		api.Route("/safety", func(sr chi.Router) {
			sr.Get("/", s.handleSafety)
			if s.writesEnabled() {
				s.mountSafetyWrites(sr)
			}
		})
		api.Route("/issuers/{issuer}/offerings", func(off chi.Router) {
			off.Get("/", s.handleOfferings)
			off.Get("/count", s.handleOfferingCount)
			off.Get("/{token}/audit", s.handleAudit)
			if s.writesEnabled() {
				s.mountOfferingWrites(off)
			}
		})
		api.Route("/tokens/{token}", func(tok chi.Router) {
			tok.Get("/blacklist", s.handleBlacklist)
			tok.Get("/holders/{holder}/periods/{period}/claim", s.handleClaim)
			tok.Get("/holders/{holder}/claimable", s.handleClaimable)
			if s.writesEnabled() {
				s.mountTokenWrites(tok)
			}
		})
	})
	return otelhttp.NewHandler(r, otel.TracerName,
		otelhttp.WithSpanNameFormatter(func(_ string, req *http.Request) string {
			return req.Method + " " + req.URL.Path
		}))
}
