package rpc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	jwt "github.com/golang-jwt/jwt/v5"
)

// AuthConfig configures bearer token verification for mutating routes.
type AuthConfig struct {
	HMACSecret string
	Issuer     string
	Audience   string
	ClockSkew  time.Duration
}

type contextKey string

const contextKeySubject contextKey = "revledger.subject"

// Authenticator verifies HMAC-signed bearer tokens. The token subject is the
// hex identity the request acts as.
type Authenticator struct {
	cfg    AuthConfig
	secret []byte
}

// NewAuthenticator validates cfg and returns an authenticator.
func NewAuthenticator(cfg AuthConfig) (*Authenticator, error) {
	secret := []byte(strings.TrimSpace(cfg.HMACSecret))
	if len(secret) == 0 {
		return nil, errors.New("auth secret not configured")
	}
	if cfg.ClockSkew <= 0 {
		cfg.ClockSkew = 2 * time.Minute
	}
	return &Authenticator{cfg: cfg, secret: secret}, nil
}

// Middleware rejects requests without a valid bearer token and stores the
// token subject on the request context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := extractBearer(r.Header.Get("Authorization"))
		if raw == "" {
			writeError(w, r, http.StatusUnauthorized, "missing bearer token")
			return
		}
		subject, err := a.parseSubject(raw)
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "invalid token")
			return
		}
		ctx := context.WithValue(r.Context(), contextKeySubject, subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *Authenticator) parseSubject(raw string) ([20]byte, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{
			jwt.SigningMethodHS256.Alg(),
			jwt.SigningMethodHS384.Alg(),
			jwt.SigningMethodHS512.Alg(),
		}),
		jwt.WithLeeway(a.cfg.ClockSkew),
		jwt.WithExpirationRequired(),
	}
	if a.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.cfg.Issuer))
	}
	if a.cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(a.cfg.Audience))
	}
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return [20]byte{}, err
	}
	if !token.Valid {
		return [20]byte{}, errors.New("token invalid")
	}
	if !common.IsHexAddress(claims.Subject) {
		return [20]byte{}, fmt.Errorf("subject %q is not an identity", claims.Subject)
	}
	return common.HexToAddress(claims.Subject), nil
}

func extractBearer(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// SubjectFromContext returns the authenticated identity of the request.
func SubjectFromContext(ctx context.Context) ([20]byte, bool) {
	id, ok := ctx.Value(contextKeySubject).([20]byte)
	return id, ok
}

// CallerAuthorizer authorizes only the identity of the request currently
// being served. Run serializes callers so one identity is active at a time.
type CallerAuthorizer struct {
	serial sync.Mutex
	mu     sync.RWMutex
	caller [20]byte
	active bool
}

// NewCallerAuthorizer returns an authorizer that denies everyone outside Run.
func NewCallerAuthorizer() *CallerAuthorizer { return &CallerAuthorizer{} }

// Authorized reports whether id is the active caller.
func (a *CallerAuthorizer) Authorized(id [20]byte) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.active && a.caller == id
}

// Run executes fn with caller as the only authorized identity.
func (a *CallerAuthorizer) Run(caller [20]byte, fn func() error) error {
	a.serial.Lock()
	defer a.serial.Unlock()
	a.set(caller, true)
	defer a.set([20]byte{}, false)
	return fn()
}

func (a *CallerAuthorizer) set(caller [20]byte, active bool) {
	a.mu.Lock()
	a.caller, a.active = caller, active
	a.mu.Unlock()
}
