package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"revledger/native/revshare"
)

// Mutator is the state-changing subset of the revenue share engine. Every
// call is authorized against the identity of the bearer token.
type Mutator interface {
	Initialize(admin [20]byte, safety *[20]byte) error
	SetAdmin(newAdmin [20]byte) error
	PauseAdmin() error
	UnpauseAdmin() error
	PauseSafety() error
	UnpauseSafety() error
	Freeze() error
	SetTestnetMode(enabled bool) error
	SetPlatformFee(bps uint32) error
	RegisterOffering(issuer, token [20]byte, bps uint32, paymentToken [20]byte) (*revshare.Offering, error)
	SetOfferingMetadata(issuer, token [20]byte, metadata string) error
	SetHolderShare(issuer, token, holder [20]byte, bps uint32) error
	SetConcentrationLimit(issuer, token [20]byte, limitBps uint32, enforced bool) error
	SetRoundingMode(issuer, token [20]byte, mode revshare.RoundingMode) error
	SetMinRevenueThreshold(issuer, token [20]byte, threshold *big.Int) error
	SetClaimDelay(issuer, token [20]byte, seconds uint64) error
	DepositRevenue(issuer, token, paymentToken [20]byte, amount *big.Int, periodID uint64, finalize bool) error
	ReportRevenue(issuer, token, paymentToken [20]byte, amount *big.Int, periodID uint64, finalize bool) error
	ClosePeriod(issuer, token [20]byte, periodID uint64) error
	BlacklistAdd(caller, token, investor [20]byte) error
	BlacklistRemove(caller, token, investor [20]byte) error
}

// Option customises a Server.
type Option func(*Server)

// WithMutations mounts the write routes. Requests must carry a bearer token
// accepted by auth, and callers must be the engine's Authorizer so the token
// subject is the only identity authorized while the request runs.
func WithMutations(m Mutator, auth *Authenticator, callers *CallerAuthorizer) Option {
	return func(s *Server) {
		s.mutator, s.auth, s.callers = m, auth, callers
	}
}

// requestError marks a malformed request body or parameter.
type requestError struct{ msg string }

func (e requestError) Error() string { return e.msg }

func badRequest(format string, args ...interface{}) error {
	return requestError{msg: fmt.Sprintf(format, args...)}
}

func (s *Server) writesEnabled() bool {
	return s.mutator != nil && s.auth != nil && s.callers != nil
}

func (s *Server) mountSafetyWrites(r chi.Router) {
	r.Group(func(w chi.Router) {
		w.Use(s.auth.Middleware)
		w.Post("/initialize", s.mutation(s.handleInitialize))
		w.Post("/pause", s.mutation(s.handlePause(true)))
		w.Post("/unpause", s.mutation(s.handlePause(false)))
		w.Post("/freeze", s.mutation(func(*http.Request, [20]byte) (interface{}, error) {
			return nil, s.mutator.Freeze()
		}))
		w.Put("/admin", s.mutation(s.handleSetAdmin))
		w.Put("/testnet", s.mutation(s.handleTestnet))
		w.Put("/platform-fee", s.mutation(s.handlePlatformFee))
	})
}

func (s *Server) mountOfferingWrites(r chi.Router) {
	r.Group(func(w chi.Router) {
		w.Use(s.auth.Middleware)
		w.Post("/", s.mutation(s.handleRegister))
		w.Put("/{token}/metadata", s.mutation(s.handleMetadata))
		w.Put("/{token}/holders/{holder}", s.mutation(s.handleHolderShare))
		w.Put("/{token}/concentration", s.mutation(s.handleConcentration))
		w.Put("/{token}/rounding-mode", s.mutation(s.handleRoundingMode))
		w.Put("/{token}/min-threshold", s.mutation(s.handleMinThreshold))
		w.Put("/{token}/claim-delay", s.mutation(s.handleClaimDelay))
		w.Post("/{token}/periods/{period}/deposits", s.mutation(s.handleRevenue(true)))
		w.Post("/{token}/periods/{period}/reports", s.mutation(s.handleRevenue(false)))
		w.Post("/{token}/periods/{period}/close", s.mutation(s.handleClosePeriod))
	})
}

func (s *Server) mountTokenWrites(r chi.Router) {
	r.Group(func(w chi.Router) {
		w.Use(s.auth.Middleware)
		w.Put("/blacklist/{holder}", s.mutation(s.handleBlacklistChange(true)))
		w.Delete("/blacklist/{holder}", s.mutation(s.handleBlacklistChange(false)))
	})
}

type mutationFunc func(r *http.Request, caller [20]byte) (interface{}, error)

// mutation runs fn with the token subject as the authorized caller. A nil
// result is answered with {"status":"ok"}.
func (s *Server) mutation(fn mutationFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := SubjectFromContext(r.Context())
		if !ok {
			writeError(w, r, http.StatusUnauthorized, "missing bearer token")
			return
		}
		var out interface{}
		err := s.callers.Run(caller, func() error {
			var err error
			out, err = fn(r, caller)
			return err
		})
		if err != nil {
			s.fail(w, r, err)
			return
		}
		if out == nil {
			out = map[string]string{"status": "ok"}
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func decodeBody(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return badRequest("invalid request body: %v", err)
	}
	return nil
}

func parseAddr(field, raw string) ([20]byte, error) {
	raw = strings.TrimSpace(raw)
	if !common.IsHexAddress(raw) {
		return [20]byte{}, badRequest("invalid %s address %q", field, raw)
	}
	return common.HexToAddress(raw), nil
}

func parseAmount(field, raw string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok {
		return nil, badRequest("invalid %s %q", field, raw)
	}
	return v, nil
}

func pathAddr(r *http.Request, name string) ([20]byte, error) {
	return parseAddr(name, chi.URLParam(r, name))
}

func pathOffering(r *http.Request) (issuer, token [20]byte, err error) {
	if issuer, err = pathAddr(r, "issuer"); err != nil {
		return
	}
	token, err = pathAddr(r, "token")
	return
}

func pathPeriod(r *http.Request) (uint64, error) {
	raw := chi.URLParam(r, "period")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, badRequest("invalid period %q", raw)
	}
	return id, nil
}

type initializeRequest struct {
	Admin  string `json:"admin"`
	Safety string `json:"safety,omitempty"`
}

func (s *Server) handleInitialize(r *http.Request, _ [20]byte) (interface{}, error) {
	var req initializeRequest
	if err := decodeBody(r, &req); err != nil {
		return nil, err
	}
	admin, err := parseAddr("admin", req.Admin)
	if err != nil {
		return nil, err
	}
	var safety *[20]byte
	if req.Safety != "" {
		addr, err := parseAddr("safety", req.Safety)
		if err != nil {
			return nil, err
		}
		safety = &addr
	}
	return nil, s.mutator.Initialize(admin, safety)
}

type pauseRequest struct {
	Role string `json:"role"`
}

func (s *Server) handlePause(paused bool) mutationFunc {
	return func(r *http.Request, _ [20]byte) (interface{}, error) {
		var req pauseRequest
		if err := decodeBody(r, &req); err != nil {
			return nil, err
		}
		switch {
		case req.Role == "admin" && paused:
			return nil, s.mutator.PauseAdmin()
		case req.Role == "admin":
			return nil, s.mutator.UnpauseAdmin()
		case req.Role == "safety" && paused:
			return nil, s.mutator.PauseSafety()
		case req.Role == "safety":
			return nil, s.mutator.UnpauseSafety()
		default:
			return nil, badRequest("unknown role %q", req.Role)
		}
	}
}

type adminRequest struct {
	Admin string `json:"admin"`
}

func (s *Server) handleSetAdmin(r *http.Request, _ [20]byte) (interface{}, error) {
	var req adminRequest
	if err := decodeBody(r, &req); err != nil {
		return nil, err
	}
	admin, err := parseAddr("admin", req.Admin)
	if err != nil {
		return nil, err
	}
	return nil, s.mutator.SetAdmin(admin)
}

type enabledRequest struct {
	Enabled bool `json:"enabled"`
}

func (s *Server) handleTestnet(r *http.Request, _ [20]byte) (interface{}, error) {
	var req enabledRequest
	if err := decodeBody(r, &req); err != nil {
		return nil, err
	}
	return nil, s.mutator.SetTestnetMode(req.Enabled)
}

type bpsRequest struct {
	Bps uint32 `json:"bps"`
}

func (s *Server) handlePlatformFee(r *http.Request, _ [20]byte) (interface{}, error) {
	var req bpsRequest
	if err := decodeBody(r, &req); err != nil {
		return nil, err
	}
	return nil, s.mutator.SetPlatformFee(req.Bps)
}

type registerRequest struct {
	Token           string `json:"token"`
	RevenueShareBps uint32 `json:"revenueShareBps"`
	PaymentToken    string `json:"paymentToken"`
}

func (s *Server) handleRegister(r *http.Request, _ [20]byte) (interface{}, error) {
	issuer, err := pathAddr(r, "issuer")
	if err != nil {
		return nil, err
	}
	var req registerRequest
	if err := decodeBody(r, &req); err != nil {
		return nil, err
	}
	token, err := parseAddr("token", req.Token)
	if err != nil {
		return nil, err
	}
	payment, err := parseAddr("paymentToken", req.PaymentToken)
	if err != nil {
		return nil, err
	}
	o, err := s.mutator.RegisterOffering(issuer, token, req.RevenueShareBps, payment)
	if err != nil {
		return nil, err
	}
	return offeringJSON{
		Issuer:          hexAddr(o.Issuer),
		Token:           hexAddr(o.Token),
		RevenueShareBps: o.RevenueShareBps,
		PaymentToken:    hexAddr(o.PaymentToken),
		Index:           o.Index,
		CreatedAt:       o.CreatedAt,
	}, nil
}

type metadataRequest struct {
	Metadata string `json:"metadata"`
}

func (s *Server) handleMetadata(r *http.Request, _ [20]byte) (interface{}, error) {
	issuer, token, err := pathOffering(r)
	if err != nil {
		return nil, err
	}
	var req metadataRequest
	if err := decodeBody(r, &req); err != nil {
		return nil, err
	}
	return nil, s.mutator.SetOfferingMetadata(issuer, token, req.Metadata)
}

func (s *Server) handleHolderShare(r *http.Request, _ [20]byte) (interface{}, error) {
	issuer, token, err := pathOffering(r)
	if err != nil {
		return nil, err
	}
	holder, err := pathAddr(r, "holder")
	if err != nil {
		return nil, err
	}
	var req bpsRequest
	if err := decodeBody(r, &req); err != nil {
		return nil, err
	}
	return nil, s.mutator.SetHolderShare(issuer, token, holder, req.Bps)
}

type concentrationRequest struct {
	LimitBps uint32 `json:"limitBps"`
	Enforced bool   `json:"enforced"`
}

func (s *Server) handleConcentration(r *http.Request, _ [20]byte) (interface{}, error) {
	issuer, token, err := pathOffering(r)
	if err != nil {
		return nil, err
	}
	var req concentrationRequest
	if err := decodeBody(r, &req); err != nil {
		return nil, err
	}
	return nil, s.mutator.SetConcentrationLimit(issuer, token, req.LimitBps, req.Enforced)
}

type roundingModeRequest struct {
	Mode string `json:"mode"`
}

func (s *Server) handleRoundingMode(r *http.Request, _ [20]byte) (interface{}, error) {
	issuer, token, err := pathOffering(r)
	if err != nil {
		return nil, err
	}
	var req roundingModeRequest
	if err := decodeBody(r, &req); err != nil {
		return nil, err
	}
	mode, err := revshare.ParseRoundingMode(req.Mode)
	if err != nil {
		return nil, err
	}
	return nil, s.mutator.SetRoundingMode(issuer, token, mode)
}

type amountRequest struct {
	Amount string `json:"amount"`
}

func (s *Server) handleMinThreshold(r *http.Request, _ [20]byte) (interface{}, error) {
	issuer, token, err := pathOffering(r)
	if err != nil {
		return nil, err
	}
	var req amountRequest
	if err := decodeBody(r, &req); err != nil {
		return nil, err
	}
	threshold, err := parseAmount("amount", req.Amount)
	if err != nil {
		return nil, err
	}
	return nil, s.mutator.SetMinRevenueThreshold(issuer, token, threshold)
}

type claimDelayRequest struct {
	Seconds uint64 `json:"seconds"`
}

func (s *Server) handleClaimDelay(r *http.Request, _ [20]byte) (interface{}, error) {
	issuer, token, err := pathOffering(r)
	if err != nil {
		return nil, err
	}
	var req claimDelayRequest
	if err := decodeBody(r, &req); err != nil {
		return nil, err
	}
	return nil, s.mutator.SetClaimDelay(issuer, token, req.Seconds)
}

type revenueRequest struct {
	PaymentToken string `json:"paymentToken"`
	Amount       string `json:"amount"`
	Finalize     bool   `json:"finalize"`
}

func (s *Server) handleRevenue(deposit bool) mutationFunc {
	return func(r *http.Request, _ [20]byte) (interface{}, error) {
		issuer, token, err := pathOffering(r)
		if err != nil {
			return nil, err
		}
		periodID, err := pathPeriod(r)
		if err != nil {
			return nil, err
		}
		var req revenueRequest
		if err := decodeBody(r, &req); err != nil {
			return nil, err
		}
		payment, err := parseAddr("paymentToken", req.PaymentToken)
		if err != nil {
			return nil, err
		}
		amt, err := parseAmount("amount", req.Amount)
		if err != nil {
			return nil, err
		}
		if deposit {
			return nil, s.mutator.DepositRevenue(issuer, token, payment, amt, periodID, req.Finalize)
		}
		return nil, s.mutator.ReportRevenue(issuer, token, payment, amt, periodID, req.Finalize)
	}
}

func (s *Server) handleClosePeriod(r *http.Request, _ [20]byte) (interface{}, error) {
	issuer, token, err := pathOffering(r)
	if err != nil {
		return nil, err
	}
	periodID, err := pathPeriod(r)
	if err != nil {
		return nil, err
	}
	return nil, s.mutator.ClosePeriod(issuer, token, periodID)
}

func (s *Server) handleBlacklistChange(add bool) mutationFunc {
	return func(r *http.Request, caller [20]byte) (interface{}, error) {
		token, err := pathAddr(r, "token")
		if err != nil {
			return nil, err
		}
		holder, err := pathAddr(r, "holder")
		if err != nil {
			return nil, err
		}
		if add {
			return nil, s.mutator.BlacklistAdd(caller, token, holder)
		}
		return nil, s.mutator.BlacklistRemove(caller, token, holder)
	}
}

func isRequestError(err error) bool {
	var re requestError
	return errors.As(err, &re)
}

var _ Mutator = (*revshare.Engine)(nil)
