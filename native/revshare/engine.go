package revshare

import (
	"errors"
	"log/slog"
	"math/big"
	"strconv"
	"strings"
	"sync"
	"time"

	"revledger/core/events"
	"revledger/core/state"
	"revledger/core/types"
	"revledger/native/common"
	"revledger/observability/metrics"
)

// Authorizer proves that the current call is authorized by an identity.
type Authorizer interface {
	Authorized(id [20]byte) bool
}

// AuthorizerFunc adapts a function into an Authorizer.
type AuthorizerFunc func(id [20]byte) bool

func (f AuthorizerFunc) Authorized(id [20]byte) bool { return f != nil && f(id) }

// SignerSet authorizes a fixed set of identities, typically the verified
// signers of a single call.
type SignerSet map[[20]byte]struct{}

// NewSignerSet builds a signer set from the supplied identities.
func NewSignerSet(ids ...[20]byte) SignerSet {
	set := make(SignerSet, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func (s SignerSet) Authorized(id [20]byte) bool {
	_, ok := s[id]
	return ok
}

// Settlement describes one payout to a holder. A ClaimAll payout covers
// several periods in a single transfer.
type Settlement struct {
	Token        [20]byte
	PaymentToken [20]byte
	Recipient    [20]byte
	Amount       *big.Int
	Periods      []uint64
}

// Key identifies the settlement by token, recipient and periods. Retrying the
// same claim after a failed commit yields the same key.
func (s Settlement) Key() string {
	var b strings.Builder
	b.WriteString(hexAddr(s.Token))
	b.WriteByte('/')
	b.WriteString(hexAddr(s.Recipient))
	for i, id := range s.Periods {
		if i == 0 {
			b.WriteByte('/')
		} else {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatUint(id, 10))
	}
	return b.String()
}

// Payer executes the token transfer for a settled claim.
//
// Transfer runs inside the claim's transaction, before the claimed flag is
// committed, and while the engine lock is held. Two consequences follow. If
// the commit fails after a successful transfer the claim stays unclaimed and
// may be submitted again, so implementations must deduplicate on
// Settlement.Key. Implementations must not call back into the engine, since
// every engine call, reads included, would block on the held lock.
type Payer interface {
	Transfer(s Settlement) error
}

// PayerFunc adapts a function into a Payer.
type PayerFunc func(s Settlement) error

func (f PayerFunc) Transfer(s Settlement) error { return f(s) }

type kvReader interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVHas(key []byte) (bool, error)
	KVGetList(key []byte, out interface{}) error
}

type kvWriter interface {
	kvReader
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
	KVAppend(key []byte, value []byte) (bool, error)
}

type engineState interface {
	kvReader
	Begin() *state.Txn
}

// Engine implements revenue share accounting over a key/value state backend.
// Every mutating call is staged in a transaction that commits only when all
// preconditions pass; events are published after the commit.
type Engine struct {
	mu        sync.RWMutex
	state     engineState
	emitter   events.Emitter
	nowFn     func() int64
	auth      Authorizer
	payer     Payer
	logger    *slog.Logger
	telemetry *metrics.RevShareMetrics
}

// NewEngine constructs an engine with default dependencies. The default
// authorizer denies every identity.
func NewEngine() *Engine {
	return &Engine{
		emitter:   events.NoopEmitter{},
		nowFn:     func() int64 { return time.Now().Unix() },
		auth:      AuthorizerFunc(func([20]byte) bool { return false }),
		logger:    slog.Default().With(slog.String("module", moduleName)),
		telemetry: metrics.RevShare(),
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the event emitter used by the engine.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used for deterministic testing.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetAuthorizer configures the authorization oracle. Nil denies everyone.
func (e *Engine) SetAuthorizer(auth Authorizer) {
	if auth == nil {
		e.auth = AuthorizerFunc(func([20]byte) bool { return false })
		return
	}
	e.auth = auth
}

// SetPayer configures the transfer mechanism used to settle claims.
func (e *Engine) SetPayer(payer Payer) { e.payer = payer }

// SetLogger configures the structured logger. Nil selects slog.Default.
func (e *Engine) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	e.logger = logger.With(slog.String("module", moduleName))
}

func (e *Engine) now() uint64 {
	var ts int64
	if e == nil || e.nowFn == nil {
		ts = time.Now().Unix()
	} else {
		ts = e.nowFn()
	}
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}

func (e *Engine) log() *slog.Logger {
	if e == nil || e.logger == nil {
		return slog.Default()
	}
	return e.logger
}

// call carries the staged state of one mutating operation.
type call struct {
	e       *Engine
	txn     *state.Txn
	pending events.Buffer
	safety  *SafetyState
}

func (c *call) emit(evt *types.Event) {
	if evt == nil {
		return
	}
	c.pending.Emit(WrapEvent(evt))
}

// admit loads the safety record and applies the lifecycle guards in order:
// initialized, frozen, then paused unless allowPaused is set.
func (c *call) admit(allowPaused bool) (*SafetyState, error) {
	s, err := loadSafety(c.txn)
	if err != nil {
		return nil, err
	}
	if !s.Initialized {
		return nil, ErrNotInitialized
	}
	guard := common.Guard
	if allowPaused {
		guard = common.GuardFrozen
	}
	if err := guard(s, moduleName); err != nil {
		return nil, guardError(err)
	}
	c.safety = s
	return s, nil
}

func (c *call) require(id [20]byte) error {
	if c.e.auth == nil || !c.e.auth.Authorized(id) {
		return ErrUnauthorized
	}
	return nil
}

func guardError(err error) error {
	switch {
	case errors.Is(err, common.ErrModuleFrozen):
		return ErrFrozen
	case errors.Is(err, common.ErrModulePaused):
		return ErrPaused
	default:
		return err
	}
}

// mutate runs fn inside a staged transaction. Nothing is written and nothing is
// emitted unless fn succeeds and the commit lands.
func (e *Engine) mutate(op string, fn func(c *call) error) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	c := &call{e: e, txn: e.state.Begin()}
	err := fn(c)
	if err != nil {
		c.txn.Discard()
	} else {
		err = c.txn.Commit()
	}
	e.telemetry.RecordOperation(op, outcome(err))
	if err != nil {
		e.log().Debug("revshare operation rejected", slog.String("op", op), slog.Any("error", err))
		return err
	}
	c.pending.Flush(e.emitter)
	return nil
}

// view runs fn against the committed state.
func (e *Engine) view(fn func(r kvReader) error) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return fn(e.state)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrPaused), errors.Is(err, ErrFrozen):
		return "halted"
	case errors.Is(err, ErrNotInitialized):
		return "uninitialized"
	default:
		return "rejected"
	}
}
