package revshare

import (
	"fmt"
	"math/big"
	"strings"
)

const (
	moduleName = "revshare"

	// EngineVersion identifies the storage layout and API revision.
	EngineVersion uint32 = 1

	// MaxBps is the basis point denominator (100%).
	MaxBps uint32 = 10000
	// MaxPlatformFeeBps bounds the platform fee to 50%.
	MaxPlatformFeeBps uint32 = 5000
	// MaxPageSize caps offering pages. A zero limit selects it as well.
	MaxPageSize uint32 = 20
	// MaxMetadataBytes bounds offering metadata.
	MaxMetadataBytes = 256
	// MaxClaimBatch bounds the periods settled by one ClaimAll call.
	MaxClaimBatch = 50
	// MaxRevenueRange bounds GetRevenueRange.
	MaxRevenueRange uint64 = 100
	// MaxAggregatedIssuers bounds issuer enumeration for aggregation queries.
	MaxAggregatedIssuers = 50
)

// RoundingMode selects how fractional entitlements are resolved.
type RoundingMode uint8

const (
	// RoundTruncation drops any fractional remainder.
	RoundTruncation RoundingMode = iota
	// RoundHalfUp rounds remainders of one half or more up.
	RoundHalfUp
)

func (m RoundingMode) String() string {
	switch m {
	case RoundTruncation:
		return "truncation"
	case RoundHalfUp:
		return "half_up"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(m))
	}
}

// Valid reports whether the mode is recognised.
func (m RoundingMode) Valid() bool { return m == RoundTruncation || m == RoundHalfUp }

// ParseRoundingMode maps a textual mode onto its value.
func ParseRoundingMode(s string) (RoundingMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "truncation", "truncate":
		return RoundTruncation, nil
	case "half_up", "halfup", "round_half_up":
		return RoundHalfUp, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidRoundingMode, s)
	}
}

// SafetyState is the singleton role and safety record. Version increments on
// every write.
type SafetyState struct {
	Admin          [20]byte
	Safety         [20]byte
	HasAdmin       bool
	HasSafety      bool
	Initialized    bool
	Paused         bool
	Frozen         bool
	TestnetMode    bool
	PlatformFeeBps uint32
	Version        uint64
}

func (s *SafetyState) IsPaused(module string) bool { return s != nil && module == moduleName && s.Paused }
func (s *SafetyState) IsFrozen(module string) bool { return s != nil && module == moduleName && s.Frozen }

// Offering is an issuer/token revenue share program.
type Offering struct {
	Issuer          [20]byte
	Token           [20]byte
	RevenueShareBps uint32
	PaymentToken    [20]byte
	Metadata        string
	Index           uint64
	CreatedAt       uint64
}

// ConcentrationLimit caps any single holder's share when enforced.
type ConcentrationLimit struct {
	LimitBps uint32
	Enforced bool
}

// OfferingConfig holds per-offering distribution policy.
type OfferingConfig struct {
	RoundingMode        RoundingMode
	MinRevenueThreshold *big.Int
	ClaimDelay          uint64
}

func defaultConfig() *OfferingConfig {
	return &OfferingConfig{RoundingMode: RoundTruncation, MinRevenueThreshold: big.NewInt(0)}
}

// HolderShare pairs a holder with its configured share.
type HolderShare struct {
	Holder [20]byte
	Bps    uint32
}

// Period tracks revenue accounting for one period of a token. RoundingMode and
// MinRevenueThreshold are snapshotted at finalization.
type Period struct {
	Token               [20]byte
	PeriodID            uint64
	Deposited           *big.Int
	Reported            *big.Int
	RoundingMode        RoundingMode
	MinRevenueThreshold *big.Int
	Closed              bool
	Finalized           bool
	FinalizedAt         uint64
	Distributed         *big.Int
	Residue             *big.Int
	Forfeited           *big.Int
	BelowThreshold      bool
	DepositCount        uint64
}

func newPeriod(token [20]byte, id uint64) *Period {
	return &Period{
		Token:               token,
		PeriodID:            id,
		Deposited:           big.NewInt(0),
		Reported:            big.NewInt(0),
		MinRevenueThreshold: big.NewInt(0),
		Distributed:         big.NewInt(0),
		Residue:             big.NewInt(0),
		Forfeited:           big.NewInt(0),
	}
}

func (p *Period) ensure() *Period {
	p.Deposited = ensureBig(p.Deposited)
	p.Reported = ensureBig(p.Reported)
	p.MinRevenueThreshold = ensureBig(p.MinRevenueThreshold)
	p.Distributed = ensureBig(p.Distributed)
	p.Residue = ensureBig(p.Residue)
	p.Forfeited = ensureBig(p.Forfeited)
	return p
}

// AuditSummary aggregates revenue activity for one offering.
type AuditSummary struct {
	Issuer           [20]byte
	Token            [20]byte
	TotalDeposited   *big.Int
	TotalReported    *big.Int
	TotalDistributed *big.Int
	TotalResidue     *big.Int
	TotalForfeited   *big.Int
	TotalClaimed     *big.Int
	LastResidue      *big.Int
	LatestPeriodID   uint64
	PeriodCount      uint64
	DepositCount     uint64
	ReportCount      uint64
}

func newAuditSummary(issuer, token [20]byte) *AuditSummary {
	return (&AuditSummary{Issuer: issuer, Token: token}).ensure()
}

func (a *AuditSummary) ensure() *AuditSummary {
	a.TotalDeposited = ensureBig(a.TotalDeposited)
	a.TotalReported = ensureBig(a.TotalReported)
	a.TotalDistributed = ensureBig(a.TotalDistributed)
	a.TotalResidue = ensureBig(a.TotalResidue)
	a.TotalForfeited = ensureBig(a.TotalForfeited)
	a.TotalClaimed = ensureBig(a.TotalClaimed)
	a.LastResidue = ensureBig(a.LastResidue)
	return a
}

// ClaimRecord is a holder's entitlement for a finalized period.
type ClaimRecord struct {
	Token      [20]byte
	Holder     [20]byte
	PeriodID   uint64
	AmountDue  *big.Int
	Claimed    bool
	EligibleAt uint64
	ClaimedAt  uint64
}

// ClaimStatus describes where a claim record sits in its lifecycle.
type ClaimStatus string

const (
	ClaimUnclaimable ClaimStatus = "unclaimable"
	ClaimPending     ClaimStatus = "pending"
	ClaimClaimable   ClaimStatus = "claimable"
	ClaimClaimed     ClaimStatus = "claimed"
)

// Status resolves the record state at the supplied unix time.
func (c *ClaimRecord) Status(now uint64) ClaimStatus {
	switch {
	case c == nil:
		return ClaimUnclaimable
	case c.Claimed:
		return ClaimClaimed
	case now < c.EligibleAt:
		return ClaimPending
	default:
		return ClaimClaimable
	}
}

// IssuerAggregation sums audit data across an issuer's offerings.
type IssuerAggregation struct {
	Issuer           [20]byte
	OfferingCount    uint64
	TotalDeposited   *big.Int
	TotalReported    *big.Int
	TotalDistributed *big.Int
	TotalResidue     *big.Int
	TotalClaimed     *big.Int
}

// PlatformAggregation sums audit data across every aggregated issuer.
type PlatformAggregation struct {
	IssuerCount      uint64
	OfferingCount    uint64
	TotalDeposited   *big.Int
	TotalReported    *big.Int
	TotalDistributed *big.Int
	TotalResidue     *big.Int
	TotalClaimed     *big.Int
}

func ensureBig(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
