package revshare

import (
	"fmt"
	"math/big"
)

var (
	bpsDenominator = big.NewInt(int64(MaxBps))
	halfBps        = big.NewInt(int64(MaxBps / 2))
)

// ExclusionPolicy names how the portion of an excluded holder is treated.
type ExclusionPolicy uint8

const (
	// ExclusionForfeit keeps an excluded holder's portion as period residue.
	// It is never redistributed to the remaining holders.
	ExclusionForfeit ExclusionPolicy = iota
)

func (p ExclusionPolicy) String() string {
	if p == ExclusionForfeit {
		return "forfeit"
	}
	return fmt.Sprintf("unknown(%d)", uint8(p))
}

// Entitlement is one holder's outcome in a distribution.
type Entitlement struct {
	Holder   [20]byte
	Bps      uint32
	Amount   *big.Int
	Excluded bool
	Forfeit  *big.Int
}

// Distribution is the result of splitting an amount across holder shares.
// Distributed + Residue == Total and Forfeited <= Residue.
type Distribution struct {
	Total        *big.Int
	Entitlements []Entitlement
	Distributed  *big.Int
	Residue      *big.Int
	Forfeited    *big.Int
	Policy       ExclusionPolicy
	RoundingMode RoundingMode
}

// RoundingResidue is the part of the residue caused by rounding alone.
func (d *Distribution) RoundingResidue() *big.Int {
	return new(big.Int).Sub(d.Residue, d.Forfeited)
}

// ComputeShare returns amount * bps / 10000 under mode. Bps above 10000 is
// clamped and the result never exceeds amount. Non-positive amounts yield zero.
func ComputeShare(amount *big.Int, bps uint32, mode RoundingMode) *big.Int {
	if amount == nil || amount.Sign() <= 0 || bps == 0 {
		return big.NewInt(0)
	}
	if bps > MaxBps {
		bps = MaxBps
	}
	product := new(big.Int).Mul(amount, big.NewInt(int64(bps)))
	if mode == RoundHalfUp {
		product.Add(product, halfBps)
	}
	share := product.Quo(product, bpsDenominator)
	if share.Cmp(amount) > 0 {
		share.Set(amount)
	}
	return share
}

// Distribute splits amount across shares in order. Holders for which excluded
// returns true receive nothing and their portion is forfeited under
// ExclusionForfeit. Each portion is capped at what remains undistributed so
// the total never exceeds amount in any rounding mode.
func Distribute(amount *big.Int, shares []HolderShare, excluded func([20]byte) bool, mode RoundingMode) *Distribution {
	total := cloneBigInt(amount)
	if total.Sign() < 0 {
		total.SetInt64(0)
	}
	d := &Distribution{
		Total:        total,
		Entitlements: make([]Entitlement, 0, len(shares)),
		Distributed:  big.NewInt(0),
		Forfeited:    big.NewInt(0),
		Policy:       ExclusionForfeit,
		RoundingMode: mode,
	}
	remaining := new(big.Int).Set(total)
	for _, s := range shares {
		portion := ComputeShare(total, s.Bps, mode)
		if portion.Cmp(remaining) > 0 {
			portion.Set(remaining)
		}
		remaining.Sub(remaining, portion)
		entry := Entitlement{Holder: s.Holder, Bps: s.Bps, Amount: big.NewInt(0), Forfeit: big.NewInt(0)}
		if excluded != nil && excluded(s.Holder) {
			entry.Excluded = true
			entry.Forfeit = portion
			d.Forfeited.Add(d.Forfeited, portion)
		} else {
			entry.Amount = portion
			d.Distributed.Add(d.Distributed, portion)
		}
		d.Entitlements = append(d.Entitlements, entry)
	}
	d.Residue = new(big.Int).Sub(total, d.Distributed)
	return d
}

// SimulateDistribution previews how amount would be split for token without
// writing anything. When shares is nil the token's current ledger is used.
// The offering's rounding mode and blacklist apply.
func (e *Engine) SimulateDistribution(issuer, token [20]byte, amount *big.Int, shares []HolderShare) (*Distribution, error) {
	if amount == nil || amount.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	var out *Distribution
	err := e.view(func(r kvReader) error {
		if _, err := offeringOf(r, issuer, token); err != nil {
			return err
		}
		cfg, err := loadConfig(r, token)
		if err != nil {
			return err
		}
		if shares == nil {
			if shares, err = loadShares(r, token); err != nil {
				return err
			}
		}
		var sum uint64
		for _, s := range shares {
			sum += uint64(s.Bps)
		}
		if sum > uint64(MaxBps) {
			return fmt.Errorf("%w: %d bps", ErrShareExceedsTotal, sum)
		}
		blacklisted, err := blacklistSet(r, token)
		if err != nil {
			return err
		}
		out = Distribute(amount, shares, blacklisted.contains, cfg.RoundingMode)
		return nil
	})
	return out, err
}

type addrSet map[[20]byte]struct{}

func (s addrSet) contains(id [20]byte) bool {
	_, ok := s[id]
	return ok
}

func blacklistSet(r kvReader, token [20]byte) (addrSet, error) {
	list, err := loadBlacklist(r, token)
	if err != nil {
		return nil, err
	}
	set := make(addrSet, len(list))
	for _, id := range list {
		set[id] = struct{}{}
	}
	return set, nil
}
