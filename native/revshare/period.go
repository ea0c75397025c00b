package revshare

import (
	"fmt"
	"log/slog"
	"math"
	"math/big"
)

func loadConfig(r kvReader, token [20]byte) (*OfferingConfig, error) {
	cfg := new(OfferingConfig)
	ok, err := r.KVGet(configKey(token), cfg)
	if err != nil {
		return nil, fmt.Errorf("revshare: load config: %w", err)
	}
	if !ok {
		return defaultConfig(), nil
	}
	cfg.MinRevenueThreshold = ensureBig(cfg.MinRevenueThreshold)
	return cfg, nil
}

func loadPeriod(r kvReader, token [20]byte, id uint64) (*Period, bool, error) {
	p := new(Period)
	ok, err := r.KVGet(periodKey(token, id), p)
	if err != nil {
		return nil, false, fmt.Errorf("revshare: load period: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	return p.ensure(), true, nil
}

func loadAudit(r kvReader, issuer, token [20]byte) (*AuditSummary, bool, error) {
	a := new(AuditSummary)
	ok, err := r.KVGet(auditKey(token), a)
	if err != nil {
		return nil, false, fmt.Errorf("revshare: load audit summary: %w", err)
	}
	if !ok {
		return newAuditSummary(issuer, token), false, nil
	}
	return a.ensure(), true, nil
}

func (e *Engine) updateConfig(op string, issuer, token [20]byte, fn func(cfg *OfferingConfig) error) error {
	return e.mutate(op, func(c *call) error {
		if _, err := c.issuerCall(issuer, token); err != nil {
			return err
		}
		cfg, err := loadConfig(c.txn, token)
		if err != nil {
			return err
		}
		if err := fn(cfg); err != nil {
			return err
		}
		if err := c.txn.KVPut(configKey(token), cfg); err != nil {
			return err
		}
		switch op {
		case "set_rounding_mode":
			c.emit(RoundingModeSetEvent(token, cfg.RoundingMode))
		case "set_min_revenue_threshold":
			c.emit(MinThresholdSetEvent(token, cfg.MinRevenueThreshold))
		case "set_claim_delay":
			c.emit(ClaimDelaySetEvent(token, cfg.ClaimDelay))
		}
		return nil
	})
}

// SetRoundingMode selects the rounding applied at the next finalization.
func (e *Engine) SetRoundingMode(issuer, token [20]byte, mode RoundingMode) error {
	return e.updateConfig("set_rounding_mode", issuer, token, func(cfg *OfferingConfig) error {
		if !mode.Valid() {
			return fmt.Errorf("%w: %d", ErrInvalidRoundingMode, uint8(mode))
		}
		cfg.RoundingMode = mode
		return nil
	})
}

// SetMinRevenueThreshold sets the deposit below which a period finalizes with
// no entitlements. Zero disables the threshold.
func (e *Engine) SetMinRevenueThreshold(issuer, token [20]byte, threshold *big.Int) error {
	return e.updateConfig("set_min_revenue_threshold", issuer, token, func(cfg *OfferingConfig) error {
		if threshold == nil || threshold.Sign() < 0 {
			return fmt.Errorf("%w: threshold must be non-negative", ErrInvalidAmount)
		}
		cfg.MinRevenueThreshold = cloneBigInt(threshold)
		return nil
	})
}

// SetClaimDelay sets the seconds between finalization and claimability.
func (e *Engine) SetClaimDelay(issuer, token [20]byte, seconds uint64) error {
	return e.updateConfig("set_claim_delay", issuer, token, func(cfg *OfferingConfig) error {
		cfg.ClaimDelay = seconds
		return nil
	})
}

// DepositRevenue adds funds available for distribution to periodID. The
// amount must be positive and paid in the offering's payment token. When
// finalize is set the period is closed and distributed in the same call.
func (e *Engine) DepositRevenue(issuer, token, paymentToken [20]byte, amount *big.Int, periodID uint64, finalize bool) error {
	return e.mutate("deposit_revenue", func(c *call) error {
		return c.recordRevenue(true, issuer, token, paymentToken, amount, periodID, finalize)
	})
}

// ReportRevenue records attested gross revenue for periodID. It follows the
// same ordering and closing rules as DepositRevenue but only feeds the audit
// trail. A zero amount is accepted.
func (e *Engine) ReportRevenue(issuer, token, paymentToken [20]byte, amount *big.Int, periodID uint64, finalize bool) error {
	return e.mutate("report_revenue", func(c *call) error {
		return c.recordRevenue(false, issuer, token, paymentToken, amount, periodID, finalize)
	})
}

func (c *call) recordRevenue(deposit bool, issuer, token, paymentToken [20]byte, amount *big.Int, periodID uint64, finalize bool) error {
	o, err := c.issuerCall(issuer, token)
	if err != nil {
		return err
	}
	switch {
	case amount == nil || amount.Sign() < 0:
		return fmt.Errorf("%w: amount must be non-negative", ErrInvalidAmount)
	case deposit && amount.Sign() == 0:
		return fmt.Errorf("%w: deposit must be positive", ErrInvalidAmount)
	}
	if paymentToken != o.PaymentToken {
		return fmt.Errorf("%w: got %s, offering pays in %s", ErrPaymentTokenMismatch, hexAddr(paymentToken), hexAddr(o.PaymentToken))
	}
	if periodID == 0 {
		return ErrInvalidPeriod
	}
	audit, _, err := loadAudit(c.txn, issuer, token)
	if err != nil {
		return err
	}
	period, exists, err := loadPeriod(c.txn, token, periodID)
	if err != nil {
		return err
	}
	if exists && period.Closed {
		return fmt.Errorf("%w: period %d", ErrPeriodClosed, periodID)
	}
	if audit.PeriodCount > 0 && periodID < audit.LatestPeriodID {
		return fmt.Errorf("%w: period %d precedes %d", ErrOutOfOrderPeriod, periodID, audit.LatestPeriodID)
	}
	if !exists {
		period = newPeriod(token, periodID)
		if err := c.txn.KVPut(periodEntryKey(token, audit.PeriodCount), periodID); err != nil {
			return err
		}
		audit.PeriodCount++
		audit.LatestPeriodID = periodID
	}
	if deposit {
		period.Deposited.Add(period.Deposited, amount)
		period.DepositCount++
		audit.TotalDeposited.Add(audit.TotalDeposited, amount)
		audit.DepositCount++
	} else {
		period.Reported.Add(period.Reported, amount)
		audit.TotalReported.Add(audit.TotalReported, amount)
		audit.ReportCount++
	}
	c.emit(RevenueEvent(deposit, issuer, token, amount, period))
	if finalize {
		if err := c.finalize(o, period, audit); err != nil {
			return err
		}
	}
	if err := c.txn.KVPut(periodKey(token, periodID), period); err != nil {
		return err
	}
	return c.txn.KVPut(auditKey(token), audit)
}

// ClosePeriod closes and finalizes periodID. Closing a closed period is a
// no-op.
func (e *Engine) ClosePeriod(issuer, token [20]byte, periodID uint64) error {
	return e.mutate("close_period", func(c *call) error {
		o, err := c.issuerCall(issuer, token)
		if err != nil {
			return err
		}
		period, ok, err := loadPeriod(c.txn, token, periodID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: period %d", ErrPeriodNotFound, periodID)
		}
		if period.Closed {
			return nil
		}
		audit, _, err := loadAudit(c.txn, issuer, token)
		if err != nil {
			return err
		}
		if err := c.finalize(o, period, audit); err != nil {
			return err
		}
		if err := c.txn.KVPut(periodKey(token, periodID), period); err != nil {
			return err
		}
		return c.txn.KVPut(auditKey(token), audit)
	})
}

// finalize closes period, snapshots the offering policy and writes a claim
// record for every eligible holder with a non-zero entitlement. The caller
// persists period and audit.
func (c *call) finalize(o *Offering, period *Period, audit *AuditSummary) error {
	token := o.Token
	cfg, err := loadConfig(c.txn, token)
	if err != nil {
		return err
	}
	shares, err := loadShares(c.txn, token)
	if err != nil {
		return err
	}
	limit, _, err := loadConcentration(c.txn, token)
	if err != nil {
		return err
	}
	if concentrationApplies(limit, c.safety) {
		for _, s := range shares {
			if s.Bps > limit.LimitBps {
				return fmt.Errorf("%w: holder %s holds %d bps over limit %d", ErrConcentrationLimitExceeded, hexAddr(s.Holder), s.Bps, limit.LimitBps)
			}
		}
	}

	now := c.e.now()
	period.Closed = true
	period.Finalized = true
	period.FinalizedAt = now
	period.RoundingMode = cfg.RoundingMode
	period.MinRevenueThreshold = cloneBigInt(cfg.MinRevenueThreshold)

	if cfg.MinRevenueThreshold.Sign() > 0 && period.Deposited.Cmp(cfg.MinRevenueThreshold) < 0 {
		period.BelowThreshold = true
		period.Distributed = big.NewInt(0)
		period.Forfeited = big.NewInt(0)
		period.Residue = cloneBigInt(period.Deposited)
	} else {
		blacklisted, err := blacklistSet(c.txn, token)
		if err != nil {
			return err
		}
		dist := Distribute(period.Deposited, shares, blacklisted.contains, cfg.RoundingMode)
		eligibleAt := now + cfg.ClaimDelay
		if eligibleAt < now {
			eligibleAt = math.MaxUint64
		}
		for _, ent := range dist.Entitlements {
			if ent.Excluded || ent.Amount.Sign() == 0 {
				continue
			}
			rec := &ClaimRecord{
				Token:      token,
				Holder:     ent.Holder,
				PeriodID:   period.PeriodID,
				AmountDue:  ent.Amount,
				EligibleAt: eligibleAt,
			}
			if err := c.txn.KVPut(claimKey(token, ent.Holder, period.PeriodID), rec); err != nil {
				return err
			}
			if _, err := c.txn.KVAppend(claimIndexKey(token, ent.Holder), encodePeriodID(period.PeriodID)); err != nil {
				return err
			}
		}
		period.Distributed = dist.Distributed
		period.Residue = dist.Residue
		period.Forfeited = dist.Forfeited
	}

	audit.TotalDistributed.Add(audit.TotalDistributed, period.Distributed)
	audit.TotalResidue.Add(audit.TotalResidue, period.Residue)
	audit.TotalForfeited.Add(audit.TotalForfeited, period.Forfeited)
	audit.LastResidue = cloneBigInt(period.Residue)

	c.emit(PeriodClosedEvent(o.Issuer, period))
	c.e.telemetry.RecordFinalization(period.Distributed, period.Residue, period.BelowThreshold)
	c.e.log().Info("revshare period finalized",
		slog.String("token", hexAddr(token)),
		slog.Uint64("period", period.PeriodID),
		slog.String("deposited", period.Deposited.String()),
		slog.String("distributed", period.Distributed.String()),
		slog.String("residue", period.Residue.String()),
		slog.Bool("below_threshold", period.BelowThreshold),
	)
	return nil
}

// GetOfferingConfig returns token's distribution policy with defaults applied.
func (e *Engine) GetOfferingConfig(token [20]byte) (*OfferingConfig, error) {
	var out *OfferingConfig
	err := e.view(func(r kvReader) error {
		var err error
		out, err = loadConfig(r, token)
		return err
	})
	return out, err
}

func (e *Engine) GetRoundingMode(token [20]byte) (RoundingMode, error) {
	cfg, err := e.GetOfferingConfig(token)
	if err != nil {
		return 0, err
	}
	return cfg.RoundingMode, nil
}

func (e *Engine) GetMinRevenueThreshold(token [20]byte) (*big.Int, error) {
	cfg, err := e.GetOfferingConfig(token)
	if err != nil {
		return nil, err
	}
	return cfg.MinRevenueThreshold, nil
}

func (e *Engine) GetClaimDelay(token [20]byte) (uint64, error) {
	cfg, err := e.GetOfferingConfig(token)
	if err != nil {
		return 0, err
	}
	return cfg.ClaimDelay, nil
}

// GetPeriod returns the accounting record of periodID on token.
func (e *Engine) GetPeriod(token [20]byte, periodID uint64) (*Period, bool, error) {
	var (
		out *Period
		ok  bool
	)
	err := e.view(func(r kvReader) error {
		var err error
		out, ok, err = loadPeriod(r, token, periodID)
		return err
	})
	return out, ok, err
}

// GetPeriodCount returns the number of distinct periods recorded on token.
func (e *Engine) GetPeriodCount(token [20]byte) (uint64, error) {
	var n uint64
	err := e.view(func(r kvReader) error {
		a := new(AuditSummary)
		if _, err := r.KVGet(auditKey(token), a); err != nil {
			return err
		}
		n = a.PeriodCount
		return nil
	})
	return n, err
}

// GetPeriodIDs returns up to limit period ids of token in submission order,
// starting at cursor. A zero limit selects MaxRevenueRange.
func (e *Engine) GetPeriodIDs(token [20]byte, cursor, limit uint64) ([]uint64, error) {
	if limit == 0 || limit > MaxRevenueRange {
		limit = MaxRevenueRange
	}
	count, err := e.GetPeriodCount(token)
	if err != nil {
		return nil, err
	}
	ids := []uint64{}
	if cursor >= count {
		return ids, nil
	}
	end := cursor + limit
	if end > count {
		end = count
	}
	err = e.view(func(r kvReader) error {
		for i := cursor; i < end; i++ {
			var id uint64
			if _, err := r.KVGet(periodEntryKey(token, i), &id); err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	})
	return ids, err
}

// GetRevenueByPeriod returns the amount deposited into periodID, zero when the
// period does not exist.
func (e *Engine) GetRevenueByPeriod(token [20]byte, periodID uint64) (*big.Int, error) {
	p, ok, err := e.GetPeriod(token, periodID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return p.Deposited, nil
}

// GetRevenueRange returns deposits for periods from..to inclusive. At most
// MaxRevenueRange periods may be requested.
func (e *Engine) GetRevenueRange(token [20]byte, from, to uint64) ([]*big.Int, error) {
	if from == 0 || from > to {
		return nil, fmt.Errorf("%w: range %d..%d", ErrInvalidPeriod, from, to)
	}
	if to-from >= MaxRevenueRange {
		return nil, fmt.Errorf("%w: range spans more than %d periods", ErrLimitReached, MaxRevenueRange)
	}
	out := make([]*big.Int, 0, to-from+1)
	err := e.view(func(r kvReader) error {
		for id := from; ; id++ {
			p, ok, err := loadPeriod(r, token, id)
			if err != nil {
				return err
			}
			if ok {
				out = append(out, p.Deposited)
			} else {
				out = append(out, big.NewInt(0))
			}
			if id == to {
				return nil
			}
		}
	})
	return out, err
}

// GetAuditSummary returns the offering's audit summary once revenue has been
// deposited. Unknown offerings report no summary rather than an error.
func (e *Engine) GetAuditSummary(issuer, token [20]byte) (*AuditSummary, bool, error) {
	var (
		out *AuditSummary
		ok  bool
	)
	err := e.view(func(r kvReader) error {
		o, registered, err := loadOffering(r, token)
		if err != nil || !registered || o.Issuer != issuer {
			return err
		}
		a, found, err := loadAudit(r, issuer, token)
		if err != nil || !found || a.DepositCount == 0 {
			return err
		}
		out, ok = a, true
		return nil
	})
	return out, ok, err
}

// GetTotalDepositedRevenue returns the lifetime deposits on token.
func (e *Engine) GetTotalDepositedRevenue(token [20]byte) (*big.Int, error) {
	total := big.NewInt(0)
	err := e.view(func(r kvReader) error {
		a := new(AuditSummary)
		if _, err := r.KVGet(auditKey(token), a); err != nil {
			return err
		}
		total = ensureBig(a.TotalDeposited)
		return nil
	})
	return total, err
}
