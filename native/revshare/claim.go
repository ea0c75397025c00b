package revshare

import (
	"fmt"
	"log/slog"
	"math/big"
)

func loadClaim(r kvReader, token, holder [20]byte, periodID uint64) (*ClaimRecord, bool, error) {
	rec := new(ClaimRecord)
	ok, err := r.KVGet(claimKey(token, holder, periodID), rec)
	if err != nil {
		return nil, false, fmt.Errorf("revshare: load claim: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	rec.AmountDue = ensureBig(rec.AmountDue)
	return rec, true, nil
}

func loadClaimIndex(r kvReader, token, holder [20]byte) ([]uint64, error) {
	var raw [][]byte
	if err := r.KVGetList(claimIndexKey(token, holder), &raw); err != nil {
		return nil, err
	}
	ids := make([]uint64, 0, len(raw))
	for _, b := range raw {
		if id, ok := decodePeriodID(b); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// holderCall admits a claim by holder on token and returns the offering.
func (c *call) holderCall(holder, token [20]byte) (*Offering, error) {
	if _, err := c.admit(false); err != nil {
		return nil, err
	}
	if err := c.require(holder); err != nil {
		return nil, err
	}
	o, ok, err := loadOffering(c.txn, token)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: token %s has no offering", ErrNotEligible, hexAddr(token))
	}
	listed, err := isBlacklisted(c.txn, token, holder)
	if err != nil {
		return nil, err
	}
	if listed {
		return nil, fmt.Errorf("%w: %s is blacklisted on %s", ErrNotEligible, hexAddr(holder), hexAddr(token))
	}
	return o, nil
}

// pay invokes the payer before anything is committed. A failed transfer
// aborts the whole call.
func (c *call) pay(o *Offering, holder [20]byte, amount *big.Int, recs []*ClaimRecord) error {
	if c.e.payer == nil {
		return fmt.Errorf("%w: payer not configured", ErrPaymentFailed)
	}
	s := Settlement{
		Token:        o.Token,
		PaymentToken: o.PaymentToken,
		Recipient:    holder,
		Amount:       new(big.Int).Set(amount),
		Periods:      make([]uint64, 0, len(recs)),
	}
	for _, rec := range recs {
		s.Periods = append(s.Periods, rec.PeriodID)
	}
	if err := c.e.payer.Transfer(s); err != nil {
		return fmt.Errorf("%w: %v", ErrPaymentFailed, err)
	}
	return nil
}

func (c *call) markClaimed(recs []*ClaimRecord, o *Offering, total *big.Int) error {
	now := c.e.now()
	for _, rec := range recs {
		rec.Claimed = true
		rec.ClaimedAt = now
		if err := c.txn.KVPut(claimKey(rec.Token, rec.Holder, rec.PeriodID), rec); err != nil {
			return err
		}
	}
	audit, _, err := loadAudit(c.txn, o.Issuer, o.Token)
	if err != nil {
		return err
	}
	audit.TotalClaimed.Add(audit.TotalClaimed, total)
	if err := c.txn.KVPut(auditKey(o.Token), audit); err != nil {
		return err
	}
	for _, rec := range recs {
		c.emit(ClaimSettledEvent(rec, o.PaymentToken))
	}
	return nil
}

// Claim settles holder's entitlement for periodID and returns the amount
// transferred.
func (e *Engine) Claim(holder, token [20]byte, periodID uint64) (*big.Int, error) {
	var paid *big.Int
	err := e.mutate("claim", func(c *call) error {
		o, err := c.holderCall(holder, token)
		if err != nil {
			return err
		}
		rec, ok, err := loadClaim(c.txn, token, holder, periodID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: no entitlement for period %d", ErrNotEligible, periodID)
		}
		if rec.Claimed {
			return fmt.Errorf("%w: period %d", ErrAlreadyClaimed, periodID)
		}
		if now := e.now(); now < rec.EligibleAt {
			return fmt.Errorf("%w: eligible at %d, now %d", ErrClaimNotYetAvailable, rec.EligibleAt, now)
		}
		if err := c.pay(o, holder, rec.AmountDue, []*ClaimRecord{rec}); err != nil {
			return err
		}
		if err := c.markClaimed([]*ClaimRecord{rec}, o, rec.AmountDue); err != nil {
			return err
		}
		paid = cloneBigInt(rec.AmountDue)
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.telemetry.RecordClaim(paid)
	e.log().Info("revshare claim settled",
		slog.String("holder", hexAddr(holder)),
		slog.String("token", hexAddr(token)),
		slog.Uint64("period", periodID),
		slog.String("amount", paid.String()))
	return paid, nil
}

// ClaimAll settles up to maxPeriods claimable periods of holder on token in
// one transfer. A zero or oversized maxPeriods selects MaxClaimBatch. It
// returns the total paid and the settled period ids.
func (e *Engine) ClaimAll(holder, token [20]byte, maxPeriods int) (*big.Int, []uint64, error) {
	if maxPeriods <= 0 || maxPeriods > MaxClaimBatch {
		maxPeriods = MaxClaimBatch
	}
	total := big.NewInt(0)
	var settled []uint64
	err := e.mutate("claim_all", func(c *call) error {
		o, err := c.holderCall(holder, token)
		if err != nil {
			return err
		}
		ids, err := loadClaimIndex(c.txn, token, holder)
		if err != nil {
			return err
		}
		now := e.now()
		recs := make([]*ClaimRecord, 0, maxPeriods)
		for _, id := range ids {
			if len(recs) == maxPeriods {
				break
			}
			rec, ok, err := loadClaim(c.txn, token, holder, id)
			if err != nil {
				return err
			}
			if !ok || rec.Claimed || now < rec.EligibleAt {
				continue
			}
			recs = append(recs, rec)
			total.Add(total, rec.AmountDue)
		}
		if len(recs) == 0 {
			return ErrNoPendingClaims
		}
		if err := c.pay(o, holder, total, recs); err != nil {
			return err
		}
		if err := c.markClaimed(recs, o, total); err != nil {
			return err
		}
		for _, rec := range recs {
			settled = append(settled, rec.PeriodID)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	e.telemetry.RecordClaim(total)
	e.log().Info("revshare claims settled",
		slog.String("holder", hexAddr(holder)),
		slog.String("token", hexAddr(token)),
		slog.Int("periods", len(settled)),
		slog.String("amount", total.String()))
	return total, settled, nil
}

// GetClaimRecord returns holder's claim record for periodID.
func (e *Engine) GetClaimRecord(token, holder [20]byte, periodID uint64) (*ClaimRecord, bool, error) {
	var (
		out *ClaimRecord
		ok  bool
	)
	err := e.view(func(r kvReader) error {
		var err error
		out, ok, err = loadClaim(r, token, holder, periodID)
		return err
	})
	return out, ok, err
}

// GetClaimStatus resolves the lifecycle state of holder's claim on periodID.
func (e *Engine) GetClaimStatus(token, holder [20]byte, periodID uint64) (ClaimStatus, error) {
	rec, ok, err := e.GetClaimRecord(token, holder, periodID)
	if err != nil {
		return "", err
	}
	if !ok {
		return ClaimUnclaimable, nil
	}
	return rec.Status(e.now()), nil
}

// GetPendingPeriods returns the unclaimed period ids of holder on token,
// including those still inside the claim delay.
func (e *Engine) GetPendingPeriods(token, holder [20]byte) ([]uint64, error) {
	pending := []uint64{}
	err := e.view(func(r kvReader) error {
		ids, err := loadClaimIndex(r, token, holder)
		if err != nil {
			return err
		}
		for _, id := range ids {
			rec, ok, err := loadClaim(r, token, holder, id)
			if err != nil {
				return err
			}
			if ok && !rec.Claimed {
				pending = append(pending, id)
			}
		}
		return nil
	})
	return pending, err
}

// GetClaimable returns the amount holder could claim on token right now.
// Blacklisted holders have nothing claimable.
func (e *Engine) GetClaimable(token, holder [20]byte) (*big.Int, error) {
	total := big.NewInt(0)
	now := e.now()
	err := e.view(func(r kvReader) error {
		listed, err := isBlacklisted(r, token, holder)
		if err != nil || listed {
			return err
		}
		ids, err := loadClaimIndex(r, token, holder)
		if err != nil {
			return err
		}
		for _, id := range ids {
			rec, ok, err := loadClaim(r, token, holder, id)
			if err != nil {
				return err
			}
			if ok && rec.Status(now) == ClaimClaimable {
				total.Add(total, rec.AmountDue)
			}
		}
		return nil
	})
	return total, err
}
