package revshare

import "fmt"

func loadShare(r kvReader, token, holder [20]byte) (uint32, error) {
	var bps uint32
	if _, err := r.KVGet(shareKey(token, holder), &bps); err != nil {
		return 0, err
	}
	return bps, nil
}

func loadShareTotal(r kvReader, token [20]byte) (uint32, error) {
	var total uint32
	if _, err := r.KVGet(shareTotalKey(token), &total); err != nil {
		return 0, err
	}
	return total, nil
}

func loadHolders(r kvReader, token [20]byte) ([][20]byte, error) {
	var raw [][]byte
	if err := r.KVGetList(holderIndexKey(token), &raw); err != nil {
		return nil, err
	}
	out := make([][20]byte, 0, len(raw))
	for _, b := range raw {
		var id [20]byte
		copy(id[:], b)
		out = append(out, id)
	}
	return out, nil
}

// loadShares returns every holder with a non-zero share in ledger order.
func loadShares(r kvReader, token [20]byte) ([]HolderShare, error) {
	holders, err := loadHolders(r, token)
	if err != nil {
		return nil, err
	}
	shares := make([]HolderShare, 0, len(holders))
	for _, h := range holders {
		bps, err := loadShare(r, token, h)
		if err != nil {
			return nil, err
		}
		if bps == 0 {
			continue
		}
		shares = append(shares, HolderShare{Holder: h, Bps: bps})
	}
	return shares, nil
}

func loadConcentration(r kvReader, token [20]byte) (ConcentrationLimit, bool, error) {
	var limit ConcentrationLimit
	ok, err := r.KVGet(concentrationKey(token), &limit)
	return limit, ok, err
}

// concentrationApplies reports whether the limit is enforced under the current
// safety state. Testnet mode suspends enforcement.
func concentrationApplies(limit ConcentrationLimit, s *SafetyState) bool {
	return limit.Enforced && (s == nil || !s.TestnetMode)
}

// SetHolderShare sets holder's share of token in basis points. Only the
// offering's issuer may call it. The token's share sum may not exceed 10000.
func (e *Engine) SetHolderShare(issuer, token, holder [20]byte, bps uint32) error {
	return e.mutate("set_holder_share", func(c *call) error {
		if _, err := c.issuerCall(issuer, token); err != nil {
			return err
		}
		current, err := loadShare(c.txn, token, holder)
		if err != nil {
			return err
		}
		total, err := loadShareTotal(c.txn, token)
		if err != nil {
			return err
		}
		next := uint64(total) - uint64(current) + uint64(bps)
		if next > uint64(MaxBps) {
			return fmt.Errorf("%w: token %s would total %d bps", ErrShareExceedsTotal, hexAddr(token), next)
		}
		limit, _, err := loadConcentration(c.txn, token)
		if err != nil {
			return err
		}
		if concentrationApplies(limit, c.safety) && bps > limit.LimitBps {
			return fmt.Errorf("%w: %d bps over limit %d", ErrConcentrationLimitExceeded, bps, limit.LimitBps)
		}
		if bps > 0 {
			if _, err := c.txn.KVAppend(holderIndexKey(token), holder[:]); err != nil {
				return err
			}
			if err := c.txn.KVPut(shareKey(token, holder), bps); err != nil {
				return err
			}
		} else if current > 0 {
			if err := c.txn.KVDelete(shareKey(token, holder)); err != nil {
				return err
			}
			if err := removeListEntry(c.txn, holderIndexKey(token), holder[:]); err != nil {
				return err
			}
		}
		if err := c.txn.KVPut(shareTotalKey(token), uint32(next)); err != nil {
			return err
		}
		c.emit(ShareSetEvent(token, holder, bps))
		return nil
	})
}

// SetConcentrationLimit configures the single-holder cap for token. Existing
// shares are not re-validated here; the limit is checked on the next share
// write and again when a period is finalized.
func (e *Engine) SetConcentrationLimit(issuer, token [20]byte, limitBps uint32, enforced bool) error {
	return e.mutate("set_concentration_limit", func(c *call) error {
		if _, err := c.issuerCall(issuer, token); err != nil {
			return err
		}
		if limitBps > MaxBps {
			return fmt.Errorf("%w: %d", ErrInvalidBps, limitBps)
		}
		limit := ConcentrationLimit{LimitBps: limitBps, Enforced: enforced}
		if err := c.txn.KVPut(concentrationKey(token), limit); err != nil {
			return err
		}
		c.emit(ConcentrationSetEvent(token, limit))
		return nil
	})
}

// GetHolderShare returns holder's share of token, zero when unset.
func (e *Engine) GetHolderShare(token, holder [20]byte) (uint32, error) {
	var bps uint32
	err := e.view(func(r kvReader) error {
		var err error
		bps, err = loadShare(r, token, holder)
		return err
	})
	return bps, err
}

// GetHolders returns the holders with a non-zero share of token, in the order
// they were assigned. A holder set back to zero leaves the index.
func (e *Engine) GetHolders(token [20]byte) ([][20]byte, error) {
	var out [][20]byte
	err := e.view(func(r kvReader) error {
		var err error
		out, err = loadHolders(r, token)
		return err
	})
	return out, err
}

// GetHolderShares returns the non-zero shares of token in ledger order.
func (e *Engine) GetHolderShares(token [20]byte) ([]HolderShare, error) {
	var out []HolderShare
	err := e.view(func(r kvReader) error {
		var err error
		out, err = loadShares(r, token)
		return err
	})
	return out, err
}

func (e *Engine) GetTotalShares(token [20]byte) (uint32, error) {
	var total uint32
	err := e.view(func(r kvReader) error {
		var err error
		total, err = loadShareTotal(r, token)
		return err
	})
	return total, err
}

func (e *Engine) GetConcentrationLimit(token [20]byte) (ConcentrationLimit, bool, error) {
	var (
		limit ConcentrationLimit
		ok    bool
	)
	err := e.view(func(r kvReader) error {
		var err error
		limit, ok, err = loadConcentration(r, token)
		return err
	})
	return limit, ok, err
}

// GetCurrentConcentration returns the largest single-holder share of token.
func (e *Engine) GetCurrentConcentration(token [20]byte) (uint32, error) {
	shares, err := e.GetHolderShares(token)
	if err != nil {
		return 0, err
	}
	var highest uint32
	for _, s := range shares {
		if s.Bps > highest {
			highest = s.Bps
		}
	}
	return highest, nil
}
