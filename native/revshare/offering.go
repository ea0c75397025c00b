package revshare

import (
	"fmt"
	"math/big"
)

func loadOffering(r kvReader, token [20]byte) (*Offering, bool, error) {
	o := new(Offering)
	ok, err := r.KVGet(offeringKey(token), o)
	if err != nil {
		return nil, false, fmt.Errorf("revshare: load offering: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	return o, true, nil
}

// offeringOf returns the offering registered for token by issuer.
func offeringOf(r kvReader, issuer, token [20]byte) (*Offering, error) {
	o, ok, err := loadOffering(r, token)
	if err != nil {
		return nil, err
	}
	if !ok || o.Issuer != issuer {
		return nil, fmt.Errorf("%w: %s/%s", ErrOfferingNotFound, hexAddr(issuer), hexAddr(token))
	}
	return o, nil
}

func issuerCount(r kvReader, issuer [20]byte) (uint64, error) {
	var n uint64
	if _, err := r.KVGet(issuerCountKey(issuer), &n); err != nil {
		return 0, err
	}
	return n, nil
}

// issuerCall admits a paused-sensitive mutation by the issuer of record for
// token. The caller's authorization is checked before the offering lookup.
func (c *call) issuerCall(issuer, token [20]byte) (*Offering, error) {
	if _, err := c.admit(false); err != nil {
		return nil, err
	}
	if err := c.require(issuer); err != nil {
		return nil, err
	}
	o, ok, err := loadOffering(c.txn, token)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOfferingNotFound, hexAddr(token))
	}
	if o.Issuer != issuer {
		return nil, fmt.Errorf("%w: %s is not the issuer of %s", ErrUnauthorized, hexAddr(issuer), hexAddr(token))
	}
	return o, nil
}

// RegisterOffering creates the offering for (issuer, token) and appends it to
// the issuer's index. A token belongs to at most one issuer.
func (e *Engine) RegisterOffering(issuer, token [20]byte, bps uint32, paymentToken [20]byte) (*Offering, error) {
	var out *Offering
	err := e.mutate("register_offering", func(c *call) error {
		if _, err := c.admit(false); err != nil {
			return err
		}
		if err := c.require(issuer); err != nil {
			return err
		}
		if bps > MaxBps {
			return fmt.Errorf("%w: %d", ErrInvalidRevenueShareBps, bps)
		}
		if existing, ok, err := loadOffering(c.txn, token); err != nil {
			return err
		} else if ok {
			return fmt.Errorf("%w: token %s held by %s", ErrAlreadyRegistered, hexAddr(token), hexAddr(existing.Issuer))
		}
		count, err := issuerCount(c.txn, issuer)
		if err != nil {
			return err
		}
		offering := &Offering{
			Issuer:          issuer,
			Token:           token,
			RevenueShareBps: bps,
			PaymentToken:    paymentToken,
			Index:           count,
			CreatedAt:       e.now(),
		}
		if err := c.txn.KVPut(offeringKey(token), offering); err != nil {
			return err
		}
		if err := c.txn.KVPut(issuerEntryKey(issuer, count), token); err != nil {
			return err
		}
		if err := c.txn.KVPut(issuerCountKey(issuer), count+1); err != nil {
			return err
		}
		if _, err := c.txn.KVAppend(issuerRegistryKey, issuer[:]); err != nil {
			return err
		}
		c.emit(OfferingRegisteredEvent(offering))
		out = offering
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SetOfferingMetadata replaces the offering metadata. Issuer only.
func (e *Engine) SetOfferingMetadata(issuer, token [20]byte, metadata string) error {
	return e.mutate("set_offering_metadata", func(c *call) error {
		o, err := c.issuerCall(issuer, token)
		if err != nil {
			return err
		}
		if len(metadata) > MaxMetadataBytes {
			return fmt.Errorf("%w: %d bytes", ErrMetadataTooLarge, len(metadata))
		}
		o.Metadata = metadata
		if err := c.txn.KVPut(offeringKey(token), o); err != nil {
			return err
		}
		c.emit(MetadataSetEvent(issuer, token, metadata))
		return nil
	})
}

// GetOffering returns the offering registered by issuer for token.
func (e *Engine) GetOffering(issuer, token [20]byte) (*Offering, bool, error) {
	var (
		out *Offering
		ok  bool
	)
	err := e.view(func(r kvReader) error {
		o, found, err := loadOffering(r, token)
		if err != nil || !found || o.Issuer != issuer {
			return err
		}
		out, ok = o, true
		return nil
	})
	return out, ok, err
}

func (e *Engine) GetOfferingMetadata(issuer, token [20]byte) (string, bool, error) {
	o, ok, err := e.GetOffering(issuer, token)
	if err != nil || !ok || o.Metadata == "" {
		return "", false, err
	}
	return o.Metadata, true, nil
}

// GetOfferingCount returns how many offerings issuer has registered.
func (e *Engine) GetOfferingCount(issuer [20]byte) (uint32, error) {
	var n uint64
	err := e.view(func(r kvReader) error {
		var err error
		n, err = issuerCount(r, issuer)
		return err
	})
	return uint32(n), err
}

// EffectivePageLimit maps a requested limit onto the served page size.
func EffectivePageLimit(limit uint32) uint32 {
	if limit == 0 || limit > MaxPageSize {
		return MaxPageSize
	}
	return limit
}

// GetOfferingsPage returns issuer's offerings in registration order starting at
// cursor. The returned cursor is nil once the end is reached.
func (e *Engine) GetOfferingsPage(issuer [20]byte, cursor, limit uint32) ([]*Offering, *uint32, error) {
	var (
		page []*Offering
		next *uint32
	)
	err := e.view(func(r kvReader) error {
		count, err := issuerCount(r, issuer)
		if err != nil {
			return err
		}
		start := uint64(cursor)
		if start >= count {
			page = []*Offering{}
			return nil
		}
		end := start + uint64(EffectivePageLimit(limit))
		if end > count {
			end = count
		}
		page = make([]*Offering, 0, end-start)
		for i := start; i < end; i++ {
			var token [20]byte
			ok, err := r.KVGet(issuerEntryKey(issuer, i), &token)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("revshare: issuer index %s missing entry %d", hexAddr(issuer), i)
			}
			o, err := offeringOf(r, issuer, token)
			if err != nil {
				return err
			}
			page = append(page, o)
		}
		if end < count {
			n := uint32(end)
			next = &n
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return page, next, nil
}

// ListOfferings returns the tokens of issuer's first offering page.
func (e *Engine) ListOfferings(issuer [20]byte) ([][20]byte, error) {
	page, _, err := e.GetOfferingsPage(issuer, 0, MaxPageSize)
	if err != nil {
		return nil, err
	}
	tokens := make([][20]byte, 0, len(page))
	for _, o := range page {
		tokens = append(tokens, o.Token)
	}
	return tokens, nil
}

// CalculateTotalDistributable returns the share of revenue owed to holders
// under the offering's revenue share.
func (e *Engine) CalculateTotalDistributable(issuer, token [20]byte, revenue *big.Int) (*big.Int, error) {
	o, ok, err := e.GetOffering(issuer, token)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrOfferingNotFound
	}
	var mode RoundingMode
	if err := e.view(func(r kvReader) error {
		cfg, err := loadConfig(r, token)
		mode = cfg.RoundingMode
		return err
	}); err != nil {
		return nil, err
	}
	return ComputeShare(revenue, o.RevenueShareBps, mode), nil
}
