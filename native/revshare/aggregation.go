package revshare

import "math/big"

func loadIssuers(r kvReader) ([][20]byte, error) {
	var raw [][]byte
	if err := r.KVGetList(issuerRegistryKey, &raw); err != nil {
		return nil, err
	}
	if len(raw) > MaxAggregatedIssuers {
		raw = raw[:MaxAggregatedIssuers]
	}
	out := make([][20]byte, 0, len(raw))
	for _, b := range raw {
		var id [20]byte
		copy(id[:], b)
		out = append(out, id)
	}
	return out, nil
}

func aggregateIssuer(r kvReader, issuer [20]byte) (*IssuerAggregation, error) {
	agg := &IssuerAggregation{
		Issuer:           issuer,
		TotalDeposited:   big.NewInt(0),
		TotalReported:    big.NewInt(0),
		TotalDistributed: big.NewInt(0),
		TotalResidue:     big.NewInt(0),
		TotalClaimed:     big.NewInt(0),
	}
	count, err := issuerCount(r, issuer)
	if err != nil {
		return nil, err
	}
	agg.OfferingCount = count
	for i := uint64(0); i < count; i++ {
		var token [20]byte
		if _, err := r.KVGet(issuerEntryKey(issuer, i), &token); err != nil {
			return nil, err
		}
		a, ok, err := loadAudit(r, issuer, token)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		agg.TotalDeposited.Add(agg.TotalDeposited, a.TotalDeposited)
		agg.TotalReported.Add(agg.TotalReported, a.TotalReported)
		agg.TotalDistributed.Add(agg.TotalDistributed, a.TotalDistributed)
		agg.TotalResidue.Add(agg.TotalResidue, a.TotalResidue)
		agg.TotalClaimed.Add(agg.TotalClaimed, a.TotalClaimed)
	}
	return agg, nil
}

// GetAllIssuers returns issuers in first-registration order, capped at
// MaxAggregatedIssuers.
func (e *Engine) GetAllIssuers() ([][20]byte, error) {
	var out [][20]byte
	err := e.view(func(r kvReader) error {
		var err error
		out, err = loadIssuers(r)
		return err
	})
	return out, err
}

// GetIssuerAggregation sums the audit data of every offering of issuer.
func (e *Engine) GetIssuerAggregation(issuer [20]byte) (*IssuerAggregation, error) {
	var out *IssuerAggregation
	err := e.view(func(r kvReader) error {
		var err error
		out, err = aggregateIssuer(r, issuer)
		return err
	})
	return out, err
}

// GetPlatformAggregation sums issuer aggregations across GetAllIssuers.
func (e *Engine) GetPlatformAggregation() (*PlatformAggregation, error) {
	out := &PlatformAggregation{
		TotalDeposited:   big.NewInt(0),
		TotalReported:    big.NewInt(0),
		TotalDistributed: big.NewInt(0),
		TotalResidue:     big.NewInt(0),
		TotalClaimed:     big.NewInt(0),
	}
	err := e.view(func(r kvReader) error {
		issuers, err := loadIssuers(r)
		if err != nil {
			return err
		}
		out.IssuerCount = uint64(len(issuers))
		for _, issuer := range issuers {
			agg, err := aggregateIssuer(r, issuer)
			if err != nil {
				return err
			}
			out.OfferingCount += agg.OfferingCount
			out.TotalDeposited.Add(out.TotalDeposited, agg.TotalDeposited)
			out.TotalReported.Add(out.TotalReported, agg.TotalReported)
			out.TotalDistributed.Add(out.TotalDistributed, agg.TotalDistributed)
			out.TotalResidue.Add(out.TotalResidue, agg.TotalResidue)
			out.TotalClaimed.Add(out.TotalClaimed, agg.TotalClaimed)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
