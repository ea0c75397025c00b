package revshare

import (
	"math/big"
	"strings"
	"testing"
)

func TestRegisterOfferingBpsBoundary(t *testing.T) {
	f := newFixture(t).as(issuerAddr)
	before := f.snapshot()
	_, err := f.engine.RegisterOffering(issuerAddr, tokenAddr, MaxBps+1, paymentToken)
	f.expect(err, ErrInvalidRevenueShareBps)
	f.assertUnchanged(before)

	o, err := f.engine.RegisterOffering(issuerAddr, tokenAddr, MaxBps, paymentToken)
	f.must(err)
	if o.RevenueShareBps != MaxBps || o.Issuer != issuerAddr || o.PaymentToken != paymentToken {
		t.Fatalf("unexpected offering %+v", o)
	}
	evts := f.events.Events()
	if len(evts) != 1 || evts[0].EventType() != EventTypeOfferingRegistered {
		t.Fatalf("unexpected events %v", f.events.Types())
	}
	payload := evts[0].(eventEnvelope).Event()
	if payload.Attr("bps") != "10000" || payload.Attr("issuer") != hexAddr(issuerAddr) {
		t.Fatalf("unexpected attributes %v", payload.Attributes)
	}
}

func TestRegisterOfferingRejectsDuplicates(t *testing.T) {
	f := newFixture(t).withOffering()
	_, err := f.as(issuerAddr).engine.RegisterOffering(issuerAddr, tokenAddr, 500, paymentToken)
	f.expect(err, ErrAlreadyRegistered)
	_, err = f.as(otherIssuer).engine.RegisterOffering(otherIssuer, tokenAddr, 500, paymentToken)
	f.expect(err, ErrAlreadyRegistered)
	count, _ := f.engine.GetOfferingCount(issuerAddr)
	if count != 1 {
		t.Fatalf("expected one offering, got %d", count)
	}
}

func TestRegisterOfferingRequiresIssuerAuthorization(t *testing.T) {
	f := newFixture(t).as(outsider)
	_, err := f.engine.RegisterOffering(issuerAddr, tokenAddr, 1000, paymentToken)
	f.expect(err, ErrUnauthorized)
	if _, ok, _ := f.engine.GetOffering(issuerAddr, tokenAddr); ok {
		t.Fatalf("offering stored despite unauthorized call")
	}
}

func registerMany(t *testing.T, f *fixture, issuer [20]byte, n int) [][20]byte {
	t.Helper()
	f.as(issuer)
	tokens := make([][20]byte, n)
	for i := 0; i < n; i++ {
		var token [20]byte
		token[0] = issuer[19]
		token[18] = byte(i >> 8)
		token[19] = byte(i)
		tokens[i] = token
		if _, err := f.engine.RegisterOffering(issuer, token, uint32(i%10001), paymentToken); err != nil {
			t.Fatalf("register %d: %v", i, err)
		}
	}
	return tokens
}

func TestOfferingsPagination(t *testing.T) {
	const n = 45
	f := newFixture(t)
	tokens := registerMany(t, f, issuerAddr, n)

	limits := []uint32{0, 1, 7, 19, 20, 21, 1000}
	for cursor := uint32(0); cursor <= n+2; cursor++ {
		for _, limit := range limits {
			page, next, err := f.engine.GetOfferingsPage(issuerAddr, cursor, limit)
			if err != nil {
				t.Fatalf("page(%d,%d): %v", cursor, limit, err)
			}
			eff := EffectivePageLimit(limit)
			want := 0
			if cursor < n {
				want = int(eff)
				if rest := n - int(cursor); rest < want {
					want = rest
				}
			}
			if len(page) != want {
				t.Fatalf("page(%d,%d): got %d items, want %d", cursor, limit, len(page), want)
			}
			reachedEnd := int(cursor)+len(page) >= n
			if reachedEnd != (next == nil) {
				t.Fatalf("page(%d,%d): next=%v but reachedEnd=%v", cursor, limit, next, reachedEnd)
			}
			if next != nil && *next != cursor+uint32(len(page)) {
				t.Fatalf("page(%d,%d): next cursor %d", cursor, limit, *next)
			}
			for i, o := range page {
				if o.Token != tokens[int(cursor)+i] {
					t.Fatalf("page(%d,%d): item %d out of registration order", cursor, limit, i)
				}
			}
		}
	}

	count, _ := f.engine.GetOfferingCount(issuerAddr)
	if count != n {
		t.Fatalf("expected count %d, got %d", n, count)
	}
	first, _ := f.engine.ListOfferings(issuerAddr)
	if len(first) != int(MaxPageSize) || first[0] != tokens[0] {
		t.Fatalf("unexpected first page %d", len(first))
	}
	empty, next, _ := f.engine.GetOfferingsPage(otherIssuer, 0, 0)
	if len(empty) != 0 || next != nil {
		t.Fatalf("unknown issuer should have an empty page")
	}
}

func TestOfferingMetadata(t *testing.T) {
	f := newFixture(t).withOffering().as(issuerAddr)
	f.expect(f.engine.SetOfferingMetadata(issuerAddr, tokenAddr, strings.Repeat("x", MaxMetadataBytes+1)), ErrMetadataTooLarge)
	f.must(f.engine.SetOfferingMetadata(issuerAddr, tokenAddr, strings.Repeat("x", MaxMetadataBytes)))
	md, ok, err := f.engine.GetOfferingMetadata(issuerAddr, tokenAddr)
	if err != nil || !ok || len(md) != MaxMetadataBytes {
		t.Fatalf("unexpected metadata len=%d ok=%v err=%v", len(md), ok, err)
	}
	f.as(otherIssuer)
	f.expect(f.engine.SetOfferingMetadata(otherIssuer, tokenAddr, "hijack"), ErrUnauthorized)
	f.expect(f.engine.SetOfferingMetadata(otherIssuer, otherToken, "missing"), ErrOfferingNotFound)
}

func TestCalculateTotalDistributable(t *testing.T) {
	f := newFixture(t).withOffering()
	got, err := f.engine.CalculateTotalDistributable(issuerAddr, tokenAddr, big.NewInt(1_000_001))
	if err != nil || got.Int64() != 100_000 {
		t.Fatalf("unexpected distributable %v err %v", got, err)
	}
	if _, err := f.engine.CalculateTotalDistributable(otherIssuer, tokenAddr, big.NewInt(1)); err == nil {
		t.Fatalf("expected error for foreign issuer")
	}
}

func TestIssuerAndPlatformAggregation(t *testing.T) {
	f := newFixture(t).withOffering()
	f.as(otherIssuer)
	_, err := f.engine.RegisterOffering(otherIssuer, otherToken, 100, paymentToken)
	f.must(err)

	f.as(issuerAddr)
	f.must(f.engine.SetHolderShare(issuerAddr, tokenAddr, holder1, 5000))
	f.must(f.engine.DepositRevenue(issuerAddr, tokenAddr, paymentToken, big.NewInt(1_001), 1, true))
	f.as(otherIssuer)
	f.must(f.engine.DepositRevenue(otherIssuer, otherToken, paymentToken, big.NewInt(99), 1, false))

	issuers, _ := f.engine.GetAllIssuers()
	if len(issuers) != 2 || issuers[0] != issuerAddr || issuers[1] != otherIssuer {
		t.Fatalf("unexpected issuers %x", issuers)
	}
	agg, err := f.engine.GetIssuerAggregation(issuerAddr)
	f.must(err)
	if agg.OfferingCount != 1 || agg.TotalDeposited.Int64() != 1_001 || agg.TotalDistributed.Int64() != 500 || agg.TotalResidue.Int64() != 501 {
		t.Fatalf("unexpected issuer aggregation %+v", agg)
	}
	platform, err := f.engine.GetPlatformAggregation()
	f.must(err)
	if platform.IssuerCount != 2 || platform.OfferingCount != 2 || platform.TotalDeposited.Int64() != 1_100 {
		t.Fatalf("unexpected platform aggregation %+v", platform)
	}
}
