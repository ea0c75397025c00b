package revshare

import (
	"math/big"
	"testing"
)

func TestHolderSharesNeverExceedTotal(t *testing.T) {
	f := newFixture(t).withOffering().as(issuerAddr)
	assertTotal := func(want uint32) {
		t.Helper()
		total, err := f.engine.GetTotalShares(tokenAddr)
		if err != nil || total != want {
			t.Fatalf("expected total %d, got %d err %v", want, total, err)
		}
		if total > MaxBps {
			t.Fatalf("share sum %d exceeds %d", total, MaxBps)
		}
	}

	f.must(f.engine.SetHolderShare(issuerAddr, tokenAddr, holder1, 6000))
	f.must(f.engine.SetHolderShare(issuerAddr, tokenAddr, holder2, 4000))
	assertTotal(10000)
	f.expect(f.engine.SetHolderShare(issuerAddr, tokenAddr, holder3, 1), ErrShareExceedsTotal)
	assertTotal(10000)

	// lowering an existing share frees room
	f.must(f.engine.SetHolderShare(issuerAddr, tokenAddr, holder1, 5000))
	f.must(f.engine.SetHolderShare(issuerAddr, tokenAddr, holder3, 1000))
	assertTotal(10000)
	f.expect(f.engine.SetHolderShare(issuerAddr, tokenAddr, holder3, MaxBps+1), ErrShareExceedsTotal)

	f.must(f.engine.SetHolderShare(issuerAddr, tokenAddr, holder2, 0))
	assertTotal(6000)
	shares, _ := f.engine.GetHolderShares(tokenAddr)
	if len(shares) != 2 || shares[0].Holder != holder1 || shares[1].Holder != holder3 {
		t.Fatalf("unexpected ledger %+v", shares)
	}
	holders, _ := f.engine.GetHolders(tokenAddr)
	if len(holders) != 2 || holders[0] != holder1 || holders[1] != holder3 {
		t.Fatalf("zeroed holder should leave the index, got %x", holders)
	}
	if bps, _ := f.engine.GetHolderShare(tokenAddr, outsider); bps != 0 {
		t.Fatalf("unset holder should default to 0")
	}
}

func TestSetHolderShareRoleIsolation(t *testing.T) {
	f := newFixture(t).withOffering()
	f.as(issuerAddr)
	f.must(f.engine.SetHolderShare(issuerAddr, tokenAddr, holder1, 2500))
	before := f.snapshot()

	// the global admin is not the issuer of record
	f.as(adminAddr)
	f.expect(f.engine.SetHolderShare(adminAddr, tokenAddr, holder1, 9000), ErrUnauthorized)
	// naming the issuer without its signature
	f.as(outsider)
	f.expect(f.engine.SetHolderShare(issuerAddr, tokenAddr, holder1, 9000), ErrUnauthorized)
	f.expect(f.engine.SetConcentrationLimit(issuerAddr, tokenAddr, 10, true), ErrUnauthorized)
	f.expect(f.engine.SetRoundingMode(issuerAddr, tokenAddr, RoundHalfUp), ErrUnauthorized)
	f.expect(f.engine.DepositRevenue(issuerAddr, tokenAddr, paymentToken, big.NewInt(5), 1, false), ErrUnauthorized)
	f.expect(f.engine.BlacklistAdd(outsider, tokenAddr, holder1), ErrUnauthorized)

	f.assertUnchanged(before)
	if bps, _ := f.engine.GetHolderShare(tokenAddr, holder1); bps != 2500 {
		t.Fatalf("share changed to %d", bps)
	}
}

func TestConcentrationLimitChecks(t *testing.T) {
	f := newFixture(t).withOffering().as(issuerAddr)
	f.must(f.engine.SetConcentrationLimit(issuerAddr, tokenAddr, 5000, true))
	f.expect(f.engine.SetHolderShare(issuerAddr, tokenAddr, holder1, 5001), ErrConcentrationLimitExceeded)
	f.must(f.engine.SetHolderShare(issuerAddr, tokenAddr, holder1, 5000))
	f.expect(f.engine.SetConcentrationLimit(issuerAddr, tokenAddr, MaxBps+1, true), ErrInvalidBps)

	limit, ok, _ := f.engine.GetConcentrationLimit(tokenAddr)
	if !ok || limit.LimitBps != 5000 || !limit.Enforced {
		t.Fatalf("unexpected limit %+v", limit)
	}
	// disabled limits are not enforced
	f.must(f.engine.SetConcentrationLimit(issuerAddr, tokenAddr, 5000, false))
	f.must(f.engine.SetHolderShare(issuerAddr, tokenAddr, holder2, 5000))
	f.must(f.engine.SetHolderShare(issuerAddr, tokenAddr, holder1, 4000))
	f.must(f.engine.SetHolderShare(issuerAddr, tokenAddr, holder2, 6000))
	if c, _ := f.engine.GetCurrentConcentration(tokenAddr); c != 6000 {
		t.Fatalf("expected concentration 6000, got %d", c)
	}
}

func TestConcentrationLimitValidatedLazily(t *testing.T) {
	f := newFixture(t).withOffering().as(issuerAddr)
	f.must(f.engine.SetHolderShare(issuerAddr, tokenAddr, holder1, 6000))
	// existing shares are not re-validated when the limit is set
	f.must(f.engine.SetConcentrationLimit(issuerAddr, tokenAddr, 5000, true))
	f.must(f.engine.SetHolderShare(issuerAddr, tokenAddr, holder2, 4000))

	f.must(f.engine.DepositRevenue(issuerAddr, tokenAddr, paymentToken, big.NewInt(1_000), 1, false))
	f.expect(f.engine.ClosePeriod(issuerAddr, tokenAddr, 1), ErrConcentrationLimitExceeded)
	p, _, _ := f.engine.GetPeriod(tokenAddr, 1)
	if p.Closed {
		t.Fatalf("period must stay open when finalization is rejected")
	}

	f.must(f.engine.SetHolderShare(issuerAddr, tokenAddr, holder1, 5000))
	f.must(f.engine.ClosePeriod(issuerAddr, tokenAddr, 1))
}

func TestTestnetModeRelaxesConcentration(t *testing.T) {
	f := newFixture(t).withOffering()
	f.as(adminAddr)
	f.must(f.engine.SetTestnetMode(true))
	f.as(issuerAddr)
	f.must(f.engine.SetConcentrationLimit(issuerAddr, tokenAddr, 1000, true))
	f.must(f.engine.SetHolderShare(issuerAddr, tokenAddr, holder1, 9000))
	f.must(f.engine.DepositRevenue(issuerAddr, tokenAddr, paymentToken, big.NewInt(100), 1, true))
	// the revenue share bound is never relaxed
	_, err := f.engine.RegisterOffering(issuerAddr, otherToken, MaxBps+1, paymentToken)
	f.expect(err, ErrInvalidRevenueShareBps)
}

func manyHolder(i int) [20]byte {
	var h [20]byte
	h[0], h[1], h[2] = 0x77, byte(i>>8), byte(i)
	return h
}

func TestHolderCountIsBoundedOnlyByShareSum(t *testing.T) {
	f := newFixture(t).withOffering().as(issuerAddr)
	for i := 0; i < 1111; i++ {
		f.must(f.engine.SetHolderShare(issuerAddr, tokenAddr, manyHolder(i), 9))
	}
	total, _ := f.engine.GetTotalShares(tokenAddr)
	if total != 9999 {
		t.Fatalf("expected 9999 bps across 1111 holders, got %d", total)
	}
	f.expect(f.engine.SetHolderShare(issuerAddr, tokenAddr, outsider, 2), ErrShareExceedsTotal)
	holders, _ := f.engine.GetHolders(tokenAddr)
	if len(holders) != 1111 {
		t.Fatalf("expected 1111 indexed holders, got %d", len(holders))
	}
}

func TestZeroedHoldersLeaveTheIndex(t *testing.T) {
	f := newFixture(t).withOffering().as(issuerAddr)
	for i := 0; i < 1000; i++ {
		f.must(f.engine.SetHolderShare(issuerAddr, tokenAddr, manyHolder(i), 1))
	}
	for i := 0; i < 1000; i++ {
		f.must(f.engine.SetHolderShare(issuerAddr, tokenAddr, manyHolder(i), 0))
	}
	if total, _ := f.engine.GetTotalShares(tokenAddr); total != 0 {
		t.Fatalf("expected empty ledger, got %d bps", total)
	}
	if holders, _ := f.engine.GetHolders(tokenAddr); len(holders) != 0 {
		t.Fatalf("expected empty holder index, got %d entries", len(holders))
	}
	f.must(f.engine.SetHolderShare(issuerAddr, tokenAddr, holder1, 5000))
	// zeroing a holder that never had a share is a no-op
	f.must(f.engine.SetHolderShare(issuerAddr, tokenAddr, holder2, 0))
	holders, _ := f.engine.GetHolders(tokenAddr)
	if len(holders) != 1 || holders[0] != holder1 {
		t.Fatalf("unexpected holder index %x", holders)
	}
}
