package revshare

import (
	"math/big"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComputeShare(t *testing.T) {
	tests := []struct {
		name   string
		amount int64
		bps    uint32
		mode   RoundingMode
		want   int64
	}{
		{"zero amount", 0, 5000, RoundTruncation, 0},
		{"negative amount", -10, 5000, RoundHalfUp, 0},
		{"zero bps", 1000, 0, RoundHalfUp, 0},
		{"exact", 1_000_000, 6000, RoundTruncation, 600_000},
		{"truncates", 1_000_001, 6000, RoundTruncation, 600_000},
		{"half up rounds up", 1_000_001, 6000, RoundHalfUp, 600_001},
		{"half up rounds down", 1_000_001, 4000, RoundHalfUp, 400_000},
		{"half up at half", 1, 5000, RoundHalfUp, 1},
		{"truncation at half", 1, 5000, RoundTruncation, 0},
		{"clamped bps", 100, 20_000, RoundTruncation, 100},
		{"full share", 12345, MaxBps, RoundHalfUp, 12345},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ComputeShare(big.NewInt(tc.amount), tc.bps, tc.mode)
			require.Equal(t, tc.want, got.Int64())
		})
	}
	require.Zero(t, ComputeShare(nil, 100, RoundTruncation).Sign())
}

func TestDistributeHalfUpNeverOverDistributes(t *testing.T) {
	shares := []HolderShare{{Holder: holder1, Bps: 5000}, {Holder: holder2, Bps: 5000}}
	d := Distribute(big.NewInt(1), shares, nil, RoundHalfUp)
	require.Equal(t, int64(1), d.Entitlements[0].Amount.Int64())
	require.Equal(t, int64(0), d.Entitlements[1].Amount.Int64())
	require.Equal(t, int64(1), d.Distributed.Int64())
	require.Zero(t, d.Residue.Sign())
}

func TestExclusionForfeitPolicy(t *testing.T) {
	shares := []HolderShare{{Holder: holder1, Bps: 6000}, {Holder: holder2, Bps: 4000}}
	excluded := func(id [20]byte) bool { return id == holder2 }
	d := Distribute(big.NewInt(1_000_000), shares, excluded, RoundTruncation)

	require.Equal(t, ExclusionForfeit, d.Policy)
	require.Equal(t, "forfeit", d.Policy.String())
	require.Equal(t, int64(600_000), d.Entitlements[0].Amount.Int64())
	require.True(t, d.Entitlements[1].Excluded)
	require.Zero(t, d.Entitlements[1].Amount.Sign())
	require.Equal(t, int64(400_000), d.Entitlements[1].Forfeit.Int64())
	require.Equal(t, int64(600_000), d.Distributed.Int64())
	require.Equal(t, int64(400_000), d.Residue.Int64())
	require.Equal(t, int64(400_000), d.Forfeited.Int64())
	require.Zero(t, d.RoundingResidue().Sign())
}

func TestDistributeConservation(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	amounts := []int64{0, 1, 2, 3, 7, 9_999, 10_001, 1_000_001, 999_999_937}
	for iter := 0; iter < 500; iter++ {
		n := 1 + rng.Intn(12)
		shares := make([]HolderShare, n)
		remaining := int(MaxBps)
		for i := range shares {
			bps := 0
			if remaining > 0 {
				bps = rng.Intn(remaining + 1)
			}
			// every fourth ledger sums to exactly 10000
			if i == n-1 && iter%4 == 0 {
				bps = remaining
			}
			remaining -= bps
			shares[i] = HolderShare{Holder: testAddr(byte(i + 1)), Bps: uint32(bps)}
		}
		excludedSet := map[[20]byte]bool{}
		for _, s := range shares {
			if rng.Intn(4) == 0 {
				excludedSet[s.Holder] = true
			}
		}
		excluded := func(id [20]byte) bool { return excludedSet[id] }
		amount := big.NewInt(amounts[iter%len(amounts)] + rng.Int63n(1_000))

		for _, mode := range []RoundingMode{RoundTruncation, RoundHalfUp} {
			d := Distribute(amount, shares, excluded, mode)
			sum := big.NewInt(0)
			for _, ent := range d.Entitlements {
				if excludedSet[ent.Holder] {
					require.Zero(t, ent.Amount.Sign(), "excluded holder received an entitlement")
				}
				require.True(t, ent.Amount.Sign() >= 0)
				sum.Add(sum, ent.Amount)
			}
			require.Equal(t, 0, sum.Cmp(d.Distributed))
			require.True(t, d.Distributed.Cmp(amount) <= 0, "distributed %v exceeds %v", d.Distributed, amount)
			require.Equal(t, 0, new(big.Int).Add(d.Distributed, d.Residue).Cmp(amount))
			require.True(t, d.Forfeited.Cmp(d.Residue) <= 0)
			if mode == RoundTruncation && remaining == 0 {
				// a full ledger loses less than one unit per holder to truncation
				require.True(t, d.RoundingResidue().Cmp(big.NewInt(int64(n))) < 0)
			}
		}
	}
}

func TestScenarioExactSplit(t *testing.T) {
	f := newFixture(t).withOffering().as(issuerAddr)
	f.must(f.engine.SetHolderShare(issuerAddr, tokenAddr, holder1, 6000))
	f.must(f.engine.SetHolderShare(issuerAddr, tokenAddr, holder2, 4000))
	f.must(f.engine.DepositRevenue(issuerAddr, tokenAddr, paymentToken, big.NewInt(1_000_000), 1, false))
	f.must(f.engine.ClosePeriod(issuerAddr, tokenAddr, 1))

	r1, _, _ := f.engine.GetClaimRecord(tokenAddr, holder1, 1)
	r2, _, _ := f.engine.GetClaimRecord(tokenAddr, holder2, 1)
	require.Equal(t, int64(600_000), r1.AmountDue.Int64())
	require.Equal(t, int64(400_000), r2.AmountDue.Int64())
	a, ok, err := f.engine.GetAuditSummary(issuerAddr, tokenAddr)
	require.NoError(t, err)
	require.True(t, ok)
	require.Zero(t, a.LastResidue.Sign())
	require.Equal(t, int64(1_000_000), a.TotalDistributed.Int64())
}

func TestScenarioTruncationResidue(t *testing.T) {
	f := newFixture(t).withOffering().as(issuerAddr)
	f.must(f.engine.SetHolderShare(issuerAddr, tokenAddr, holder1, 6000))
	f.must(f.engine.SetHolderShare(issuerAddr, tokenAddr, holder2, 4000))
	f.must(f.engine.DepositRevenue(issuerAddr, tokenAddr, paymentToken, big.NewInt(1_000_001), 1, false))
	f.must(f.engine.ClosePeriod(issuerAddr, tokenAddr, 1))

	r1, _, _ := f.engine.GetClaimRecord(tokenAddr, holder1, 1)
	r2, _, _ := f.engine.GetClaimRecord(tokenAddr, holder2, 1)
	require.Equal(t, int64(600_000), r1.AmountDue.Int64())
	require.Equal(t, int64(400_000), r2.AmountDue.Int64())
	p, _, _ := f.engine.GetPeriod(tokenAddr, 1)
	require.Equal(t, int64(1), p.Residue.Int64())
	require.Equal(t, RoundTruncation, p.RoundingMode)
	a, _, _ := f.engine.GetAuditSummary(issuerAddr, tokenAddr)
	require.Equal(t, int64(1), a.LastResidue.Int64())

	evts := f.events.Events()
	last := evts[len(evts)-1].(eventEnvelope).Event()
	require.Equal(t, EventTypePeriodClosed, last.Type)
	require.Equal(t, "1", last.Attr("residue"))
}

func TestFinalizationExcludesBlacklistedHolder(t *testing.T) {
	f := newFixture(t).withOffering().as(issuerAddr)
	f.must(f.engine.SetHolderShare(issuerAddr, tokenAddr, holder1, 6000))
	f.must(f.engine.SetHolderShare(issuerAddr, tokenAddr, holder2, 4000))
	f.must(f.engine.BlacklistAdd(issuerAddr, tokenAddr, holder2))
	f.must(f.engine.SetRoundingMode(issuerAddr, tokenAddr, RoundHalfUp))
	f.must(f.engine.DepositRevenue(issuerAddr, tokenAddr, paymentToken, big.NewInt(1_000_001), 1, true))

	// blacklisted holders keep their configured share
	bps, _ := f.engine.GetHolderShare(tokenAddr, holder2)
	require.Equal(t, uint32(4000), bps)
	_, ok, _ := f.engine.GetClaimRecord(tokenAddr, holder2, 1)
	require.False(t, ok)
	r1, _, _ := f.engine.GetClaimRecord(tokenAddr, holder1, 1)
	require.Equal(t, int64(600_001), r1.AmountDue.Int64())
	p, _, _ := f.engine.GetPeriod(tokenAddr, 1)
	require.Equal(t, int64(400_000), p.Forfeited.Int64())
	require.Equal(t, int64(400_000), p.Residue.Int64())
	require.Equal(t, RoundHalfUp, p.RoundingMode)
}

func TestSimulateDistributionWritesNothing(t *testing.T) {
	f := newFixture(t).withOffering().as(issuerAddr)
	f.must(f.engine.SetHolderShare(issuerAddr, tokenAddr, holder1, 7000))
	f.must(f.engine.BlacklistAdd(issuerAddr, tokenAddr, holder3))
	before := f.snapshot()

	d, err := f.engine.SimulateDistribution(issuerAddr, tokenAddr, big.NewInt(1_000), nil)
	require.NoError(t, err)
	require.Equal(t, int64(700), d.Distributed.Int64())

	custom := []HolderShare{{Holder: holder2, Bps: 2500}, {Holder: holder3, Bps: 2500}}
	d, err = f.engine.SimulateDistribution(issuerAddr, tokenAddr, big.NewInt(1_000), custom)
	require.NoError(t, err)
	require.Equal(t, int64(250), d.Distributed.Int64())
	require.Equal(t, int64(250), d.Forfeited.Int64())

	_, err = f.engine.SimulateDistribution(issuerAddr, tokenAddr, big.NewInt(1), []HolderShare{{Holder: holder1, Bps: 10001}})
	require.ErrorIs(t, err, ErrShareExceedsTotal)
	_, err = f.engine.SimulateDistribution(otherIssuer, tokenAddr, big.NewInt(1), nil)
	require.ErrorIs(t, err, ErrOfferingNotFound)
	f.assertUnchanged(before)
}
