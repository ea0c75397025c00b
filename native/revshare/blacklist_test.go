package revshare

import "testing"

func TestBlacklistIdempotence(t *testing.T) {
	f := newFixture(t).withOffering().as(issuerAddr)

	f.must(f.engine.BlacklistAdd(issuerAddr, tokenAddr, holder1))
	f.must(f.engine.BlacklistAdd(issuerAddr, tokenAddr, holder1))
	f.must(f.engine.BlacklistAdd(issuerAddr, tokenAddr, holder2))
	list, _ := f.engine.GetBlacklist(tokenAddr)
	if len(list) != 2 || list[0] != holder1 || list[1] != holder2 {
		t.Fatalf("unexpected blacklist %x", list)
	}
	if got := f.events.Count(EventTypeBlacklistAdded); got != 2 {
		t.Fatalf("expected 2 add events, got %d", got)
	}

	f.must(f.engine.BlacklistRemove(issuerAddr, tokenAddr, holder3))
	if got := f.events.Count(EventTypeBlacklistRemoved); got != 0 {
		t.Fatalf("removing an absent entry must not emit")
	}
	f.must(f.engine.BlacklistRemove(issuerAddr, tokenAddr, holder1))
	f.must(f.engine.BlacklistRemove(issuerAddr, tokenAddr, holder1))
	list, _ = f.engine.GetBlacklist(tokenAddr)
	if len(list) != 1 || list[0] != holder2 {
		t.Fatalf("unexpected blacklist after removal %x", list)
	}
	if listed, _ := f.engine.IsBlacklisted(tokenAddr, holder1); listed {
		t.Fatalf("holder1 should be removed")
	}
	if got := f.events.Count(EventTypeBlacklistRemoved); got != 1 {
		t.Fatalf("expected one remove event, got %d", got)
	}
}

func TestBlacklistScopedPerToken(t *testing.T) {
	f := newFixture(t).withOffering().as(issuerAddr)
	_, err := f.engine.RegisterOffering(issuerAddr, otherToken, 100, paymentToken)
	f.must(err)
	f.must(f.engine.BlacklistAdd(issuerAddr, tokenAddr, holder1))
	if listed, _ := f.engine.IsBlacklisted(otherToken, holder1); listed {
		t.Fatalf("blacklist leaked across tokens")
	}
	list, _ := f.engine.GetBlacklist(otherToken)
	if len(list) != 0 {
		t.Fatalf("expected empty blacklist on other token")
	}
}

func TestBlacklistRequiresOfferingIssuer(t *testing.T) {
	f := newFixture(t).withOffering()
	f.as(otherIssuer)
	f.expect(f.engine.BlacklistAdd(otherIssuer, tokenAddr, holder1), ErrUnauthorized)
	f.expect(f.engine.BlacklistRemove(otherIssuer, tokenAddr, holder1), ErrUnauthorized)
	f.as(issuerAddr)
	f.expect(f.engine.BlacklistAdd(issuerAddr, otherToken, holder1), ErrOfferingNotFound)
}
