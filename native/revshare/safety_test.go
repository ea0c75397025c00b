package revshare

import (
	"errors"
	"math/big"
	"testing"

	"revledger/native/common"
)

func TestMutationsRequireInitialization(t *testing.T) {
	f := newBareFixture(t).as(issuerAddr)
	_, err := f.engine.RegisterOffering(issuerAddr, tokenAddr, 1000, paymentToken)
	f.expect(err, ErrNotInitialized)
	f.expect(f.engine.PauseAdmin(), ErrNotInitialized)
	f.expect(f.engine.SetPlatformFee(10), ErrNotInitialized)
	_, err = f.engine.Claim(holder1, tokenAddr, 1)
	f.expect(err, ErrNotInitialized)
	if len(f.db.Keys()) != 0 {
		t.Fatalf("uninitialized calls wrote state")
	}
}

func TestInitializeOnce(t *testing.T) {
	f := newBareFixture(t)
	f.as(outsider)
	f.expect(f.engine.Initialize(adminAddr, nil), ErrUnauthorized)

	f.as(adminAddr)
	f.must(f.engine.Initialize(adminAddr, nil))
	f.expect(f.engine.Initialize(adminAddr, nil), ErrAlreadyInitialized)
	if got := f.events.Count(EventTypeInitialized); got != 1 {
		t.Fatalf("expected one initialized event, got %d", got)
	}
	admin, ok, err := f.engine.GetAdmin()
	if err != nil || !ok || admin != adminAddr {
		t.Fatalf("unexpected admin %x ok=%v err=%v", admin, ok, err)
	}
	if _, ok, _ := f.engine.GetSafety(); ok {
		t.Fatalf("safety officer should be unset")
	}
}

func TestSetAdminBootstrapThenRequiresSittingAdmin(t *testing.T) {
	f := newBareFixture(t)
	// nobody signs: bootstrap is allowed exactly once
	f.must(f.engine.SetAdmin(adminAddr))
	f.expect(f.engine.SetAdmin(outsider), ErrUnauthorized)

	f.as(outsider)
	f.expect(f.engine.Initialize(outsider, nil), ErrUnauthorized)

	f.as(adminAddr)
	f.must(f.engine.Initialize(adminAddr, nil))
	f.must(f.engine.SetAdmin(otherIssuer))

	f.as(adminAddr)
	f.expect(f.engine.SetAdmin(adminAddr), ErrUnauthorized)
	admin, _, _ := f.engine.GetAdmin()
	if admin != otherIssuer {
		t.Fatalf("admin not rotated")
	}
	if got := f.events.Count(EventTypeAdminSet); got != 2 {
		t.Fatalf("expected two admin events, got %d", got)
	}
}

func TestPauseRoleSeparation(t *testing.T) {
	f := newFixture(t).withOffering()

	f.as(safetyAddr)
	f.expect(f.engine.PauseAdmin(), ErrUnauthorized)
	f.as(adminAddr)
	f.must(f.engine.PauseAdmin())

	f.as(issuerAddr)
	err := f.engine.SetHolderShare(issuerAddr, tokenAddr, holder1, 100)
	f.expect(err, ErrPaused)
	if !errors.Is(err, common.ErrModulePaused) {
		t.Fatalf("paused error should wrap common.ErrModulePaused")
	}
	_, err = f.engine.RegisterOffering(issuerAddr, otherToken, 10, paymentToken)
	f.expect(err, ErrPaused)

	// cross-role unpause attempts fail
	f.as(safetyAddr)
	f.expect(f.engine.UnpauseAdmin(), ErrUnauthorized)
	f.as(adminAddr)
	f.expect(f.engine.UnpauseSafety(), ErrUnauthorized)
	f.must(f.engine.UnpauseAdmin())

	f.as(safetyAddr)
	f.must(f.engine.PauseSafety())
	paused, _ := f.engine.IsPaused()
	if !paused {
		t.Fatalf("expected paused after safety pause")
	}
	// pausing twice is a no-op
	f.must(f.engine.PauseSafety())
	f.must(f.engine.UnpauseSafety())

	f.as(issuerAddr)
	f.must(f.engine.SetHolderShare(issuerAddr, tokenAddr, holder1, 100))
	if got := f.events.Count(EventTypePaused); got != 2 {
		t.Fatalf("expected two pause events, got %d", got)
	}
	if got := f.events.Count(EventTypeUnpaused); got != 2 {
		t.Fatalf("expected two unpause events, got %d", got)
	}
}

func TestSafetyPauseWithoutOfficer(t *testing.T) {
	f := newBareFixture(t).as(adminAddr)
	f.must(f.engine.Initialize(adminAddr, nil))
	f.as(adminAddr, safetyAddr)
	f.expect(f.engine.PauseSafety(), ErrUnauthorized)
}

func TestFreezeIsTerminal(t *testing.T) {
	f := newFixture(t).withOffering()
	f.as(safetyAddr)
	f.expect(f.engine.Freeze(), ErrUnauthorized)

	f.as(adminAddr)
	f.must(f.engine.PauseAdmin())
	f.must(f.engine.Freeze())

	f.expect(f.engine.UnpauseAdmin(), ErrFrozen)
	f.expect(f.engine.PauseAdmin(), ErrFrozen)
	f.expect(f.engine.Freeze(), ErrFrozen)
	f.expect(f.engine.SetAdmin(outsider), ErrFrozen)
	f.expect(f.engine.SetTestnetMode(true), ErrFrozen)
	f.as(safetyAddr)
	f.expect(f.engine.UnpauseSafety(), ErrFrozen)
	f.as(issuerAddr)
	f.expect(f.engine.SetHolderShare(issuerAddr, tokenAddr, holder1, 1), ErrFrozen)
	f.as(holder1)
	_, err := f.engine.Claim(holder1, tokenAddr, 1)
	f.expect(err, ErrFrozen)
	if !errors.Is(err, common.ErrModuleFrozen) {
		t.Fatalf("frozen error should wrap common.ErrModuleFrozen")
	}
	frozen, _ := f.engine.IsFrozen()
	if !frozen {
		t.Fatalf("expected frozen")
	}
}

func TestAdminSettingsRejectUnauthorizedWithoutWrite(t *testing.T) {
	f := newFixture(t)
	before := f.snapshot()

	f.as(issuerAddr)
	f.expect(f.engine.SetTestnetMode(true), ErrUnauthorized)
	f.expect(f.engine.SetPlatformFee(100), ErrUnauthorized)
	f.assertUnchanged(before)

	f.as(adminAddr)
	f.expect(f.engine.SetPlatformFee(MaxPlatformFeeBps+1), ErrInvalidFeeBps)
	f.assertUnchanged(before)

	f.must(f.engine.SetPlatformFee(MaxPlatformFeeBps))
	fee, err := f.engine.CalculatePlatformFee(big.NewInt(10_001))
	if err != nil || fee.Int64() != 5000 {
		t.Fatalf("unexpected fee %v err %v", fee, err)
	}
	f.must(f.engine.SetTestnetMode(true))
	on, _ := f.engine.IsTestnetMode()
	if !on {
		t.Fatalf("expected testnet mode")
	}
}

func TestSafetyStateVersionAdvances(t *testing.T) {
	f := newFixture(t).as(adminAddr)
	s, err := f.engine.SafetyState()
	if err != nil {
		t.Fatalf("safety state: %v", err)
	}
	start := s.Version
	f.must(f.engine.PauseAdmin())
	f.must(f.engine.UnpauseAdmin())
	s, _ = f.engine.SafetyState()
	if s.Version != start+2 {
		t.Fatalf("expected version %d, got %d", start+2, s.Version)
	}
	if f.engine.Version() != EngineVersion {
		t.Fatalf("unexpected engine version")
	}
}
