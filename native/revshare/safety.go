package revshare

import (
	"fmt"
	"log/slog"
	"math/big"

	"revledger/native/common"
)

const (
	roleAdmin  = "admin"
	roleSafety = "safety"
)

func loadSafety(r kvReader) (*SafetyState, error) {
	s := new(SafetyState)
	if _, err := r.KVGet(safetyKey, s); err != nil {
		return nil, fmt.Errorf("revshare: load safety state: %w", err)
	}
	return s, nil
}

func storeSafety(w kvWriter, s *SafetyState) error {
	s.Version++
	return w.KVPut(safetyKey, s)
}

// Initialize assigns the admin and optional safety officer. It requires the
// admin's authorization and succeeds once.
func (e *Engine) Initialize(admin [20]byte, safety *[20]byte) error {
	return e.mutate("initialize", func(c *call) error {
		s, err := loadSafety(c.txn)
		if err != nil {
			return err
		}
		if s.Initialized {
			return ErrAlreadyInitialized
		}
		if s.HasAdmin && s.Admin != admin {
			return fmt.Errorf("%w: admin already bootstrapped as %s", ErrUnauthorized, hexAddr(s.Admin))
		}
		if err := c.require(admin); err != nil {
			return err
		}
		s.Admin, s.HasAdmin = admin, true
		if safety != nil {
			s.Safety, s.HasSafety = *safety, true
		}
		s.Initialized = true
		if err := storeSafety(c.txn, s); err != nil {
			return err
		}
		c.emit(InitializedEvent(admin, safety))
		e.log().Info("revshare initialized", slog.String("admin", hexAddr(admin)), slog.Bool("safety", safety != nil))
		return nil
	})
}

// SetAdmin hands the admin role to newAdmin. Before initialization, while no
// admin exists, the call bootstraps the role without authorization. Once an
// admin exists the sitting admin must authorize the change.
func (e *Engine) SetAdmin(newAdmin [20]byte) error {
	return e.mutate("set_admin", func(c *call) error {
		s, err := loadSafety(c.txn)
		if err != nil {
			return err
		}
		bootstrap := !s.Initialized && !s.HasAdmin
		if !bootstrap {
			if err := common.Guard(s, moduleName); err != nil {
				return guardError(err)
			}
			if err := c.require(s.Admin); err != nil {
				return err
			}
		}
		var previous *[20]byte
		if s.HasAdmin {
			prev := s.Admin
			previous = &prev
		}
		s.Admin, s.HasAdmin = newAdmin, true
		if err := storeSafety(c.txn, s); err != nil {
			return err
		}
		c.emit(AdminSetEvent(previous, newAdmin))
		e.log().Info("revshare admin changed", slog.String("admin", hexAddr(newAdmin)), slog.Bool("bootstrap", bootstrap))
		return nil
	})
}

func (e *Engine) setPaused(op, role string, paused bool) error {
	return e.mutate(op, func(c *call) error {
		s, err := c.admit(true)
		if err != nil {
			return err
		}
		var caller [20]byte
		switch role {
		case roleAdmin:
			caller = s.Admin
		default:
			if !s.HasSafety {
				return fmt.Errorf("%w: safety officer not assigned", ErrUnauthorized)
			}
			caller = s.Safety
		}
		if err := c.require(caller); err != nil {
			return err
		}
		if s.Paused == paused {
			return nil
		}
		s.Paused = paused
		if err := storeSafety(c.txn, s); err != nil {
			return err
		}
		if paused {
			c.emit(PausedEvent(role, caller))
		} else {
			c.emit(UnpausedEvent(role, caller))
		}
		e.log().Warn("revshare pause state changed", slog.String("role", role), slog.Bool("paused", paused))
		return nil
	})
}

// PauseAdmin halts mutating operations on behalf of the admin.
func (e *Engine) PauseAdmin() error { return e.setPaused("pause_admin", roleAdmin, true) }

// UnpauseAdmin resumes operations on behalf of the admin.
func (e *Engine) UnpauseAdmin() error { return e.setPaused("unpause_admin", roleAdmin, false) }

// PauseSafety halts mutating operations on behalf of the safety officer.
func (e *Engine) PauseSafety() error { return e.setPaused("pause_safety", roleSafety, true) }

// UnpauseSafety resumes operations on behalf of the safety officer.
func (e *Engine) UnpauseSafety() error { return e.setPaused("unpause_safety", roleSafety, false) }

// Freeze permanently blocks every mutating operation. Admin only.
func (e *Engine) Freeze() error {
	return e.mutate("freeze", func(c *call) error {
		s, err := c.admit(true)
		if err != nil {
			return err
		}
		if err := c.require(s.Admin); err != nil {
			return err
		}
		s.Frozen = true
		if err := storeSafety(c.txn, s); err != nil {
			return err
		}
		c.emit(FrozenEvent(s.Admin))
		e.log().Warn("revshare frozen", slog.String("admin", hexAddr(s.Admin)))
		return nil
	})
}

// SetTestnetMode toggles relaxed concentration enforcement. Admin only.
func (e *Engine) SetTestnetMode(enabled bool) error {
	return e.mutate("set_testnet_mode", func(c *call) error {
		s, err := c.admit(false)
		if err != nil {
			return err
		}
		if err := c.require(s.Admin); err != nil {
			return err
		}
		if s.TestnetMode == enabled {
			return nil
		}
		s.TestnetMode = enabled
		if err := storeSafety(c.txn, s); err != nil {
			return err
		}
		c.emit(TestnetModeSetEvent(enabled))
		return nil
	})
}

// SetPlatformFee records the platform fee in basis points. Admin only.
func (e *Engine) SetPlatformFee(bps uint32) error {
	return e.mutate("set_platform_fee", func(c *call) error {
		s, err := c.admit(false)
		if err != nil {
			return err
		}
		if err := c.require(s.Admin); err != nil {
			return err
		}
		if bps > MaxPlatformFeeBps {
			return fmt.Errorf("%w: %d", ErrInvalidFeeBps, bps)
		}
		s.PlatformFeeBps = bps
		if err := storeSafety(c.txn, s); err != nil {
			return err
		}
		c.emit(PlatformFeeSetEvent(bps))
		return nil
	})
}

// SafetyState returns a copy of the role and safety record.
func (e *Engine) SafetyState() (*SafetyState, error) {
	var out *SafetyState
	err := e.view(func(r kvReader) error {
		s, err := loadSafety(r)
		out = s
		return err
	})
	return out, err
}

// GetAdmin returns the admin, if assigned.
func (e *Engine) GetAdmin() ([20]byte, bool, error) {
	s, err := e.SafetyState()
	if err != nil {
		return [20]byte{}, false, err
	}
	return s.Admin, s.HasAdmin, nil
}

// GetSafety returns the safety officer, if assigned.
func (e *Engine) GetSafety() ([20]byte, bool, error) {
	s, err := e.SafetyState()
	if err != nil {
		return [20]byte{}, false, err
	}
	return s.Safety, s.HasSafety, nil
}

func (e *Engine) IsPaused() (bool, error) {
	s, err := e.SafetyState()
	if err != nil {
		return false, err
	}
	return s.Paused, nil
}

func (e *Engine) IsFrozen() (bool, error) {
	s, err := e.SafetyState()
	if err != nil {
		return false, err
	}
	return s.Frozen, nil
}

func (e *Engine) IsTestnetMode() (bool, error) {
	s, err := e.SafetyState()
	if err != nil {
		return false, err
	}
	return s.TestnetMode, nil
}

func (e *Engine) GetPlatformFee() (uint32, error) {
	s, err := e.SafetyState()
	if err != nil {
		return 0, err
	}
	return s.PlatformFeeBps, nil
}

// CalculatePlatformFee returns amount * fee / 10000, truncated.
func (e *Engine) CalculatePlatformFee(amount *big.Int) (*big.Int, error) {
	fee, err := e.GetPlatformFee()
	if err != nil {
		return nil, err
	}
	return ComputeShare(amount, fee, RoundTruncation), nil
}

// Version reports the engine revision.
func (e *Engine) Version() uint32 { return EngineVersion }
