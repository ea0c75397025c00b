package common

import "errors"

var (
	ErrModulePaused = errors.New("module paused")
	ErrModuleFrozen = errors.New("module frozen")
)

type PauseView interface {
	IsPaused(module string) bool
}

// FreezeView is implemented by pause views that also track a terminal freeze.
type FreezeView interface {
	PauseView
	IsFrozen(module string) bool
}

// Guard rejects calls into a frozen or paused module. Freeze is checked first
// because it is terminal.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if err := GuardFrozen(p, module); err != nil {
		return err
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

// GuardFrozen only rejects frozen modules. Pause controls use it so that a
// paused module can still be unpaused or frozen.
func GuardFrozen(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if fv, ok := p.(FreezeView); ok && fv.IsFrozen(module) {
		return ErrModuleFrozen
	}
	return nil
}
