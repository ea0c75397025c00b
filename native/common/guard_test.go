package common

import (
	"errors"
	"testing"
)

type pauseOnly map[string]bool

func (p pauseOnly) IsPaused(module string) bool { return p[module] }

type pauseFreeze struct {
	paused, frozen bool
}

func (p pauseFreeze) IsPaused(string) bool { return p.paused }
func (p pauseFreeze) IsFrozen(string) bool { return p.frozen }

func TestGuard(t *testing.T) {
	tests := []struct {
		name   string
		view   PauseView
		module string
		want   error
	}{
		{"nil view", nil, "revshare", nil},
		{"empty module", pauseOnly{"": true}, "", nil},
		{"active", pauseOnly{}, "revshare", nil},
		{"paused", pauseOnly{"revshare": true}, "revshare", ErrModulePaused},
		{"other module paused", pauseOnly{"swap": true}, "revshare", nil},
		{"frozen wins over paused", pauseFreeze{paused: true, frozen: true}, "revshare", ErrModuleFrozen},
		{"frozen while active", pauseFreeze{frozen: true}, "revshare", ErrModuleFrozen},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := Guard(tc.view, tc.module); !errors.Is(err, tc.want) {
				t.Fatalf("Guard() = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestGuardFrozenIgnoresPause(t *testing.T) {
	if err := GuardFrozen(pauseFreeze{paused: true}, "revshare"); err != nil {
		t.Fatalf("paused module should pass frozen guard: %v", err)
	}
	if err := GuardFrozen(pauseFreeze{frozen: true}, "revshare"); !errors.Is(err, ErrModuleFrozen) {
		t.Fatalf("expected ErrModuleFrozen, got %v", err)
	}
}
