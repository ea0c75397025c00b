package revshare

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"revledger/core/events"
	"revledger/core/types"
)

const (
	EventTypeInitialized        = "revshare.initialized"
	EventTypeAdminSet           = "revshare.admin.set"
	EventTypePaused             = "revshare.safety.paused"
	EventTypeUnpaused           = "revshare.safety.unpaused"
	EventTypeFrozen             = "revshare.safety.frozen"
	EventTypeTestnetModeSet     = "revshare.testnet.set"
	EventTypePlatformFeeSet     = "revshare.fee.set"
	EventTypeOfferingRegistered = "revshare.offering.registered"
	EventTypeMetadataSet        = "revshare.offering.metadata"
	EventTypeShareSet           = "revshare.share.set"
	EventTypeConcentrationSet   = "revshare.concentration.set"
	EventTypeBlacklistAdded     = "revshare.blacklist.added"
	EventTypeBlacklistRemoved   = "revshare.blacklist.removed"
	EventTypeRevenueDeposited   = "revshare.revenue.deposited"
	EventTypeRevenueReported    = "revshare.revenue.reported"
	EventTypePeriodClosed       = "revshare.period.closed"
	EventTypeRoundingModeSet    = "revshare.config.rounding"
	EventTypeMinThresholdSet    = "revshare.config.threshold"
	EventTypeClaimDelaySet      = "revshare.config.claim_delay"
	EventTypeClaimSettled       = "revshare.claim.settled"
)

type eventEnvelope struct {
	evt *types.Event
}

func (e eventEnvelope) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e eventEnvelope) Event() *types.Event { return e.evt }

// WrapEvent converts a raw event payload into the emitter-friendly envelope.
func WrapEvent(evt *types.Event) events.Event { return eventEnvelope{evt: evt} }

func hexAddr(addr [20]byte) string { return "0x" + hex.EncodeToString(addr[:]) }

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func u64(v uint64) string { return strconv.FormatUint(v, 10) }

func newEvent(eventType string, attrs map[string]string) *types.Event {
	return &types.Event{Type: eventType, Attributes: attrs}
}

// InitializedEvent announces the initial role assignment.
func InitializedEvent(admin [20]byte, safety *[20]byte) *types.Event {
	attrs := map[string]string{"admin": hexAddr(admin)}
	if safety != nil {
		attrs["safety"] = hexAddr(*safety)
	}
	return newEvent(EventTypeInitialized, attrs)
}

// AdminSetEvent announces an admin change.
func AdminSetEvent(previous *[20]byte, admin [20]byte) *types.Event {
	attrs := map[string]string{"admin": hexAddr(admin)}
	if previous != nil {
		attrs["previous"] = hexAddr(*previous)
	}
	return newEvent(EventTypeAdminSet, attrs)
}

// PausedEvent announces a pause by the given role ("admin" or "safety").
func PausedEvent(role string, caller [20]byte) *types.Event {
	return newEvent(EventTypePaused, map[string]string{"role": role, "caller": hexAddr(caller)})
}

// UnpausedEvent announces an unpause by the given role.
func UnpausedEvent(role string, caller [20]byte) *types.Event {
	return newEvent(EventTypeUnpaused, map[string]string{"role": role, "caller": hexAddr(caller)})
}

// FrozenEvent announces the terminal freeze.
func FrozenEvent(caller [20]byte) *types.Event {
	return newEvent(EventTypeFrozen, map[string]string{"caller": hexAddr(caller)})
}

func TestnetModeSetEvent(enabled bool) *types.Event {
	return newEvent(EventTypeTestnetModeSet, map[string]string{"enabled": strconv.FormatBool(enabled)})
}

func PlatformFeeSetEvent(bps uint32) *types.Event {
	return newEvent(EventTypePlatformFeeSet, map[string]string{"bps": u64(uint64(bps))})
}

// OfferingRegisteredEvent announces a new offering.
func OfferingRegisteredEvent(o *Offering) *types.Event {
	return newEvent(EventTypeOfferingRegistered, map[string]string{
		"issuer":       hexAddr(o.Issuer),
		"token":        hexAddr(o.Token),
		"bps":          u64(uint64(o.RevenueShareBps)),
		"paymentToken": hexAddr(o.PaymentToken),
	})
}

func MetadataSetEvent(issuer, token [20]byte, metadata string) *types.Event {
	return newEvent(EventTypeMetadataSet, map[string]string{
		"issuer":   hexAddr(issuer),
		"token":    hexAddr(token),
		"metadata": metadata,
	})
}

func ShareSetEvent(token, holder [20]byte, bps uint32) *types.Event {
	return newEvent(EventTypeShareSet, map[string]string{
		"token":  hexAddr(token),
		"holder": hexAddr(holder),
		"bps":    u64(uint64(bps)),
	})
}

func ConcentrationSetEvent(token [20]byte, limit ConcentrationLimit) *types.Event {
	return newEvent(EventTypeConcentrationSet, map[string]string{
		"token":    hexAddr(token),
		"limitBps": u64(uint64(limit.LimitBps)),
		"enforced": strconv.FormatBool(limit.Enforced),
	})
}

// BlacklistEvent announces a blacklist membership change.
func BlacklistEvent(added bool, token, holder [20]byte, caller [20]byte) *types.Event {
	eventType := EventTypeBlacklistRemoved
	if added {
		eventType = EventTypeBlacklistAdded
	}
	return newEvent(eventType, map[string]string{
		"token":  hexAddr(token),
		"holder": hexAddr(holder),
		"caller": hexAddr(caller),
	})
}

// RevenueEvent announces a deposit or report into a period.
func RevenueEvent(deposit bool, issuer, token [20]byte, amount *big.Int, p *Period) *types.Event {
	eventType := EventTypeRevenueReported
	total := p.Reported
	if deposit {
		eventType = EventTypeRevenueDeposited
		total = p.Deposited
	}
	return newEvent(eventType, map[string]string{
		"issuer":   hexAddr(issuer),
		"token":    hexAddr(token),
		"periodId": u64(p.PeriodID),
		"amount":   amountString(amount),
		"total":    amountString(total),
	})
}

// PeriodClosedEvent summarises a finalized period.
func PeriodClosedEvent(issuer [20]byte, p *Period) *types.Event {
	return newEvent(EventTypePeriodClosed, map[string]string{
		"issuer":         hexAddr(issuer),
		"token":          hexAddr(p.Token),
		"periodId":       u64(p.PeriodID),
		"deposited":      amountString(p.Deposited),
		"distributed":    amountString(p.Distributed),
		"residue":        amountString(p.Residue),
		"forfeited":      amountString(p.Forfeited),
		"roundingMode":   p.RoundingMode.String(),
		"belowThreshold": strconv.FormatBool(p.BelowThreshold),
	})
}

func RoundingModeSetEvent(token [20]byte, mode RoundingMode) *types.Event {
	return newEvent(EventTypeRoundingModeSet, map[string]string{"token": hexAddr(token), "mode": mode.String()})
}

func MinThresholdSetEvent(token [20]byte, threshold *big.Int) *types.Event {
	return newEvent(EventTypeMinThresholdSet, map[string]string{"token": hexAddr(token), "threshold": amountString(threshold)})
}

func ClaimDelaySetEvent(token [20]byte, seconds uint64) *types.Event {
	return newEvent(EventTypeClaimDelaySet, map[string]string{"token": hexAddr(token), "seconds": u64(seconds)})
}

// ClaimSettledEvent announces a settled claim.
func ClaimSettledEvent(rec *ClaimRecord, paymentToken [20]byte) *types.Event {
	return newEvent(EventTypeClaimSettled, map[string]string{
		"token":        hexAddr(rec.Token),
		"holder":       hexAddr(rec.Holder),
		"periodId":     u64(rec.PeriodID),
		"amount":       amountString(rec.AmountDue),
		"paymentToken": hexAddr(paymentToken),
	})
}
