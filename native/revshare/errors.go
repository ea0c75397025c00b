package revshare

import (
	"errors"
	"fmt"

	"revledger/native/common"
)

var (
	ErrUnauthorized               = errors.New("revshare: unauthorized")
	ErrNotInitialized             = errors.New("revshare: not initialized")
	ErrAlreadyInitialized         = errors.New("revshare: already initialized")
	ErrPaused                     = fmt.Errorf("revshare: %w", common.ErrModulePaused)
	ErrFrozen                     = fmt.Errorf("revshare: %w", common.ErrModuleFrozen)
	ErrInvalidRevenueShareBps     = errors.New("revshare: revenue share bps exceeds 10000")
	ErrAlreadyRegistered          = errors.New("revshare: offering already registered")
	ErrOfferingNotFound           = errors.New("revshare: offering not found")
	ErrShareExceedsTotal          = errors.New("revshare: holder shares exceed 10000 bps")
	ErrConcentrationLimitExceeded = errors.New("revshare: concentration limit exceeded")
	ErrInvalidBps                 = errors.New("revshare: bps exceeds 10000")
	ErrInvalidFeeBps              = errors.New("revshare: platform fee exceeds 5000 bps")
	ErrPeriodClosed               = errors.New("revshare: period closed")
	ErrOutOfOrderPeriod           = errors.New("revshare: out of order period")
	ErrInvalidPeriod              = errors.New("revshare: invalid period id")
	ErrPeriodNotFound             = errors.New("revshare: period not found")
	ErrInvalidAmount              = errors.New("revshare: invalid amount")
	ErrInvalidRoundingMode        = errors.New("revshare: invalid rounding mode")
	ErrPaymentTokenMismatch       = errors.New("revshare: payment token mismatch")
	ErrMetadataTooLarge           = errors.New("revshare: metadata too large")
	ErrLimitReached               = errors.New("revshare: limit reached")
	ErrNotEligible                = errors.New("revshare: not eligible")
	ErrClaimNotYetAvailable       = errors.New("revshare: claim not yet available")
	ErrAlreadyClaimed             = errors.New("revshare: already claimed")
	ErrNoPendingClaims            = errors.New("revshare: no pending claims")
	ErrPaymentFailed              = errors.New("revshare: payment failed")

	errNilState = errors.New("revshare: state not configured")
)
