/*
lifecycle.go - LifecycleClassifier

PURPOSE:
  Maps a certificate's expiry date and "today" to its temporal state:

    DaysRemaining = ceil((expiry - today) / 1 day), both at midnight

    DaysRemaining < 0                  -> expired
    0 <= DaysRemaining <= warningDays  -> expiring   (default window: 10 days)
    DaysRemaining > warningDays        -> current
    expiry missing or unparseable      -> error

  current -> expiring -> expired is driven by time only. A user-controlled
  "cancelled" flag is orthogonal; callers combine it (see
  backoffice.CertificateView).

THRESHOLDS:
  The early-warning window is a parameter defaulting to 10 days. The 30-day
  "upcoming" list on dashboards is a filter over DaysRemaining (DueWithin),
  not a lifecycle state.

CACHE:
  A persisted estado string is a cache of this result. Recompute whenever
  today may have moved; never read it back as truth.

SEE ALSO:
  - time.go: Date, Midnight, DaysBetween
*/
package engine

import "time"

const (
	// DefaultExpiryWarningDays is the early-warning window for "expiring".
	DefaultExpiryWarningDays = 10

	// DefaultUpcomingWindowDays is the dashboard "upcoming" filter window.
	DefaultUpcomingWindowDays = 30
)

type LifecycleState string

const (
	StateCurrent  LifecycleState = "current"
	StateExpiring LifecycleState = "expiring"
	StateExpired  LifecycleState = "expired"
	StateError    LifecycleState = "error"
)

type Lifecycle struct {
	State         LifecycleState
	DaysRemaining int
}

// Priority orders states for display, most urgent first. Broken records sort
// ahead of everything so they are seen.
func (l Lifecycle) Priority() int {
	switch l.State {
	case StateError:
		return 0
	case StateExpired:
		return 1
	case StateExpiring:
		return 2
	default:
		return 3
	}
}

// DueWithin reports whether the certificate expires today or within days.
// Expired and error states are never "due".
func (l Lifecycle) DueWithin(days int) bool {
	if l.State == StateError {
		return false
	}
	return l.DaysRemaining >= 0 && l.DaysRemaining <= days
}

// Classify uses the default 10-day warning window.
func Classify(expiry, today time.Time) Lifecycle {
	return ClassifyWithin(expiry, today, DefaultExpiryWarningDays)
}

// ClassifyWithin classifies with an explicit warning window. A negative
// window falls back to the default.
func ClassifyWithin(expiry, today time.Time, warningDays int) Lifecycle {
	if expiry.IsZero() {
		return Lifecycle{State: StateError}
	}
	if warningDays < 0 {
		warningDays = DefaultExpiryWarningDays
	}

	days := DaysBetween(today, expiry)
	switch {
	case days < 0:
		return Lifecycle{State: StateExpired, DaysRemaining: days}
	case days <= warningDays:
		return Lifecycle{State: StateExpiring, DaysRemaining: days}
	default:
		return Lifecycle{State: StateCurrent, DaysRemaining: days}
	}
}

// ClassifyDate classifies a wire date; an invalid date yields StateError.
func ClassifyDate(expiry Date, today time.Time) Lifecycle {
	return ClassifyDateWithin(expiry, today, DefaultExpiryWarningDays)
}

func ClassifyDateWithin(expiry Date, today time.Time, warningDays int) Lifecycle {
	if !expiry.Valid() {
		return Lifecycle{State: StateError}
	}
	return ClassifyWithin(expiry.Time, today, warningDays)
}
