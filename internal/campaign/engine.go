// Package campaign holds the pure decision logic for submissions and campaign
// state transitions. Nothing here performs I/O or owns a timer; callers pass
// the current settings and contacts in and persist the returned patches.
package campaign

import (
	"fmt"
	"time"

	"vcf-drop/internal/domain"
	"vcf-drop/pkg/utils"

	"github.com/google/uuid"
)

// Engine evaluates submissions and countdown expiry
type Engine struct {
	countdown time.Duration
	now       func() time.Time
	newID     func() string
}

// Option configures an Engine
type Option func(*Engine)

// WithClock overrides the wall clock
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator overrides contact id generation
func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) { e.newID = newID }
}

// NewEngine creates an engine with the given countdown duration
func NewEngine(countdown time.Duration, opts ...Option) *Engine {
	if countdown <= 0 {
		countdown = domain.DefaultCountdownDuration
	}
	e := &Engine{
		countdown: countdown,
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CountdownDuration returns the configured countdown length
func (e *Engine) CountdownDuration() time.Duration {
	return e.countdown
}

// Now returns the engine clock reading
func (e *Engine) Now() time.Time {
	return e.now()
}

// Submit decides whether name/phone joins the campaign.
//
// The (n+1)-th accepted contact is overflow iff n >= TargetCount. The
// countdown starts exactly once, on the acceptance that brings the total to
// the target, and never again while a start time is recorded.
func (e *Engine) Submit(name, phone string, settings domain.Settings, existing []domain.Contact) domain.Decision {
	if settings.IsSystemLocked {
		return domain.Decision{Reason: domain.ReasonLocked}
	}

	normalized := utils.NormalizePhoneNumber(phone)
	for _, c := range existing {
		if utils.NormalizePhoneNumber(c.Phone) == normalized {
			return domain.Decision{Reason: domain.ReasonDuplicate}
		}
	}

	now := e.now()
	count := len(existing)
	contact := &domain.Contact{
		ID:         e.newID(),
		Name:       name,
		Phone:      phone,
		Timestamp:  now.UnixMilli(),
		IsOverflow: count >= settings.TargetCount,
	}

	newTotal := count + 1
	decision := domain.Decision{
		Accepted: true,
		Contact:  contact,
		Patch:    domain.SettingsPatch{TotalCollected: domain.Int(newTotal)},
	}

	if newTotal >= settings.TargetCount && !settings.IsCountdownActive && settings.CountdownStartTime == nil {
		decision.Patch.IsCountdownActive = domain.Bool(true)
		decision.Patch.CountdownStartTime = domain.Int64(now.UnixMilli())
		decision.CountdownStarted = true
	}

	return decision
}

// EvaluateCountdown returns the lock transition once the countdown has run
// longer than the configured duration. Elapsed wall-clock time is measured, so
// missed polls only delay the lock, never skip it.
func (e *Engine) EvaluateCountdown(settings domain.Settings) (domain.SettingsPatch, bool) {
	start, ok := settings.CountdownStartedAt()
	if !settings.IsCountdownActive || !ok {
		return domain.SettingsPatch{}, false
	}
	if e.now().Sub(start) <= e.countdown {
		return domain.SettingsPatch{}, false
	}
	return domain.SettingsPatch{
		IsCountdownActive:   domain.Bool(false),
		ClearCountdownStart: true,
		IsSystemLocked:      domain.Bool(true),
	}, true
}

// Countdown reports the countdown as of now
func (e *Engine) Countdown(settings domain.Settings) domain.CountdownStatus {
	start, ok := settings.CountdownStartedAt()
	if !settings.IsCountdownActive || !ok {
		return domain.CountdownStatus{}
	}
	remaining := e.countdown - e.now().Sub(start)
	if remaining < 0 {
		remaining = 0
	}
	return domain.CountdownStatus{
		Active:      true,
		StartedAt:   &start,
		Remaining:   remaining,
		RemainingMs: remaining.Milliseconds(),
		Display:     FormatRemaining(remaining),
	}
}

// FormatRemaining renders a duration as HH:MM:SS, truncating sub-second parts
func FormatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}

// Lock is the admin lock. A running countdown is cancelled so the two flags
// are never both set.
func Lock(settings domain.Settings) domain.SettingsPatch {
	patch := domain.SettingsPatch{IsSystemLocked: domain.Bool(true)}
	if settings.IsCountdownActive {
		patch.IsCountdownActive = domain.Bool(false)
		patch.ClearCountdownStart = true
	}
	return patch
}

// Unlock is the admin unlock. It returns the campaign to open and cancels any
// countdown, so the next submission at or past the target arms a new one.
func Unlock(domain.Settings) domain.SettingsPatch {
	return domain.SettingsPatch{
		IsSystemLocked:      domain.Bool(false),
		IsCountdownActive:   domain.Bool(false),
		ClearCountdownStart: true,
	}
}

// ResetPatch restores the mutable counters. TargetCount and AdminCredential
// are left untouched.
func ResetPatch() domain.SettingsPatch {
	return domain.SettingsPatch{
		TotalCollected:      domain.Int(0),
		IsCountdownActive:   domain.Bool(false),
		ClearCountdownStart: true,
		IsSystemLocked:      domain.Bool(false),
	}
}

// SetTarget validates and builds a target change
func SetTarget(target int) (domain.SettingsPatch, error) {
	if target <= 0 {
		return domain.SettingsPatch{}, fmt.Errorf("target count must be positive, got %d", target)
	}
	return domain.SettingsPatch{TargetCount: domain.Int(target)}, nil
}
