package domain

import (
	"encoding/json"
	"time"
)

// Defaults used when the campaign is seeded for the first time
const (
	DefaultTargetCount       = 800
	DefaultCountdownDuration = 12 * time.Hour
	DefaultGroupID           = "1"
	DefaultGroupName         = "Main WhatsApp Group"
	DefaultGroupEmoji        = "🚀"
	DefaultGroupURL          = "https://chat.whatsapp.com/GtVgGTFN8t52sAHaR4XAwq?mode=gi_c"
)

// Settings is the campaign singleton.
//
// Invariants: IsCountdownActive and IsSystemLocked are never both true, and
// IsCountdownActive implies CountdownStartTime != nil.
type Settings struct {
	TargetCount        int    `json:"targetCount"`
	TotalCollected     int    `json:"totalCollected"`
	IsCountdownActive  bool   `json:"isCountdownActive"`
	CountdownStartTime *int64 `json:"countdownStartTime"` // epoch milliseconds
	IsSystemLocked     bool   `json:"isSystemLocked"`
	AdminCredential    string `json:"adminCredential"`
}

// CampaignState is the submission-gating state derived from Settings
type CampaignState string

const (
	StateOpen      CampaignState = "open"
	StateCountdown CampaignState = "countdown"
	StateLocked    CampaignState = "locked"
)

// State derives the gating state. Locked wins over a stale countdown flag.
func (s Settings) State() CampaignState {
	switch {
	case s.IsSystemLocked:
		return StateLocked
	case s.IsCountdownActive:
		return StateCountdown
	default:
		return StateOpen
	}
}

// CountdownStartedAt returns the countdown start, if any
func (s Settings) CountdownStartedAt() (time.Time, bool) {
	if s.CountdownStartTime == nil {
		return time.Time{}, false
	}
	return time.UnixMilli(*s.CountdownStartTime), true
}

// SettingsPatch is a partial update. Nil fields are left untouched;
// ClearCountdownStart writes an explicit null to CountdownStartTime.
type SettingsPatch struct {
	TargetCount         *int
	TotalCollected      *int
	IsCountdownActive   *bool
	CountdownStartTime  *int64
	ClearCountdownStart bool
	IsSystemLocked      *bool
	AdminCredential     *string
}

// IsEmpty reports whether the patch changes nothing
func (p SettingsPatch) IsEmpty() bool {
	return p.TargetCount == nil &&
		p.TotalCollected == nil &&
		p.IsCountdownActive == nil &&
		p.CountdownStartTime == nil &&
		!p.ClearCountdownStart &&
		p.IsSystemLocked == nil &&
		p.AdminCredential == nil
}

// Apply merges the patch over s and returns the result
func (p SettingsPatch) Apply(s Settings) Settings {
	if p.TargetCount != nil {
		s.TargetCount = *p.TargetCount
	}
	if p.TotalCollected != nil {
		s.TotalCollected = *p.TotalCollected
	}
	if p.IsCountdownActive != nil {
		s.IsCountdownActive = *p.IsCountdownActive
	}
	if p.ClearCountdownStart {
		s.CountdownStartTime = nil
	} else if p.CountdownStartTime != nil {
		start := *p.CountdownStartTime
		s.CountdownStartTime = &start
	}
	if p.IsSystemLocked != nil {
		s.IsSystemLocked = *p.IsSystemLocked
	}
	if p.AdminCredential != nil {
		s.AdminCredential = *p.AdminCredential
	}
	return s
}

// MarshalJSON renders only the set fields, with an explicit null for a cleared
// countdown start. This is the body sent to the hosted table on update.
func (p SettingsPatch) MarshalJSON() ([]byte, error) {
	m := make(map[string]interface{})
	if p.TargetCount != nil {
		m["targetCount"] = *p.TargetCount
	}
	if p.TotalCollected != nil {
		m["totalCollected"] = *p.TotalCollected
	}
	if p.IsCountdownActive != nil {
		m["isCountdownActive"] = *p.IsCountdownActive
	}
	if p.ClearCountdownStart {
		m["countdownStartTime"] = nil
	} else if p.CountdownStartTime != nil {
		m["countdownStartTime"] = *p.CountdownStartTime
	}
	if p.IsSystemLocked != nil {
		m["isSystemLocked"] = *p.IsSystemLocked
	}
	if p.AdminCredential != nil {
		m["adminCredential"] = *p.AdminCredential
	}
	return json.Marshal(m)
}

// Int returns a pointer to v, for building patches
func Int(v int) *int { return &v }

// Bool returns a pointer to v, for building patches
func Bool(v bool) *bool { return &v }

// Int64 returns a pointer to v, for building patches
func Int64(v int64) *int64 { return &v }

// String returns a pointer to v, for building patches
func String(v string) *string { return &v }
