package domain

import "time"

// EventType names a change broadcast to other sessions
type EventType string

const (
	EventContactAdded    EventType = "contactAdded"
	EventSettingsUpdated EventType = "settingsUpdated"
	EventGroupsUpdated   EventType = "groupsUpdated"
	EventReset           EventType = "reset"
)

// Event is an advisory wake-up signal. Receivers re-fetch state instead of
// trusting anything in it.
type Event struct {
	Type   EventType `json:"type"`
	At     time.Time `json:"at"`
	Source string    `json:"source,omitempty"`
}
