package domain

// CampaignStatus is the public view of the settings. It never carries the
// admin credential.
type CampaignStatus struct {
	State                CampaignState   `json:"state"`
	TargetCount          int             `json:"targetCount"`
	TotalCollected       int             `json:"totalCollected"`
	SpotsRemaining       int             `json:"spotsRemaining"`
	IsCountdownActive    bool            `json:"isCountdownActive"`
	CountdownStartTime   *int64          `json:"countdownStartTime"`
	IsSystemLocked       bool            `json:"isSystemLocked"`
	Countdown            CountdownStatus `json:"countdown"`
	CountdownRemainingMs int64           `json:"countdownRemainingMs"`
	CloudEnabled         bool            `json:"cloudEnabled"`
}

// NewCampaignStatus builds the public view of settings
func NewCampaignStatus(s Settings, countdown CountdownStatus, cloudEnabled bool) CampaignStatus {
	remaining := s.TargetCount - s.TotalCollected
	if remaining < 0 {
		remaining = 0
	}
	return CampaignStatus{
		State:                s.State(),
		TargetCount:          s.TargetCount,
		TotalCollected:       s.TotalCollected,
		SpotsRemaining:       remaining,
		IsCountdownActive:    s.IsCountdownActive,
		CountdownStartTime:   s.CountdownStartTime,
		IsSystemLocked:       s.IsSystemLocked,
		Countdown:            countdown,
		CountdownRemainingMs: countdown.RemainingMs,
		CloudEnabled:         cloudEnabled,
	}
}

// Dashboard is the admin overview
type Dashboard struct {
	Status        CampaignStatus `json:"status"`
	StandardCount int            `json:"standardCount"`
	OverflowCount int            `json:"overflowCount"`
	BatchCount    int            `json:"batchCount"`
	Contacts      []Contact      `json:"contacts"`
}
