package domain

// GroupLink is an invite link shown to accepted visitors. At most one is active.
type GroupLink struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	URL      string `json:"url"`
	Emoji    string `json:"emoji"`
	IsActive bool   `json:"isActive"`
}

// Seed holds the records created on first run when absent
type Seed struct {
	Settings Settings
	Groups   []GroupLink
}

// DefaultSeed returns the seed for a fresh campaign. credential is stored as
// given; callers pass a hash.
func DefaultSeed(targetCount int, credential string, group GroupLink) Seed {
	if targetCount <= 0 {
		targetCount = DefaultTargetCount
	}
	if group.ID == "" {
		group.ID = DefaultGroupID
	}
	if group.Name == "" {
		group.Name = DefaultGroupName
	}
	if group.URL == "" {
		group.URL = DefaultGroupURL
	}
	if group.Emoji == "" {
		group.Emoji = DefaultGroupEmoji
	}
	group.IsActive = true

	return Seed{
		Settings: Settings{
			TargetCount:     targetCount,
			AdminCredential: credential,
		},
		Groups: []GroupLink{group},
	}
}

// CloneGroups returns a copy of groups
func CloneGroups(groups []GroupLink) []GroupLink {
	out := make([]GroupLink, len(groups))
	copy(out, groups)
	return out
}
