package campaign

import (
	"fmt"

	"vcf-drop/internal/domain"
)

// NormalizeGroups enforces the single-active rule on a batch: when several
// entries are active the last one wins.
func NormalizeGroups(groups []domain.GroupLink) []domain.GroupLink {
	out := domain.CloneGroups(groups)
	winner := -1
	for i := range out {
		if out[i].IsActive {
			winner = i
		}
	}
	for i := range out {
		out[i].IsActive = i == winner
	}
	return out
}

// ActivateGroup marks id active and deactivates every other group
func ActivateGroup(groups []domain.GroupLink, id string) ([]domain.GroupLink, error) {
	out := domain.CloneGroups(groups)
	found := false
	for i := range out {
		out[i].IsActive = out[i].ID == id
		found = found || out[i].IsActive
	}
	if !found {
		return nil, fmt.Errorf("group %q not found", id)
	}
	return out, nil
}

// ActiveGroup returns the active group, else the first, else false
func ActiveGroup(groups []domain.GroupLink) (domain.GroupLink, bool) {
	for _, g := range groups {
		if g.IsActive {
			return g, true
		}
	}
	if len(groups) > 0 {
		return groups[0], true
	}
	return domain.GroupLink{}, false
}

// ValidateGroups checks ids are present and unique
func ValidateGroups(groups []domain.GroupLink) error {
	seen := make(map[string]struct{}, len(groups))
	for _, g := range groups {
		if g.ID == "" {
			return fmt.Errorf("group id is required")
		}
		if _, dup := seen[g.ID]; dup {
			return fmt.Errorf("duplicate group id %q", g.ID)
		}
		seen[g.ID] = struct{}{}
	}
	return nil
}
