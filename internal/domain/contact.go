package domain

// Contact is one accepted submission. Field names are shared with the hosted
// table schema and must not change.
type Contact struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	Timestamp  int64  `json:"timestamp"` // epoch milliseconds
	IsOverflow bool   `json:"isOverflow"`
}

// CountOverflow returns how many contacts are standard and how many overflow
func CountOverflow(contacts []Contact) (standard, overflow int) {
	for _, c := range contacts {
		if c.IsOverflow {
			overflow++
		} else {
			standard++
		}
	}
	return standard, overflow
}
