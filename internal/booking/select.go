package booking

import (
	"strings"

	"timpbot/internal/timp"
)

// Criteria describes the one slot shape the bot hunts for.
type Criteria struct {
	Hours          string
	ProfessionalID int
}

// FindSlot returns the first slot matching the criteria with an available
// status. List order is the service's order; first match wins.
func FindSlot(slots []timp.Slot, c Criteria) (timp.Slot, bool) {
	for _, s := range slots {
		if !strings.EqualFold(s.Status, timp.StatusAvailable) {
			continue
		}
		if c.Hours != "" && !strings.EqualFold(strings.TrimSpace(s.Hours), strings.TrimSpace(c.Hours)) {
			continue
		}
		if c.ProfessionalID != 0 && s.Professional.ID != c.ProfessionalID {
			continue
		}
		return s, true
	}
	return timp.Slot{}, false
}
