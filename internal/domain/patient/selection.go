package patient

import (
	"time"

	"github.com/google/uuid"
)

const MaxRecent = 10

// Selection is a user's active patient at one site plus their recently
// viewed patients, most recent first.
type Selection struct {
	UserID    string      `json:"user_id"`
	SiteID    string      `json:"site_id"`
	PatientID *uuid.UUID  `json:"patient_id,omitempty"`
	Recent    []uuid.UUID `json:"recent"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Select returns sel with id as the active patient and at the head of the
// recent list. Earlier occurrences of id are dropped and the list is capped
// at MaxRecent.
func Select(sel Selection, id uuid.UUID) Selection {
	recent := make([]uuid.UUID, 0, MaxRecent)
	recent = append(recent, id)
	for _, r := range sel.Recent {
		if len(recent) == MaxRecent {
			break
		}
		if r != id {
			recent = append(recent, r)
		}
	}
	sel.PatientID = &id
	sel.Recent = recent
	return sel
}

// Forget removes id from sel, clearing the active patient when it matches.
func Forget(sel Selection, id uuid.UUID) Selection {
	recent := make([]uuid.UUID, 0, len(sel.Recent))
	for _, r := range sel.Recent {
		if r != id {
			recent = append(recent, r)
		}
	}
	if sel.PatientID != nil && *sel.PatientID == id {
		sel.PatientID = nil
	}
	sel.Recent = recent
	return sel
}
