package models

import "time"

// Group is a set of participants sharing expenses.
type Group struct {
	// ID is the unique identifier for the group (UUID format).
	ID string

	// Name is the display name of the group (e.g., "Roommates").
	Name string

	// Information is optional free text shown with the group.
	Information string

	// Currency is the display symbol used for amounts (default "$").
	Currency string

	// CurrencyCode is the optional ISO 4217 code of the group currency.
	CurrencyCode string

	// Participants are the members expenses can be paid by or split with.
	Participants []Participant

	// CreatedAt is when the group was created.
	CreatedAt time.Time
}

// Participant is one member of a group.
type Participant struct {
	ID      string
	GroupID string
	Name    string
}

// HasParticipant reports whether id belongs to one of the group's participants.
func (g *Group) HasParticipant(id string) bool {
	for _, p := range g.Participants {
		if p.ID == id {
			return true
		}
	}
	return false
}
