// Package conversion shapes marketing-conversion events and delivers them to
// the downstream webhook off the request path.
package conversion

import (
	"time"

	"github.com/dmitrijs2005/photoai/internal/server/models"
)

type EventType string

const (
	EventLead                 EventType = "Lead"
	EventCompleteRegistration EventType = "CompleteRegistration"
	EventPurchase             EventType = "Purchase"
)

// UTM holds campaign parameters recovered from the referring URL.
type UTM struct {
	Source   string
	Medium   string
	Campaign string
	Term     string
	Content  string
}

// Attribution is request metadata captured at the edge and forwarded with
// every event the request triggers.
type Attribution struct {
	IP        string
	UserAgent string
	FBP       string
	FBC       string
	FirstName string
	LastName  string
	Phone     string
	UTM       UTM
}

// Event is a single conversion to report. It is never persisted.
type Event struct {
	Type        EventType
	Email       string
	ExternalID  string
	FirstName   string
	LastName    string
	Phone       string
	Timestamp   time.Time
	Attribution Attribution
	Amount      float64
	Currency    string
	// EventID overrides the reported event id; the type name is used when empty.
	EventID string
}

// NewProfileEvent builds an event for p. Names and phone come from the
// profile and fall back to what the request supplied.
func NewProfileEvent(t EventType, p *models.Profile, attr Attribution, now time.Time) Event {
	e := Event{
		Type:        t,
		Email:       p.Email,
		ExternalID:  p.ID,
		FirstName:   firstNonEmpty(p.FirstName, attr.FirstName),
		LastName:    firstNonEmpty(p.LastName, attr.LastName),
		Phone:       firstNonEmpty(p.Phone, attr.Phone),
		Timestamp:   now,
		Attribution: attr,
	}
	return e
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
