package conversion

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/dmitrijs2005/photoai/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPayload_Shape(t *testing.T) {
	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.FixedZone("CET", 3600))
	e := Event{
		Type:      EventLead,
		Email:     "a@x.com",
		FirstName: "Ada",
		Timestamp: ts,
		Attribution: Attribution{
			IP:        "203.0.113.7",
			UserAgent: "Mozilla/5.0",
			FBP:       "fb.1.1.1",
			UTM:       UTM{Source: "meta", Campaign: "spring"},
		},
	}

	raw, err := json.Marshal(BuildPayload(e, "USD"))
	require.NoError(t, err)

	var got map[string]map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	body, ok := got["body"]
	require.True(t, ok)

	for _, k := range []string{"first_name", "last_name", "email", "phone", "ip", "user_agent", "fbp", "fbc", "created_at", "amount", "currency", "event_id"} {
		assert.Contains(t, body, k)
	}
	assert.Equal(t, "Lead", body["event_id"])
	assert.Equal(t, "USD", body["currency"])
	assert.Equal(t, "2026-03-01T09:00:00Z", body["created_at"])
	assert.Equal(t, "meta", body["utm_source"])
	assert.Equal(t, "spring", body["utm_campaign"])
	assert.NotContains(t, body, "utm_medium")
}

func TestBuildPayload_EventIDOverride(t *testing.T) {
	p := BuildPayload(Event{Type: EventCompleteRegistration, EventID: "reg-42", Currency: "EUR"}, "USD")
	assert.Equal(t, "reg-42", p.Body.EventID)
	assert.Equal(t, "EUR", p.Body.Currency)

	p = BuildPayload(Event{Type: EventCompleteRegistration}, "USD")
	assert.Equal(t, "CompleteRegistration", p.Body.EventID)
	assert.NotEmpty(t, p.Body.CreatedAt)
}

func TestNewProfileEvent_PrefersProfileFields(t *testing.T) {
	now := time.Now()
	p := &models.Profile{ID: "u1", Email: "a@x.com", FirstName: "Ada"}
	attr := Attribution{FirstName: "Grace", LastName: "Hopper", Phone: "+100"}

	e := NewProfileEvent(EventLead, p, attr, now)
	assert.Equal(t, "Ada", e.FirstName)
	assert.Equal(t, "Hopper", e.LastName)
	assert.Equal(t, "+100", e.Phone)
	assert.Equal(t, "u1", e.ExternalID)
	assert.Equal(t, now, e.Timestamp)
}
