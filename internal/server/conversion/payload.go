package conversion

import "time"

// Payload is the wire shape the conversion webhook expects.
type Payload struct {
	Body PayloadBody `json:"body"`
}

type PayloadBody struct {
	FirstName   string  `json:"first_name"`
	LastName    string  `json:"last_name"`
	Email       string  `json:"email"`
	Phone       string  `json:"phone"`
	IP          string  `json:"ip"`
	UserAgent   string  `json:"user_agent"`
	FBP         string  `json:"fbp"`
	FBC         string  `json:"fbc"`
	CreatedAt   string  `json:"created_at"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	EventID     string  `json:"event_id"`
	ExternalID  string  `json:"external_id,omitempty"`
	UTMSource   string  `json:"utm_source,omitempty"`
	UTMMedium   string  `json:"utm_medium,omitempty"`
	UTMCampaign string  `json:"utm_campaign,omitempty"`
	UTMTerm     string  `json:"utm_term,omitempty"`
	UTMContent  string  `json:"utm_content,omitempty"`
}

// BuildPayload maps e onto the webhook body. defaultCurrency applies when
// the event carries none.
func BuildPayload(e Event, defaultCurrency string) Payload {
	eventID := e.EventID
	if eventID == "" {
		eventID = string(e.Type)
	}
	currency := e.Currency
	if currency == "" {
		currency = defaultCurrency
	}
	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	a := e.Attribution
	return Payload{Body: PayloadBody{
		FirstName:   e.FirstName,
		LastName:    e.LastName,
		Email:       e.Email,
		Phone:       e.Phone,
		IP:          a.IP,
		UserAgent:   a.UserAgent,
		FBP:         a.FBP,
		FBC:         a.FBC,
		CreatedAt:   ts.UTC().Format(time.RFC3339),
		Amount:      e.Amount,
		Currency:    currency,
		EventID:     eventID,
		ExternalID:  e.ExternalID,
		UTMSource:   a.UTM.Source,
		UTMMedium:   a.UTM.Medium,
		UTMCampaign: a.UTM.Campaign,
		UTMTerm:     a.UTM.Term,
		UTMContent:  a.UTM.Content,
	}}
}
