package domain

import (
	"time"

	"github.com/google/uuid"
)

// RequestRecord holds the customization details a buyer submits after paying.
type RequestRecord struct {
	ID               uuid.UUID `json:"id"`
	UserID           string    `json:"user_id,omitempty"`
	CoupleNames      string    `json:"coupleNames"`
	EventDate        string    `json:"eventDate"`
	EventLocation    string    `json:"eventLocation"`
	SpecialMessage   string    `json:"specialMessage,omitempty"`
	ContactEmail     string    `json:"contactEmail"`
	WhatsappNumber   string    `json:"whatsappNumber"`
	DesiredSubdomain string    `json:"desiredSubdomain,omitempty"`
	SubmittedAt      time.Time `json:"submittedAt"`
}
