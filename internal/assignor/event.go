package assignor

import (
	"time"
)

// AuthEvent is the user record snapshot delivered with a
// providers/firebase.auth/eventTypes/user.create event.
type AuthEvent struct {
	UID           string         `json:"uid"`
	Email         string         `json:"email,omitempty"` // empty when the sign-in method carries no email
	EmailVerified bool           `json:"emailVerified,omitempty"`
	DisplayName   string         `json:"displayName,omitempty"`
	PhotoURL      string         `json:"photoURL,omitempty"`
	PhoneNumber   string         `json:"phoneNumber,omitempty"`
	Disabled      bool           `json:"disabled,omitempty"`
	ProviderData  []ProviderInfo `json:"providerData,omitempty"`
	Metadata      UserMetadata   `json:"metadata"`
}

// ProviderInfo describes one identity provider linked at creation time
type ProviderInfo struct {
	ProviderID  string `json:"providerId"` // "google.com", "password", ...
	UID         string `json:"uid"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
}

// UserMetadata holds the account timestamps
type UserMetadata struct {
	CreatedAt      time.Time `json:"createdAt"`
	LastSignedInAt time.Time `json:"lastSignedInAt"`
}
