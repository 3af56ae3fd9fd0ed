package events

import (
	"time"

	"github.com/go-monolith/mono/pkg/helper"
)

// UserSignedInEvent is emitted when the identity session gains an identity.
type UserSignedInEvent struct {
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	SignedInAt  time.Time `json:"signed_in_at"`
}

// UserSignedInV1 is the typed event definition for sign-in.
// Subject: events.auth.v1.user-signed-in
var UserSignedInV1 = helper.EventDefinition[UserSignedInEvent](
	"auth", "UserSignedIn", "v1",
)

// UserSignedOutEvent is emitted when the identity session loses its identity.
type UserSignedOutEvent struct {
	UserID      string    `json:"user_id"`
	SignedOutAt time.Time `json:"signed_out_at"`
}

// UserSignedOutV1 is the typed event definition for sign-out.
// Subject: events.auth.v1.user-signed-out
var UserSignedOutV1 = helper.EventDefinition[UserSignedOutEvent](
	"auth", "UserSignedOut", "v1",
)
