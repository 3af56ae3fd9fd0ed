package user

import "time"

// User is a registered account stored by the auth module.
type User struct {
	ID           string    `gorm:"primarykey;size:36" json:"id"`
	Email        string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	DisplayName  string    `gorm:"size:100" json:"display_name"`
	AvatarURL    string    `gorm:"size:500" json:"avatar_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName returns the table name for the User model.
func (User) TableName() string {
	return "users"
}

// Identity projects the account onto the fields the identity session
// exposes to the rest of the process.
func (u *User) Identity() *Identity {
	return &Identity{
		ID:          u.ID,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURL,
	}
}

// Identity is the authenticated principal exposed by the identity session.
// It is the owner scope for every task query.
type Identity struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// TokenPair holds the access and refresh tokens issued on sign-in.
type TokenPair struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	ExpiresIn    time.Duration `json:"expires_in"`
	TokenType    string        `json:"token_type"`
}

// Claims are the validated token claims attached to a request.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}
