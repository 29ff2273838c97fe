package auth

import "time"

// Profile is the signed-in account as returned by the profile endpoint.
type Profile struct {
	ID              int64     `json:"id"`
	Username        string    `json:"username"`
	Email           string    `json:"email"`
	PhoneNumber     string    `json:"phone_number"`
	FirstName       string    `json:"first_name"`
	LastName        string    `json:"last_name"`
	Role            Role      `json:"user_type"`
	DateJoined      time.Time `json:"date_joined"`
	IsEmailVerified bool      `json:"is_email_verified"`
}

// DisplayName prefers the full name and falls back to the username.
func (p Profile) DisplayName() string {
	switch {
	case p.FirstName != "" && p.LastName != "":
		return p.FirstName + " " + p.LastName
	case p.FirstName != "":
		return p.FirstName
	}
	return p.Username
}

// ProfileUpdate carries the editable profile fields. Empty fields are
// left unchanged.
type ProfileUpdate struct {
	Username    string `json:"username,omitempty"`
	Email       string `json:"email,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
}

// UserType is the role breakdown the backend reports for the caller.
type UserType struct {
	Role       Role `json:"user_type"`
	IsAdmin    bool `json:"is_admin"`
	IsBusiness bool `json:"is_business"`
	IsClient   bool `json:"is_client"`
}

// Registration is a sign-up request. Password2 must repeat Password.
type Registration struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	Password2   string `json:"password2"`
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
	Role        Role   `json:"user_type"`
}

// Registered is the backend's answer to a sign-up.
type Registered struct {
	Message          string `json:"message"`
	Email            string `json:"email"`
	VerificationSent bool   `json:"verification_sent"`
}

// Message is the generic acknowledgement of the accounts endpoints.
type Message struct {
	Message         string   `json:"message"`
	EmailSent       bool     `json:"email_sent,omitempty"`
	AlreadyVerified bool     `json:"already_verified,omitempty"`
	User            *Profile `json:"user,omitempty"`
}

// VerificationStatus reports whether an address has been confirmed.
type VerificationStatus struct {
	Email      string `json:"email"`
	IsVerified bool   `json:"is_verified"`
	IsActive   bool   `json:"is_active"`
}

// PasswordStrength is the backend's verdict on a candidate password.
type PasswordStrength struct {
	IsValid       bool            `json:"is_valid"`
	Errors        []string        `json:"errors"`
	StrengthScore int             `json:"strength_score"`
	Requirements  map[string]bool `json:"requirements"`
}
