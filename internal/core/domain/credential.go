package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// SignInMode selects the sign-in algorithm.
type SignInMode string

const (
	ModeEmail        SignInMode = "email"
	ModeUsername     SignInMode = "username"
	ModePhone        SignInMode = "phone"
	ModePasswordless SignInMode = "passwordless"
	ModeSocial       SignInMode = "social"
)

// Credential is the closed set of things a user can submit to sign in.
// Implementations live in this package only; callers switch on the concrete
// type.
type Credential interface {
	Mode() SignInMode
	Validate() error
	credential()
}

type EmailCredential struct {
	Email    string
	Password string
}

type UsernameCredential struct {
	Username string
	Password string
}

// PhoneCredential carries an OTP only on the second submission of a phone
// sign-in; the first submission dispatches the code.
type PhoneCredential struct {
	Phone string
	OTP   string
}

type PasswordlessCredential struct {
	Email string
}

// SocialCredential carries the access token returned by the provider popup.
// An empty token means the user closed the popup.
type SocialCredential struct {
	Provider    string
	AccessToken string
}

func (EmailCredential) Mode() SignInMode        { return ModeEmail }
func (UsernameCredential) Mode() SignInMode     { return ModeUsername }
func (PhoneCredential) Mode() SignInMode        { return ModePhone }
func (PasswordlessCredential) Mode() SignInMode { return ModePasswordless }
func (SocialCredential) Mode() SignInMode       { return ModeSocial }

func (EmailCredential) credential()        {}
func (UsernameCredential) credential()     {}
func (PhoneCredential) credential()        {}
func (PasswordlessCredential) credential() {}
func (SocialCredential) credential()       {}

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

func (c EmailCredential) Validate() error {
	if err := requireEmail(c.Email); err != nil {
		return err
	}
	return requireField("password", c.Password)
}

func (c UsernameCredential) Validate() error {
	if err := requireField("username", c.Username); err != nil {
		return err
	}
	return requireField("password", c.Password)
}

func (c PhoneCredential) Validate() error {
	if err := requireField("phone", c.Phone); err != nil {
		return err
	}
	if strings.TrimPrefix(NormalizePhone(c.Phone), "+") == "" {
		return fmt.Errorf("%w: phone must be a valid phone number", ErrValidation)
	}
	return nil
}

func (c PasswordlessCredential) Validate() error {
	return requireEmail(c.Email)
}

func (c SocialCredential) Validate() error {
	switch c.Provider {
	case ProviderGoogle, ProviderFacebook:
		return nil
	case "":
		return fmt.Errorf("%w: provider is required", ErrValidation)
	default:
		return fmt.Errorf("%w: unknown provider %q", ErrValidation, c.Provider)
	}
}

func requireField(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s is required", ErrValidation, name)
	}
	return nil
}

func requireEmail(email string) error {
	if err := requireField("email", email); err != nil {
		return err
	}
	if !emailPattern.MatchString(strings.TrimSpace(email)) {
		return fmt.Errorf("%w: email must be a valid email", ErrValidation)
	}
	return nil
}

// NormalizeEmail lower-cases and trims an e-mail address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizePhone strips formatting characters, keeping a leading '+'.
func NormalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	var b strings.Builder
	for i, r := range phone {
		if (r == '+' && i == 0) || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
