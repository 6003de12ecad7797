package validation

import (
	"errors"
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"

	usermodel "github.com/Varun5711/talentlens/internal/models/user"
)

var (
	ErrEmailInvalid       = errors.New("email must be a valid email address")
	ErrPasswordTooShort   = errors.New("password must be at least 8 characters")
	ErrPasswordWeak       = errors.New("password must contain an uppercase letter, a lowercase letter, a number and a special character (@$!%*?&)")
	ErrPasswordInvalid    = errors.New("password may only contain letters, numbers and @$!%*?&")
	ErrLoginPasswordShort = errors.New("password must be at least 6 characters")
	ErrFullNameTooShort   = errors.New("full name must be at least 2 characters")
	ErrFieldTooLong       = errors.New("field must be at most 200 characters")
	ErrNoFields           = errors.New("at least one field must be provided")
)

const maxFieldLength = 200

var (
	passwordCharset = regexp.MustCompile(`^[A-Za-z\d@$!%*?&]+$`)
	hasLower        = regexp.MustCompile(`[a-z]`)
	hasUpper        = regexp.MustCompile(`[A-Z]`)
	hasDigit        = regexp.MustCompile(`\d`)
	hasSpecial      = regexp.MustCompile(`[@$!%*?&]`)
)

func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" || utf8.RuneCountInString(email) > maxFieldLength {
		return ErrEmailInvalid
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return ErrEmailInvalid
	}

	at := strings.LastIndex(email, "@")
	domain := email[at+1:]
	if at < 1 || !strings.Contains(domain, ".") || strings.HasSuffix(domain, ".") || strings.HasPrefix(domain, ".") {
		return ErrEmailInvalid
	}

	return nil
}

// ValidatePassword applies the registration policy.
func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < 8 {
		return ErrPasswordTooShort
	}
	if len(password) > 72 {
		return ErrFieldTooLong
	}
	if !passwordCharset.MatchString(password) {
		return ErrPasswordInvalid
	}
	if !hasLower.MatchString(password) || !hasUpper.MatchString(password) ||
		!hasDigit.MatchString(password) || !hasSpecial.MatchString(password) {
		return ErrPasswordWeak
	}
	return nil
}

func ValidateFullName(name string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(name))
	if n < 2 {
		return ErrFullNameTooShort
	}
	if n > maxFieldLength {
		return ErrFieldTooLong
	}
	return nil
}

func ValidateRegister(req *usermodel.RegisterRequest) error {
	if err := ValidateEmail(req.Email); err != nil {
		return err
	}
	if err := ValidatePassword(req.Password); err != nil {
		return err
	}
	return ValidateFullName(req.FullName)
}

// ValidateLogin only checks shape; the password policy is not applied so
// accounts created under older rules can still sign in.
func ValidateLogin(req *usermodel.LoginRequest) error {
	if err := ValidateEmail(req.Email); err != nil {
		return err
	}
	if utf8.RuneCountInString(req.Password) < 6 {
		return ErrLoginPasswordShort
	}
	if len(req.Password) > 72 {
		return ErrFieldTooLong
	}
	return nil
}

func ValidateUpdateProfile(req *usermodel.UpdateProfileRequest) error {
	if req.Empty() {
		return ErrNoFields
	}
	if req.FullName != nil {
		if err := ValidateFullName(*req.FullName); err != nil {
			return err
		}
	}
	if req.Email != nil {
		if err := ValidateEmail(*req.Email); err != nil {
			return err
		}
	}
	for _, v := range []*string{req.Title, req.Location} {
		if v != nil && utf8.RuneCountInString(*v) > maxFieldLength {
			return ErrFieldTooLong
		}
	}
	return nil
}
