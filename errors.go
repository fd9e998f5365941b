package identity

import (
	"github.com/goliatone/go-errors"
)

// ErrUserAlreadyExists is returned when the email de-duplication key collides
var ErrUserAlreadyExists = errors.New("a user with that email already exists", errors.CategoryConflict).
	WithTextCode("USER_ALREADY_EXISTS").
	WithCode(errors.CodeConflict)

// ErrInvalidCredentials is the single error for unknown email and wrong
// password alike, so callers cannot enumerate accounts by error shape
var ErrInvalidCredentials = errors.New("invalid credentials", errors.CategoryAuth).
	WithTextCode("INVALID_CREDENTIALS").
	WithCode(errors.CodeUnauthorized)

// ErrUnauthenticated covers missing, unknown, and expired session
// credentials; resolution never distinguishes between them
var ErrUnauthenticated = errors.New("missing or invalid session credential", errors.CategoryAuth).
	WithTextCode("UNAUTHENTICATED").
	WithCode(errors.CodeUnauthorized)

// ErrForbidden means the credential resolved but the account fails an
// active/verified requirement
var ErrForbidden = errors.New("account does not meet access requirements", errors.CategoryAuthz).
	WithTextCode("FORBIDDEN").
	WithCode(errors.CodeForbidden)

// ErrMissingBootstrapConfig aborts startup when the administrator
// bootstrap values are absent from the environment
var ErrMissingBootstrapConfig = errors.New("missing required bootstrap configuration", errors.CategoryBadInput).
	WithTextCode("MISSING_BOOTSTRAP_CONFIG").
	WithCode(errors.CodeBadRequest)

// ErrNoEmptyString is returned when hashing an empty secret
var ErrNoEmptyString = errors.New("refusing to hash an empty string", errors.CategoryValidation).
	WithTextCode("EMPTY_SECRET")

// ErrMismatchedHashAndPassword is the hash verification failure
var ErrMismatchedHashAndPassword = errors.New("password does not match", errors.CategoryAuth).
	WithTextCode("PASSWORD_MISMATCH")

// IsAlreadyExists will check for the email collision error
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrUserAlreadyExists)
}

// IsUnauthenticated will check for the unauthenticated outcome
func IsUnauthenticated(err error) bool {
	return errors.Is(err, ErrUnauthenticated)
}

// IsForbidden will check for the forbidden outcome
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}
