package portal

import (
	goerrors "github.com/goliatone/go-errors"
)

// Text codes attached to our rich errors so templates and API
// consumers can switch on a stable identifier.
const (
	TextCodeMissingCredentials = "MISSING_CREDENTIALS"
	TextCodeUserNotFound       = "USER_NOT_FOUND"
	TextCodeAccountLocked      = "ACCOUNT_LOCKED"
	TextCodeIncorrectPassword  = "INCORRECT_PASSWORD"
	TextCodeDuplicateEmail     = "DUPLICATE_EMAIL"
	TextCodeValidation         = "VALIDATION_FAILED"
	TextCodeForbidden          = "FORBIDDEN"
	TextCodeNotAuthenticated   = "NOT_AUTHENTICATED"
	TextCodeEmptyPassword      = "EMPTY_PASSWORD"
	TextCodePersistence        = "PERSISTENCE_FAILURE"
)

// ErrMissingCredentials is returned when either login field is absent
var ErrMissingCredentials = goerrors.New("email and password are required", goerrors.CategoryValidation).
	WithTextCode(TextCodeMissingCredentials).
	WithCode(goerrors.CodeBadRequest)

// ErrUserNotFound is the error we return when no record matches the email
var ErrUserNotFound = goerrors.New("user not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeUserNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrAccountLocked is returned for locked accounts before any password
// comparison happens; a locked account never reveals password correctness
var ErrAccountLocked = goerrors.New("account is locked due to too many failed attempts", goerrors.CategoryAuth).
	WithTextCode(TextCodeAccountLocked).
	WithCode(goerrors.CodeUnauthorized)

// ErrIncorrectPassword is the error for a failed hash comparison
var ErrIncorrectPassword = goerrors.New("incorrect password", goerrors.CategoryAuth).
	WithTextCode(TextCodeIncorrectPassword).
	WithCode(goerrors.CodeUnauthorized)

// ErrDuplicateEmail is returned when registering an email that already
// has a record
var ErrDuplicateEmail = goerrors.New("email already registered", goerrors.CategoryConflict).
	WithTextCode(TextCodeDuplicateEmail).
	WithCode(goerrors.CodeConflict)

// ErrForbidden is the authorization failure for non admin sessions
var ErrForbidden = goerrors.New("access denied", goerrors.CategoryAuthz).
	WithTextCode(TextCodeForbidden).
	WithCode(goerrors.CodeForbidden)

// ErrNotAuthenticated is a navigational outcome, not a hard error; the
// guard turns it into a redirect to the login form
var ErrNotAuthenticated = goerrors.New("not authenticated", goerrors.CategoryAuth).
	WithTextCode(TextCodeNotAuthenticated).
	WithCode(goerrors.CodeUnauthorized)

// ErrNoEmptyString rejects empty passwords before hashing
var ErrNoEmptyString = goerrors.New("password must not be empty", goerrors.CategoryBadInput).
	WithTextCode(TextCodeEmptyPassword).
	WithCode(goerrors.CodeBadRequest)

// ValidationError builds a field level validation failure.
func ValidationError(msg string, fields map[string]any) *goerrors.Error {
	return goerrors.New(msg, goerrors.CategoryValidation).
		WithTextCode(TextCodeValidation).
		WithCode(goerrors.CodeBadRequest).
		WithMetadata(fields)
}

// PersistenceError wraps store failures. Controllers log these and
// render a generic message; the cause is never shown to the user.
func PersistenceError(err error, msg string) *goerrors.Error {
	return goerrors.Wrap(err, goerrors.CategoryInternal, msg).
		WithTextCode(TextCodePersistence).
		WithCode(goerrors.CodeInternal)
}

// IsDomainError reports whether err belongs to the recoverable domain
// taxonomy: these are rendered back into the originating form rather
// than surfacing as server faults.
func IsDomainError(err error) bool {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return false
	}

	switch rich.TextCode {
	case TextCodeMissingCredentials,
		TextCodeUserNotFound,
		TextCodeAccountLocked,
		TextCodeIncorrectPassword,
		TextCodeDuplicateEmail,
		TextCodeValidation,
		TextCodeEmptyPassword:
		return true
	}
	return false
}

// UserMessage returns the message safe to render for err. Domain
// errors surface their own message, everything else is masked.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	if IsDomainError(err) {
		var rich *goerrors.Error
		if goerrors.As(err, &rich) {
			return rich.Message
		}
	}

	return "Something went wrong. Try again."
}
