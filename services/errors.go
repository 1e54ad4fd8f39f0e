// services/errors.go - Domain error kinds
package services

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// Kind classifies a domain error so the HTTP layer can pick a status code.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuthentication
	KindAuthorization
	KindNotFound
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Error is a user-safe domain error. Its message may be shown to clients.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// ValidationError builds an ad-hoc validation failure.
func ValidationError(msg string) *Error {
	return newError(KindValidation, msg)
}

// KindOf returns the kind of the first *Error in err's chain, or
// KindInternal for anything else.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

var (
	// authentication
	ErrUserNotFound = newError(KindAuthentication, "User does not exist")
	ErrBadPassword  = newError(KindAuthentication, "Password incorrect")
	ErrInvalidToken = newError(KindAuthentication, "Invalid or expired token")
	ErrMissingToken = newError(KindAuthentication, "Missing authorization header")

	// site administration
	ErrSiteAdminRequired = newError(KindAuthorization, "Access denied. Admin privileges required.")

	// registration and accounts
	ErrDuplicateUsername = newError(KindConflict, "Username already exists")
	ErrUnknownUser       = newError(KindNotFound, "User not found")

	// groups
	ErrGroupNotFound       = newError(KindNotFound, "Group not found")
	ErrInvalidInviteCode   = newError(KindNotFound, "Invalid invite code")
	ErrAlreadyMember       = newError(KindConflict, "You're already a member of this group")
	ErrGroupFull           = newError(KindConflict, "Group is full")
	ErrNotMember           = newError(KindAuthorization, "You are not a member of this group")
	ErrNotGroupAdmin       = newError(KindAuthorization, "Admin access required")
	ErrLastAdmin           = newError(KindConflict, "You are the only admin. Promote someone else first.")
	ErrCannotRemoveSelf    = newError(KindValidation, "Cannot remove yourself. Use 'Leave Group' instead.")
	ErrTargetIsAdmin       = newError(KindConflict, "Cannot remove admin. Demote first.")
	ErrInvalidRole         = newError(KindValidation, "Invalid role")
	ErrLastAdminProtected  = newError(KindConflict, "Cannot demote last admin.")
	ErrTargetNotMember     = newError(KindNotFound, "User is not a member of this group")
	ErrGroupNameRequired   = newError(KindValidation, "Group name is required")
	ErrGroupNameTooLong    = newError(KindValidation, "Group name must be 50 characters or less")
	ErrInviteCodeExhausted = newError(KindInternal, "could not allocate a unique invite code")

	// scores and scopes
	ErrInvalidScore    = newError(KindValidation, "Score must be 1-6, or 8 for a failed puzzle")
	ErrInvalidDate     = newError(KindValidation, "Date must be formatted YYYY-MM-DD")
	ErrFutureDate      = newError(KindValidation, "Cannot record a score for a future date")
	ErrInvalidTimezone = newError(KindValidation, "Invalid timezone")
	ErrInvalidScope    = newError(KindValidation, "Invalid scope type")
	ErrGroupIDRequired = newError(KindValidation, "Group ID required for group scope")
)

// isUniqueViolation reports whether err came from a unique index.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
