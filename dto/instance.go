// file: dto/instance.go
package dto

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// Identity headers the surrounding platform forwards with every instance
// request.
const (
	HeaderUserID      = "userId"
	HeaderUsername    = "userName"
	HeaderUserEmail   = "userEmail"
	HeaderChallengeID = "challengeId"
)

// InstanceRequest is a fully validated instance request. Credential
// matching against the Users table happens later in the service; this
// type only guarantees the fields are well-formed.
type InstanceRequest struct {
	UserID      uint32
	Username    string
	Email       string
	ChallengeID uint32
}

type MissingFieldError struct{ Field string }

func (e *MissingFieldError) Error() string { return e.Field + " header missing" }

type EmptyFieldError struct{ Field string }

func (e *EmptyFieldError) Error() string { return e.Field + " cannot be empty" }

type NotIntegerError struct{ Field string }

func (e *NotIntegerError) Error() string { return e.Field + " must be an integer" }

type NegativeIntegerError struct{ Field string }

func (e *NegativeIntegerError) Error() string { return e.Field + " cannot be negative" }

var (
	ErrEmailHasSpaces = errors.New("Useremail cannot contain spaces")
	ErrInvalidEmail   = errors.New("Invalid Useremail")
)

// ParseInstanceHeaders validates the four identity headers and returns a
// typed request. Pure: no lookups, no side effects.
func ParseInstanceHeaders(h http.Header) (*InstanceRequest, error) {
	fields := []struct {
		header string
		name   string
	}{
		{HeaderUserID, "Userid"},
		{HeaderUsername, "Username"},
		{HeaderUserEmail, "Useremail"},
		{HeaderChallengeID, "Challengeid"},
	}

	values := make(map[string]string, len(fields))
	for _, f := range fields {
		if h.Values(f.header) == nil {
			return nil, &MissingFieldError{Field: f.name}
		}
		values[f.name] = h.Get(f.header)
	}
	for _, f := range fields {
		if values[f.name] == "" {
			return nil, &EmptyFieldError{Field: f.name}
		}
	}

	userID, err := parseID(values["Userid"], "Userid")
	if err != nil {
		return nil, err
	}

	email := values["Useremail"]
	if strings.Contains(email, " ") {
		return nil, ErrEmailHasSpaces
	}
	if strings.Count(email, "@") != 1 {
		return nil, ErrInvalidEmail
	}

	challengeID, err := parseID(values["Challengeid"], "Challengeid")
	if err != nil {
		return nil, err
	}

	return &InstanceRequest{
		UserID:      userID,
		Username:    values["Username"],
		Email:       email,
		ChallengeID: challengeID,
	}, nil
}

func parseID(raw, name string) (uint32, error) {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, &NotIntegerError{Field: name}
	}
	if n < 0 {
		return 0, &NegativeIntegerError{Field: name}
	}
	if n > int64(^uint32(0)) {
		return 0, &NotIntegerError{Field: name}
	}
	return uint32(n), nil
}

// IsValidationError reports whether err came out of header validation,
// so handlers can map it to a 400 without enumerating every type.
func IsValidationError(err error) bool {
	var missing *MissingFieldError
	var empty *EmptyFieldError
	var notInt *NotIntegerError
	var negative *NegativeIntegerError
	return errors.As(err, &missing) || errors.As(err, &empty) ||
		errors.As(err, &notInt) || errors.As(err, &negative) ||
		errors.Is(err, ErrEmailHasSpaces) || errors.Is(err, ErrInvalidEmail)
}

// String form used in container names and logs.
func (r *InstanceRequest) String() string {
	return fmt.Sprintf("user=%d challenge=%d", r.UserID, r.ChallengeID)
}
