// file: services/errors.go
package services

import (
	"errors"
	"fmt"
)

// Sentinel errors for conditions that carry no extra data. Message text
// is what the API returns, so it stays user-facing and stable.
var (
	ErrUserNotFound       = errors.New("User does not exist")
	ErrCredentialMismatch = errors.New("Credentials does not match")
	ErrStoreUnavailable   = errors.New("database")

	ErrChallengeNotFound = errors.New("Challenge does not exist")
	ErrChallengeHidden   = errors.New("Improper challengeid")
	ErrWrongCategory     = errors.New("Improper request for challenge")
	ErrAlreadySolved     = errors.New("User has already solved this challenge")
	ErrNoContainer       = errors.New("User does not have a container")

	ErrTemplateMissing       = errors.New("payload template missing")
	ErrTemplateMalformed     = errors.New("payload template malformed")
	ErrMappingFileUnreadable = errors.New("image mapping file unreadable")
	ErrMappingFileMalformed  = errors.New("image mapping file malformed")

	ErrPortRangeExhausted  = errors.New("no free port in the configured range")
	ErrRecordNotFound      = errors.New("record not found")
	ErrProvisionInProgress = errors.New("another provisioning request for this user is in progress")
	ErrPartialCleanup      = errors.New("container deleted but port not updated")
)

// AlreadyProvisionedError carries the existing connection so the handler
// can echo it back with the conflict.
type AlreadyProvisionedError struct {
	Connection string
}

func (e *AlreadyProvisionedError) Error() string {
	return "User already has a container. Delete it first before creating a new one"
}

// ImageNotMappedError: challenge has no image in the static mapping.
type ImageNotMappedError struct {
	ChallengeID uint32
}

func (e *ImageNotMappedError) Error() string {
	return fmt.Sprintf("image id for challenge %d does not exist", e.ChallengeID)
}

// TransportError is a network-level failure talking to the backend. The
// wrapped error never reaches API responses.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("could not reach backend during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// BackendError is a non-success status from the orchestration backend.
type BackendError struct {
	Op     string
	Status int
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("could not %s container -> status_code %d", e.Op, e.Status)
}

// MalformedResponseError: the backend answered with a success status but
// the body did not contain what the operation needs.
type MalformedResponseError struct {
	Op string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("bad response from the backend during %s", e.Op)
}

// PersistenceError is a store write that failed partway through the
// lifecycle, after validation already passed.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("could not %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
