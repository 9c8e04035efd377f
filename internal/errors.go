package internal

import "errors"

var (
	ErrNotFound           = errors.New("not-found")
	ErrNotAuthorized      = errors.New("not-authorized")
	ErrRoomFull           = errors.New("room-full")
	ErrAlreadyAnswered    = errors.New("already-answered")
	ErrInvalidState       = errors.New("invalid-state")
	ErrPersistenceFailure = errors.New("persistence-failure")
)

var (
	ErrDuplicateCode         = errors.New("duplicate-code")
	ErrAlreadyBoundElsewhere = errors.New("already-bound-elsewhere")
	ErrBadRequest            = errors.New("bad-request")
	ErrRateLimited           = errors.New("rate-limited")
)

// userError attaches the message shown to the player to a sentinel.
type userError struct {
	err error
	msg string
}

func (e *userError) Error() string { return e.err.Error() + ": " + e.msg }
func (e *userError) Unwrap() error { return e.err }

// WithMessage wraps sentinel so that PublicError shows msg to the player.
func WithMessage(sentinel error, msg string) error {
	return &userError{err: sentinel, msg: msg}
}

// ErrorData is the payload of the outbound "error" event.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

var publicErrors = []struct {
	err  error
	code string
	msg  string
}{
	{ErrNotFound, "not_found", "Room not found"},
	{ErrNotAuthorized, "not_authorized", "Only the host can do that"},
	{ErrRoomFull, "room_full", "Room is full"},
	{ErrAlreadyAnswered, "already_answered", "You already answered this round"},
	{ErrInvalidState, "invalid_state", "That action is not available right now"},
	{ErrPersistenceFailure, "persistence_failure", "Could not save your change, please try again"},
	{ErrDuplicateCode, "duplicate_code", "That room code is already in use"},
	{ErrAlreadyBoundElsewhere, "already_in_room", "You are already in another room"},
	{ErrBadRequest, "bad_request", "Invalid request"},
	{ErrRateLimited, "rate_limited", "Slow down"},
}

// PublicError maps err to the payload of a scoped error event. The second
// result is false for unclassified errors, which callers should log.
func PublicError(err error) (ErrorData, bool) {
	for _, pe := range publicErrors {
		if !errors.Is(err, pe.err) {
			continue
		}
		data := ErrorData{Code: pe.code, Message: pe.msg}
		var ue *userError
		if errors.As(err, &ue) {
			data.Message = ue.msg
		}
		return data, true
	}
	return ErrorData{Code: "internal", Message: "Something went wrong"}, false
}
