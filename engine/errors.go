package engine

// Code is a wire-stable rejection code. The gateway forwards engine codes
// to clients verbatim.
type Code string

const (
	CodeNotInGame        Code = "NOT_IN_GAME"
	CodeNotYourTurn      Code = "NOT_YOUR_TURN"
	CodeSlapWindowActive Code = "SLAP_WINDOW_ACTIVE"
	CodeNoSlapWindow     Code = "NO_SLAP_WINDOW"
	CodeAlreadySlapped   Code = "ALREADY_SLAPPED"
	CodeInternalError    Code = "INTERNAL_ERROR"
)

// Error is a rejection carrying its wire code.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return string(e.Code) + ": " + e.Message
}

func errCode(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// CodeOf extracts the rejection code from an engine error, or
// INTERNAL_ERROR for anything else.
func CodeOf(err error) Code {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return CodeInternalError
}
