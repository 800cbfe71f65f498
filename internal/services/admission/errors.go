package admission

import "fmt"

// Code is the stable, client-facing rejection code.
type Code string

const (
	CodeInvalidURL      Code = "INVALID_URL"
	CodeInvalidProtocol Code = "INVALID_PROTOCOL"
	CodePrivateNetwork  Code = "PRIVATE_NETWORK"
	CodeDailyLimit      Code = "DAILY_LIMIT_EXCEEDED"
	CodeDuplicateScan   Code = "DUPLICATE_SCAN"
	CodePlanLimit       Code = "PLAN_LIMIT_EXCEEDED"
	CodeInternal        Code = "INTERNAL_ERROR"
)

// Error is a categorized admission rejection. Everything except
// CodeInternal is client-correctable and carries no retry semantics on the
// server side.
type Error struct {
	Code    Code
	Message string
	Details map[string]any
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func reject(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

func rejectDetails(code Code, msg string, details map[string]any) *Error {
	return &Error{Code: code, Message: msg, Details: details}
}
