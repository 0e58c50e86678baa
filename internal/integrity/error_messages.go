package integrity

// error_messages.go maps infrastructure errors to user-facing messages with
// codes for support reference. Validation findings never pass through here;
// they are returned as ValidationIssues.
//
// Error codes by category:
//
//	DB001-DB099     Record store reads (connection, timeout, schema)
//	FILE001-FILE099 Import workbook handling
//	REQ001-REQ099   Request and run handling
//	ERR000          Fallback when no pattern matches
//
// Patterns are matched case-insensitively with strings.Contains and the first
// match wins, so specific patterns come before general ones.

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyQuery is returned by Search when the query is blank.
var ErrEmptyQuery = errors.New("empty search query")

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// Record store
	{
		pattern: "connection refused",
		msg:     UserMessage{Message: "Unable to connect to the CRM database", Action: "Please try again in a few moments", Code: "DB001"},
	},
	{
		pattern: "connection reset",
		msg:     UserMessage{Message: "Database connection was interrupted", Action: "Please try again", Code: "DB002"},
	},
	{
		pattern: "context deadline exceeded",
		msg:     UserMessage{Message: "Reading existing records timed out", Action: "Try again later or validate a smaller file", Code: "DB003"},
	},
	{
		pattern: "timeout",
		msg:     UserMessage{Message: "Reading existing records timed out", Action: "Try again later or validate a smaller file", Code: "DB003"},
	},
	{
		pattern: "too many clients",
		msg:     UserMessage{Message: "The database is busy", Action: "Please wait a moment and try again", Code: "DB004"},
	},
	{
		pattern: "does not exist",
		msg:     UserMessage{Message: "The CRM database schema is incomplete", Action: "Contact support; a table or column is missing", Code: "DB005"},
	},
	{
		pattern: "authentication failed",
		msg:     UserMessage{Message: "The service could not log in to the database", Action: "Contact support to check database credentials", Code: "DB006"},
	},

	// Workbook
	{
		pattern: "file too large",
		msg:     UserMessage{Message: "File exceeds the maximum size limit", Action: "Split the import into smaller files", Code: "FILE001"},
	},
	{
		pattern: "not a valid zip file",
		msg:     UserMessage{Message: "The file is not a valid Excel workbook", Action: "Save the file as .xlsx and try again", Code: "FILE002"},
	},
	{
		pattern: "open workbook",
		msg:     UserMessage{Message: "The file is not a valid Excel workbook", Action: "Save the file as .xlsx and try again", Code: "FILE002"},
	},
	{
		pattern: "no import sheets",
		msg:     UserMessage{Message: "The workbook has no customer, contact or payer sheet", Action: "Name the sheets Kunder, Kontakter and Betalare", Code: "FILE003"},
	},
	{
		pattern: "missing required column",
		msg:     UserMessage{Message: "A required column is missing from a sheet", Action: "Compare the sheet headers with the import template", Code: "FILE004"},
	},
	{
		pattern: "no file provided",
		msg:     UserMessage{Message: "No file was selected", Action: "Please select an .xlsx file to validate", Code: "FILE005"},
	},

	// Requests
	{
		pattern: "too many validation runs",
		msg:     UserMessage{Message: "Too many validations are running", Action: "Please wait a moment and try again", Code: "REQ001"},
	},
	{
		pattern: "empty search query",
		msg:     UserMessage{Message: "The search query is empty", Action: "Enter a name, email or customer number", Code: "REQ002"},
	},
	{
		pattern: "invalid request body",
		msg:     UserMessage{Message: "The request could not be read", Action: "Send a JSON import batch or an .xlsx file", Code: "REQ003"},
	},
	{
		pattern: "context canceled",
		msg:     UserMessage{Message: "Request was cancelled", Action: "Please try again", Code: "REQ004"},
	},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// Returns the ERR000 fallback when no pattern matches and an empty
// UserMessage for a nil error.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

// FormatUserError formats err as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user-facing message.
// Error returns the user message; Unwrap returns the original error.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{Technical: err, User: MapError(err)}
}
