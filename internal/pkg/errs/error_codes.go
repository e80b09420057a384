/*
Package errs provides the coded error type used across the server.

These constants identify specific business or transport errors both inside
the server and in replies to clients.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates an unsupported Content-Type header.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates a malformed JSON request body.
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates trailing content after valid JSON data.
	ErrExtraContentInBody = 1004

	// ErrRateLimitExceeded indicates the per-IP request rate was exceeded.
	ErrRateLimitExceeded = 1005
)

// 2xxx: Room and Message Errors
const (
	// ErrRoomNotFound indicates that no persisted room exists with the
	// requested room id.
	ErrRoomNotFound = 2103

	// ErrForbidden indicates a non-member attempted to post into a room.
	ErrForbidden = 2105

	// ErrMessageContentTooLong indicates message content over the size cap.
	ErrMessageContentTooLong = 2201
)

// 3xxx: Authentication and Session Errors
const (
	// ErrSessionReplaced indicates the connection was closed because the
	// same identity opened a newer connection.
	ErrSessionReplaced = 3004

	// ErrTokenInvalid indicates the bearer token could not be parsed or
	// verified, or has expired.
	ErrTokenInvalid = 3101

	// ErrTokenMissingClaim indicates a verified token without a user id claim.
	ErrTokenMissingClaim = 3102

	// ErrInvalidUsername indicates a username failing format validation.
	ErrInvalidUsername = 3201

	// ErrInvalidPassword indicates a password failing length validation.
	ErrInvalidPassword = 3202

	// ErrUserAlreadyExists indicates a registration conflict on username.
	ErrUserAlreadyExists = 3203

	// ErrInvalidCredentials indicates a failed login attempt.
	ErrInvalidCredentials = 3204
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified internal server error.
	ErrUnknown = 5000

	// ErrStoreUnavailable indicates the persistence layer timed out or
	// failed; the request had no durable or in-memory effect.
	ErrStoreUnavailable = 5001
)
