// Package types contains request and response types for the HTTP API.
package types

// ErrorResponse is the error response body.
type ErrorResponse struct {
	ErrorCode int    `json:"error_code"`
	Message   string `json:"message"`
}

// MessageResponse is a generic confirmation body.
type MessageResponse struct {
	Message string `json:"message"`
}

// CreateSchemaResponse confirms a schema registration.
type CreateSchemaResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

// Error codes returned in error responses.
const (
	ErrorCodeInvalidSchema       = 42201
	ErrorCodeInvalidRequest      = 42202
	ErrorCodeStorageNotFound     = 40401
	ErrorCodeInternalServerError = 50001
	ErrorCodeStorageError        = 50002
	ErrorCodeBrokerError         = 50003
)
