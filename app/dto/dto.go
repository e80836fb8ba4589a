package dto

// APIResponse is the envelope of every JSON answer. A failed call sets Success
// false and carries an ErrorDetail in Error.
type APIResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Error   any    `json:"error,omitempty"`
}

// ErrorDetail carries a stable machine-readable code. RequestID matches the
// X-Request-ID header and the access log record of the same request.
type ErrorDetail struct {
	Code      string `json:"code"`
	Details   any    `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// ListResult wraps the rows of a list endpoint
type ListResult[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

// NewListResult never returns a nil Items slice so empty lists encode as []
func NewListResult[T any](items []T) ListResult[T] {
	if items == nil {
		items = []T{}
	}
	return ListResult[T]{Items: items, Count: len(items)}
}
