package types

// SuccessEnvelope wraps every 2xx body: {"data": ...}.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError carries a public error code such as OUT_OF_STOCK or
// ALREADY_BORROWED; internal messages never reach Message.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorEnvelope wraps every non-2xx body: {"error": {...}}.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
