package responses

// Envelope wraps every successful payload under "data".
type Envelope struct {
	Data any `json:"data"`
}

// ErrorBody is the public shape of a failed request. Details carry field-level
// validation problems and are omitted for internal errors.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error ErrorBody `json:"error"`
}
