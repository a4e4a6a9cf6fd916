package types

// ApiResponse is the envelope every endpoint responds with.
type ApiResponse struct {
	Message string      `json:"message"`
	Status  int         `json:"status"`
	Kind    ErrorKind   `json:"kind,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}
