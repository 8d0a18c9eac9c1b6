package model

// StatusResponse is the acknowledgment body returned by mutating endpoints.
type StatusResponse struct {
	Status string `json:"status"`
}

// UserListResponse is the body of GET /user/list.
type UserListResponse struct {
	Users []User `json:"users"`
	Total int    `json:"total"`
}

// RegistrationListResponse is the body of GET /registration.
type RegistrationListResponse struct {
	Requests []RegistrationRequest `json:"requests"`
}

// ErrorResponse is the standard envelope for error responses.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the structured error information returned by the API.
type ErrorDetail struct {
	Code    int                    `json:"code"`
	Type    string                 `json:"type,omitempty"` // e.g. ValidationError, AlreadyExistError
	Message string                 `json:"message"`
	Context map[string]interface{} `json:"context,omitempty"`
}
