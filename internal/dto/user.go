package dto

// LoginRequest is the body for POST /auth/login, accepted both as a form
// post and as JSON. Validation happens in the service, not in binding tags,
// so both modes fail with the same messages.
type LoginRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

// RegisterRequest is the body for POST /auth/register.
type RegisterRequest struct {
	Username        string `json:"username" form:"username"`
	Password        string `json:"password" form:"password"`
	ConfirmPassword string `json:"confirmPassword" form:"confirmPassword"`
}

// UserResponse is returned when user info is needed (e.g. after login).
type UserResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// AuthSuccess is the JSON envelope for a successful login or registration.
type AuthSuccess struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	User    UserResponse `json:"user"`
	Session string       `json:"session"`
}

// AuthFailure is the JSON envelope for any failed auth operation.
type AuthFailure struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}
