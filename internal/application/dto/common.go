package dto

// ErrorResponse HTTP error body. MessageAr carries the Arabic translation for
// client-facing errors; it is empty for internal ones.
type ErrorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	MessageAr string `json:"message_ar,omitempty"`
}

// TokenResponse body for POST /api/auth/token.
type TokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"` // seconds
}
