package authapi

import "time"

type signUpRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Remember bool   `json:"remember"`
}

type principalResponse struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
}

type sessionResponse struct {
	SessionID string    `json:"session_id"`
	ExpiresAt time.Time `json:"expires_at"`
	Evicted   bool      `json:"evicted_oldest,omitempty"`
}

type signInResponse struct {
	Principal principalResponse `json:"principal"`
	Session   sessionResponse   `json:"session"`
}

type meResponse struct {
	Principal principalResponse `json:"principal"`
	SessionID string            `json:"session_id"`
	ExpiresAt time.Time         `json:"session_expires_at"`
}
