package auth

// RefreshRequest es el body de POST /api/v1/auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// SignOutRequest es el body de DELETE /api/v1/auth/sign-out.
// El refresh token es opcional; si viene, también se revoca.
type SignOutRequest struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// VerifyTokenRequest es el body de POST /api/v1/auth/verify-token.
type VerifyTokenRequest struct {
	Token     string `json:"token"`
	ServiceID string `json:"service_id"`
}

// VerifyTokenData es el snapshot de identidad + autorización por servicio
// que consume el servicio downstream.
type VerifyTokenData struct {
	UUID          string  `json:"uuid"`
	Username      string  `json:"username"`
	Email         string  `json:"email"`
	Role          *string `json:"role"`
	IsActive      bool    `json:"is_active"`
	MFAEnabled    bool    `json:"mfa_enabled"`
	ServiceID     string  `json:"service_id"`
	ServiceName   string  `json:"service_name"`
	ServiceValid  bool    `json:"service_valid"`
	ServiceRole   *string `json:"service_role"`
	ServiceStatus string  `json:"service_status"`
}
