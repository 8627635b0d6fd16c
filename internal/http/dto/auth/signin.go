package auth

// SignInRequest es el body de POST /api/v1/auth/sign-in.
// Identifier acepta username o email.
type SignInRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// TokenPairData es el payload de data cuando se emiten tokens.
type TokenPairData struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// MFARequiredData es el payload de data cuando el usuario tiene MFA habilitado:
// en lugar de tokens se entrega un desafío de un solo uso.
type MFARequiredData struct {
	MFARequired bool   `json:"mfa_required"`
	MFAToken    string `json:"mfa_token"`
}

// VerifyMFARequest es el body de POST /api/v1/auth/verify-mfa.
type VerifyMFARequest struct {
	MFAToken string `json:"mfa_token"`
	OTP      string `json:"otp"`
}
