// Package auth contiene los DTOs del flujo de autenticación.
package auth

// Envelope es el sobre JSON estándar de las respuestas exitosas.
type Envelope struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	StatusCode int    `json:"status_code"`
	Data       any    `json:"data,omitempty"`
}

// OK construye un envelope exitoso.
func OK(statusCode int, message string, data any) Envelope {
	return Envelope{
		Success:    true,
		Message:    message,
		StatusCode: statusCode,
		Data:       data,
	}
}
