package repository

import (
	"context"
	"time"
)

// User representa un usuario del sistema de autenticación.
// El hash de password y el secreto MFA nunca salen de la capa de servicios.
type User struct {
	UUID         string
	Username     string
	Email        string
	PasswordHash string
	Role         *string // rol global, referenciado por nombre
	IsActive     bool
	MFAEnabled   bool
	MFASecret    *string // base32, presente sólo si MFAEnabled
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    *time.Time
}

// UserRepository define el acceso de lectura/escritura que el core necesita
// sobre el Credential Store. El CRUD administrativo vive fuera de este repo.
type UserRepository interface {
	// GetByIdentifier busca por username o email (el sign-in acepta ambos).
	// Retorna ErrNotFound si no existe o fue soft-deleted.
	GetByIdentifier(ctx context.Context, identifier string) (*User, error)

	// GetByUUID busca por UUID. Retorna ErrNotFound si no existe.
	GetByUUID(ctx context.Context, uuid string) (*User, error)

	// GetByEmail busca por email. Retorna ErrNotFound si no existe.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// UpdatePassword persiste un nuevo hash de password.
	UpdatePassword(ctx context.Context, uuid, passwordHash, executedBy string) error
}
