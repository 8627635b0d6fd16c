package repository

import "context"

// Membership es la resolución de (user, service): el rol por servicio más los
// flags de vigencia de la membresía y del servicio.
// Invariante: a lo sumo una membresía por par (user, service).
type Membership struct {
	ServiceUUID   string
	ServiceName   string
	ServiceActive bool
	MemberActive  bool
	Role          *string // rol dentro del servicio, puede ser nil
}

// MembershipRepository resuelve la autorización por servicio para el
// Access Verifier.
type MembershipRepository interface {
	// GetForUserService retorna la membresía del usuario en el servicio.
	// Retorna ErrNotFound si el servicio existe pero el usuario no es miembro,
	// y ErrServiceNotFound si el servicio mismo no existe.
	GetForUserService(ctx context.Context, userUUID, serviceUUID string) (*Membership, error)
}
