package repository

import "errors"

var (
	// ErrNotFound indica que el recurso solicitado no existe.
	ErrNotFound = errors.New("not found")

	// ErrServiceNotFound indica que el servicio destino no existe
	// (distinto de "el usuario no es miembro").
	ErrServiceNotFound = errors.New("service not found")

	// ErrConflict indica un conflicto (ej: duplicado, constraint violation).
	ErrConflict = errors.New("conflict")

	// ErrUnavailable indica una falla transitoria del store (timeout, conexión).
	// Es el único error reintentable de esta capa.
	ErrUnavailable = errors.New("store unavailable")
)

// IsNotFound verifica si el error es ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsUnavailable verifica si el error es transitorio.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
