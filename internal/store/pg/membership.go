package pg

import (
	"context"

	"github.com/dropDatabas3/gatekeeper/internal/domain/repository"
	"github.com/jackc/pgx/v5"
)

// Memberships retorna el repositorio de membresías por servicio.
func (s *Store) Memberships() repository.MembershipRepository { return &membershipRepo{s} }

type membershipRepo struct{ s *Store }

// GetForUserService resuelve rol y vigencia para (user, service) en una sola
// query. El LEFT JOIN sobre la membresía distingue "servicio inexistente"
// (cero filas) de "no es miembro" (fila con membresía NULL).
func (r *membershipRepo) GetForUserService(ctx context.Context, userUUID, serviceUUID string) (*repository.Membership, error) {
	row := r.s.pool.QueryRow(ctx, `
		SELECT s.uuid, s.name, s.is_active,
		       sm.is_active, sr.name
		FROM services s
		LEFT JOIN service_memberships sm
		       ON sm.service_uuid = s.uuid AND sm.user_uuid = $1
		LEFT JOIN roles sr ON sr.id = sm.role_id
		WHERE s.deleted_at IS NULL AND s.uuid = $2`, userUUID, serviceUUID)

	var m repository.Membership
	var memberActive *bool
	err := row.Scan(&m.ServiceUUID, &m.ServiceName, &m.ServiceActive, &memberActive, &m.Role)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, repository.ErrServiceNotFound
		}
		return nil, mapErr(err)
	}

	if memberActive == nil {
		// servicio existe, usuario sin membresía
		return nil, repository.ErrNotFound
	}
	m.MemberActive = *memberActive
	return &m, nil
}
