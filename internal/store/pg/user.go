package pg

import (
	"context"

	"github.com/dropDatabas3/gatekeeper/internal/domain/repository"
)

// Users retorna el repositorio de usuarios.
func (s *Store) Users() repository.UserRepository { return &userRepo{s} }

type userRepo struct{ s *Store }

const userColumns = `
	u.uuid, u.username, u.email, u.password_hash, r.name,
	u.is_active, u.mfa_enabled, u.mfa_secret,
	u.created_at, u.updated_at, u.deleted_at`

const userFrom = `
	FROM users u
	LEFT JOIN roles r ON r.id = u.role_id`

func (r *userRepo) scanUser(row interface{ Scan(dest ...any) error }) (*repository.User, error) {
	var u repository.User
	err := row.Scan(
		&u.UUID, &u.Username, &u.Email, &u.PasswordHash, &u.Role,
		&u.IsActive, &u.MFAEnabled, &u.MFASecret,
		&u.CreatedAt, &u.UpdatedAt, &u.DeletedAt,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

func (r *userRepo) GetByIdentifier(ctx context.Context, identifier string) (*repository.User, error) {
	row := r.s.pool.QueryRow(ctx, `SELECT`+userColumns+userFrom+`
		WHERE u.deleted_at IS NULL AND (u.username = $1 OR u.email = $1)`, identifier)
	return r.scanUser(row)
}

func (r *userRepo) GetByUUID(ctx context.Context, uuid string) (*repository.User, error) {
	row := r.s.pool.QueryRow(ctx, `SELECT`+userColumns+userFrom+`
		WHERE u.deleted_at IS NULL AND u.uuid = $1`, uuid)
	return r.scanUser(row)
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*repository.User, error) {
	row := r.s.pool.QueryRow(ctx, `SELECT`+userColumns+userFrom+`
		WHERE u.deleted_at IS NULL AND u.email = $1`, email)
	return r.scanUser(row)
}

func (r *userRepo) UpdatePassword(ctx context.Context, uuid, passwordHash, executedBy string) error {
	tag, err := r.s.pool.Exec(ctx, `
		UPDATE users
		SET password_hash = $2, updated_by = $3, updated_at = now()
		WHERE uuid = $1 AND deleted_at IS NULL`, uuid, passwordHash, executedBy)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
