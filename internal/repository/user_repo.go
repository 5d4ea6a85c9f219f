package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"social-api/internal/db"
	"social-api/internal/domain"
)

// UserRepository define el contrato de persistencia para usuarios. Los
// métodos "Active" excluyen cuentas desactivadas; FindByIDIncludingInactive
// es el único bypass y lo usa el guardia de autenticación.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	FindActiveByID(ctx context.Context, id string) (domain.User, error)
	FindByIDIncludingInactive(ctx context.Context, id string) (domain.User, error)
	FindActiveByEmail(ctx context.Context, email string) (domain.User, error)
	FindActiveByResetToken(ctx context.Context, tokenHash string) (domain.User, error)
	ListActive(ctx context.Context) ([]domain.User, error)
	SearchActiveByEmailPrefix(ctx context.Context, prefix string, limit int) ([]domain.UserSummary, error)
	UpdateProfile(ctx context.Context, id string, upd domain.ProfileUpdate) (domain.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string, changedAt time.Time) error
	SetPasswordResetToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error
	ClearPasswordResetToken(ctx context.Context, id string) error
	ConsumePasswordResetToken(ctx context.Context, id, tokenHash, passwordHash string, changedAt time.Time) error
	Deactivate(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	Follow(ctx context.Context, followerID, followeeID string) (domain.User, error)
	Unfollow(ctx context.Context, followerID, followeeID string) (domain.User, error)
}

// PgUserRepository implementa UserRepository usando pgxpool.
type PgUserRepository struct {
	pool *pgxpool.Pool
}

func NewPgUserRepository(pool *pgxpool.Pool) *PgUserRepository {
	return &PgUserRepository{pool: pool}
}

const userColumns = `id, name, email, photo, role, password_hash, password_changed_at,
	password_reset_token, password_reset_expires, active, followers_count,
	following_count, created_at, updated_at`

func scanUser(row pgx.Row) (domain.User, error) {
	var (
		u          domain.User
		role       string
		resetToken *string
	)
	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.Photo,
		&role,
		&u.PasswordHash,
		&u.PasswordChangedAt,
		&resetToken,
		&u.PasswordResetExpires,
		&u.Active,
		&u.FollowersCount,
		&u.FollowingCount,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.User{}, err
	}
	u.Role = domain.Role(role)
	if resetToken != nil {
		u.PasswordResetToken = *resetToken
	}
	return u, nil
}

func (r *PgUserRepository) Create(ctx context.Context, user domain.User) error {
	const query = `
		INSERT INTO users (id, name, email, photo, role, password_hash, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE, $7, $7)
	`
	_, err := r.pool.Exec(ctx, query,
		user.ID,
		user.Name,
		user.Email,
		user.Photo,
		string(user.Role),
		user.PasswordHash,
		user.CreatedAt,
	)
	return mapWriteError(err)
}

func (r *PgUserRepository) FindActiveByID(ctx context.Context, id string) (domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 AND active`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

func (r *PgUserRepository) FindByIDIncludingInactive(ctx context.Context, id string) (domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

func (r *PgUserRepository) FindActiveByEmail(ctx context.Context, email string) (domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1 AND active`
	return scanUser(r.pool.QueryRow(ctx, query, email))
}

func (r *PgUserRepository) FindActiveByResetToken(ctx context.Context, tokenHash string) (domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE password_reset_token = $1 AND active`
	return scanUser(r.pool.QueryRow(ctx, query, tokenHash))
}

func (r *PgUserRepository) ListActive(ctx context.Context) ([]domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE active ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []domain.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *PgUserRepository) SearchActiveByEmailPrefix(ctx context.Context, prefix string, limit int) ([]domain.UserSummary, error) {
	const query = `
		SELECT id, name, email, photo
		FROM users
		WHERE active AND email LIKE $1 ESCAPE '\'
		ORDER BY email ASC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, escapeLike(prefix)+"%", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []domain.UserSummary{}
	for rows.Next() {
		var s domain.UserSummary
		if err := rows.Scan(&s.ID, &s.Name, &s.Email, &s.Photo); err != nil {
			return nil, err
		}
		results = append(results, s)
	}
	return results, rows.Err()
}

func (r *PgUserRepository) UpdateProfile(ctx context.Context, id string, upd domain.ProfileUpdate) (domain.User, error) {
	var role *string
	if upd.Role != nil {
		v := string(*upd.Role)
		role = &v
	}
	query := `
		UPDATE users SET
			name = COALESCE($2, name),
			email = COALESCE($3, email),
			photo = COALESCE($4, photo),
			role = COALESCE($5, role),
			updated_at = NOW()
		WHERE id = $1 AND active
		RETURNING ` + userColumns
	u, err := scanUser(r.pool.QueryRow(ctx, query, id, upd.Name, upd.Email, upd.Photo, role))
	if err != nil {
		return domain.User{}, mapWriteError(err)
	}
	return u, nil
}

func (r *PgUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string, changedAt time.Time) error {
	const query = `
		UPDATE users SET
			password_hash = $2,
			password_changed_at = $3,
			updated_at = NOW()
		WHERE id = $1 AND active
	`
	tag, err := r.pool.Exec(ctx, query, id, passwordHash, changedAt)
	return affectedOne(tag, err)
}

func (r *PgUserRepository) SetPasswordResetToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error {
	const query = `
		UPDATE users SET
			password_reset_token = $2,
			password_reset_expires = $3,
			updated_at = NOW()
		WHERE id = $1 AND active
	`
	tag, err := r.pool.Exec(ctx, query, id, tokenHash, expiresAt)
	return affectedOne(tag, err)
}

func (r *PgUserRepository) ClearPasswordResetToken(ctx context.Context, id string) error {
	const query = `
		UPDATE users SET
			password_reset_token = NULL,
			password_reset_expires = NULL,
			updated_at = NOW()
		WHERE id = $1
	`
	_, err := r.pool.Exec(ctx, query, id)
	return err
}

// ConsumePasswordResetToken cambia la contraseña y limpia el token en una sola
// sentencia condicionada al hash y a la expiración, de modo que un segundo
// consumo concurrente no afecta filas.
func (r *PgUserRepository) ConsumePasswordResetToken(ctx context.Context, id, tokenHash, passwordHash string, changedAt time.Time) error {
	const query = `
		UPDATE users SET
			password_hash = $3,
			password_changed_at = $4,
			password_reset_token = NULL,
			password_reset_expires = NULL,
			updated_at = NOW()
		WHERE id = $1
		  AND active
		  AND password_reset_token = $2
		  AND password_reset_expires > NOW()
	`
	tag, err := r.pool.Exec(ctx, query, id, tokenHash, passwordHash, changedAt)
	return affectedOne(tag, err)
}

func (r *PgUserRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE users SET active = FALSE, updated_at = NOW() WHERE id = $1 AND active`
	tag, err := r.pool.Exec(ctx, query, id)
	return affectedOne(tag, err)
}

func (r *PgUserRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	return affectedOne(tag, err)
}

// Follow crea la arista y ajusta los contadores de ambos usuarios en la misma
// transacción. Devuelve el usuario seguido ya actualizado.
func (r *PgUserRepository) Follow(ctx context.Context, followerID, followeeID string) (domain.User, error) {
	var followee domain.User
	err := db.WithTx(ctx, r.pool, func(ctx context.Context, tx db.Querier) error {
		if err := lockActiveUsers(ctx, tx, followerID, followeeID); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `
			INSERT INTO follows (follower_id, followee_id)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, followerID, followeeID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 1 {
			if err := adjustFollowCounts(ctx, tx, followerID, followeeID, 1); err != nil {
				return err
			}
		}
		followee, err = scanUser(tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, followeeID))
		return err
	})
	if err != nil {
		return domain.User{}, err
	}
	return followee, nil
}

func (r *PgUserRepository) Unfollow(ctx context.Context, followerID, followeeID string) (domain.User, error) {
	var followee domain.User
	err := db.WithTx(ctx, r.pool, func(ctx context.Context, tx db.Querier) error {
		if err := lockActiveUsers(ctx, tx, followerID, followeeID); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `
			DELETE FROM follows WHERE follower_id = $1 AND followee_id = $2
		`, followerID, followeeID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 1 {
			if err := adjustFollowCounts(ctx, tx, followerID, followeeID, -1); err != nil {
				return err
			}
		}
		followee, err = scanUser(tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, followeeID))
		return err
	})
	if err != nil {
		return domain.User{}, err
	}
	return followee, nil
}

// lockActiveUsers bloquea ambas filas en orden de id para evitar deadlocks
// entre follow/unfollow cruzados.
func lockActiveUsers(ctx context.Context, tx db.Querier, a, b string) error {
	rows, err := tx.Query(ctx, `
		SELECT id FROM users
		WHERE id = ANY($1::uuid[]) AND active
		ORDER BY id
		FOR UPDATE
	`, []string{a, b})
	if err != nil {
		return err
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		n++
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if n != 2 {
		return domain.ErrNotFound
	}
	return nil
}

func adjustFollowCounts(ctx context.Context, tx db.Querier, followerID, followeeID string, delta int) error {
	if _, err := tx.Exec(ctx,
		`UPDATE users SET following_count = GREATEST(following_count + $2, 0) WHERE id = $1`,
		followerID, delta,
	); err != nil {
		return err
	}
	_, err := tx.Exec(ctx,
		`UPDATE users SET followers_count = GREATEST(followers_count + $2, 0) WHERE id = $1`,
		followeeID, delta,
	)
	return err
}

func affectedOne(tag pgconn.CommandTag, err error) error {
	if err != nil {
		return mapWriteError(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

var (
	ErrNameTaken  = domain.NewValidationError("This name has already been taken")
	ErrEmailTaken = domain.NewValidationError("This email is already registered")
	ErrDuplicate  = domain.NewValidationError("Duplicate field value. Please use another value")
)

// mapWriteError traduce violaciones de unicidad a errores de validación.
func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgerrcode.UniqueViolation {
		return err
	}
	switch pgErr.ConstraintName {
	case "users_name_key":
		return ErrNameTaken
	case "users_email_key":
		return ErrEmailTaken
	default:
		return ErrDuplicate
	}
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
