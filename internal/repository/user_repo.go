package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"go-auth-gateway/internal/clock"
	"go-auth-gateway/internal/model"
	"go-auth-gateway/internal/password"
)

const userColumns = `id, username, COALESCE(email, ''), password_hash,
	failed_login_attempts, locked_until, is_active, last_login, created_at, updated_at`

// UserRepository is the credential store. It owns persistence and the
// password hashing/lockout mutations; the auth service orchestrates but
// never touches raw hashes or SQL.
type UserRepository struct {
	pool         *pgxpool.Pool
	maxAttempts  int
	lockDuration time.Duration
	bcryptCost   int
	clock        clock.Clock
}

func NewUserRepository(pool *pgxpool.Pool, maxAttempts int, lockDuration time.Duration, bcryptCost int, clk clock.Clock) *UserRepository {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if lockDuration <= 0 {
		lockDuration = 15 * time.Minute
	}
	if clk == nil {
		clk = clock.System()
	}

	return &UserRepository{
		pool:         pool,
		maxAttempts:  maxAttempts,
		lockDuration: lockDuration,
		bcryptCost:   bcryptCost,
		clock:        clk,
	}
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (model.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)

	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, model.ErrUserNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("find user by id: %w", err)
	}
	return u, nil
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (model.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(username) = lower($1)`,
		strings.TrimSpace(username))

	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, model.ErrUserNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("find user by username: %w", err)
	}
	return u, nil
}

// FindByUsernameOrEmail returns every record colliding with either value.
// Registration uses it to name all conflicting fields at once.
func (r *UserRepository) FindByUsernameOrEmail(ctx context.Context, username string, email string) ([]model.User, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE lower(username) = lower($1)
		    OR ($2 <> '' AND lower(email) = lower($2))`,
		strings.TrimSpace(username), strings.TrimSpace(email))
	if err != nil {
		return nil, fmt.Errorf("find user by username or email: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, scanErr := scanUser(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan user: %w", scanErr)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// Create hashes the password and inserts the record. A unique-constraint
// violation maps to the matching duplicate sentinel so a race between the
// uniqueness pre-check and the insert still names the colliding field.
func (r *UserRepository) Create(ctx context.Context, input model.NewUser) (model.User, error) {
	hash, err := password.Hash(input.Password, r.bcryptCost)
	if err != nil {
		return model.User{}, err
	}

	now := r.clock.Now()
	u := model.User{
		ID:           uuid.NewString(),
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: hash,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO users (id, username, email, password_hash, is_active, created_at, updated_at)
		 VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7)`,
		u.ID, u.Username, u.Email, u.PasswordHash, u.IsActive, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if dup := duplicateFieldError(err); dup != nil {
			return model.User{}, dup
		}
		return model.User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// IncrementFailedAttempts adds one failed attempt in a single atomic
// UPDATE and returns the post-increment count. Crossing the configured
// threshold sets locked_until; an already active lock is never extended.
func (r *UserRepository) IncrementFailedAttempts(ctx context.Context, userID string) (int, error) {
	now := r.clock.Now()

	var attempts int
	err := r.pool.QueryRow(ctx,
		`UPDATE users
		 SET failed_login_attempts = failed_login_attempts + 1,
		     locked_until = CASE
		         WHEN failed_login_attempts + 1 >= $2
		              AND (locked_until IS NULL OR locked_until <= $3)
		         THEN $4
		         ELSE locked_until
		     END,
		     updated_at = $3
		 WHERE id = $1
		 RETURNING failed_login_attempts`,
		userID, r.maxAttempts, now, now.Add(r.lockDuration)).Scan(&attempts)

	if errors.Is(err, pgx.ErrNoRows) {
		return 0, model.ErrUserNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("increment failed attempts: %w", err)
	}
	return attempts, nil
}

// ResetFailedAttempts zeroes the counter, clears any lock, and stamps the
// successful login.
func (r *UserRepository) ResetFailedAttempts(ctx context.Context, userID string) error {
	now := r.clock.Now()

	tag, err := r.pool.Exec(ctx,
		`UPDATE users
		 SET failed_login_attempts = 0, locked_until = NULL, last_login = $2, updated_at = $2
		 WHERE id = $1`,
		userID, now)
	if err != nil {
		return fmt.Errorf("reset failed attempts: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

// VerifyPassword compares a candidate against the stored hash.
func (r *UserRepository) VerifyPassword(hash string, candidate string) bool {
	return password.Verify(hash, candidate)
}

func scanUser(row pgx.Row) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash,
		&u.FailedLoginAttempts, &u.LockedUntil, &u.IsActive, &u.LastLogin,
		&u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func duplicateFieldError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return nil
	}

	switch pgErr.ConstraintName {
	case "users_email_key":
		return model.ErrDuplicateEmail
	default:
		return model.ErrDuplicateUsername
	}
}
