package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/felixgeelhaar/teamfinder/internal/users/domain"
)

// SQLiteUserRepository implements domain.Repository using SQLite.
type SQLiteUserRepository struct {
	db *sql.DB
}

// NewSQLiteUserRepository creates a SQLite user repository.
func NewSQLiteUserRepository(db *sql.DB) *SQLiteUserRepository {
	return &SQLiteUserRepository{db: db}
}

// EnsureSchema creates the users table if it does not exist.
func (r *SQLiteUserRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id              TEXT PRIMARY KEY,
			username        TEXT NOT NULL UNIQUE,
			email           TEXT NOT NULL UNIQUE,
			gaming_platform TEXT NOT NULL DEFAULT '',
			preferred_game  TEXT NOT NULL DEFAULT '',
			skill_level     TEXT NOT NULL DEFAULT '',
			created_at      TEXT NOT NULL
		)
	`)
	return err
}

// Create inserts a new user.
func (r *SQLiteUserRepository) Create(ctx context.Context, user *domain.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, username, email, gaming_platform, preferred_game, skill_level, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		user.ID.String(),
		user.Username,
		user.Email,
		user.GamingPlatform,
		user.PreferredGame,
		user.SkillLevel,
		user.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return domain.ErrUserExists
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// Update overwrites a user's profile fields.
func (r *SQLiteUserRepository) Update(ctx context.Context, user *domain.User) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET username = ?, email = ?, gaming_platform = ?, preferred_game = ?, skill_level = ?
		WHERE id = ?
	`,
		user.Username,
		user.Email,
		user.GamingPlatform,
		user.PreferredGame,
		user.SkillLevel,
		user.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// Delete removes a user by id.
func (r *SQLiteUserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// FindByID returns a user by id.
func (r *SQLiteUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, username, email, gaming_platform, preferred_game, skill_level, created_at
		FROM users WHERE id = ?
	`, id.String())

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}

// List returns all users ordered by creation time.
func (r *SQLiteUserRepository) List(ctx context.Context) ([]*domain.User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, username, email, gaming_platform, preferred_game, skill_level, created_at
		FROM users ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		user      domain.User
		id        string
		createdAt string
	)
	if err := row.Scan(
		&id,
		&user.Username,
		&user.Email,
		&user.GamingPlatform,
		&user.PreferredGame,
		&user.SkillLevel,
		&createdAt,
	); err != nil {
		return nil, err
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse user id: %w", err)
	}
	user.ID = parsed

	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	user.CreatedAt = ts

	return &user, nil
}

var _ domain.Repository = (*SQLiteUserRepository)(nil)
