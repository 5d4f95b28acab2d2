// Package persistence provides the team service's store
// implementations: PostgreSQL for deployments, SQLite for local runs
// and tests.
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

	"github.com/felixgeelhaar/teamfinder/internal/teams/domain"
)

// SQLiteStore implements domain.Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a SQLite team store.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// EnsureSchema creates the store's tables if they do not exist.
func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id              TEXT PRIMARY KEY,
			username        TEXT NOT NULL,
			email           TEXT NOT NULL,
			gaming_platform TEXT NOT NULL DEFAULT '',
			preferred_game  TEXT NOT NULL DEFAULT '',
			skill_level     TEXT NOT NULL DEFAULT ''
		);
		CREATE TABLE IF NOT EXISTS teams (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL,
			game        TEXT NOT NULL,
			platform    TEXT NOT NULL,
			skill_level TEXT NOT NULL,
			max_players INTEGER NOT NULL,
			created_at  TEXT NOT NULL,
			owner_id    TEXT NOT NULL,
			is_open     INTEGER NOT NULL DEFAULT 1
		);
		CREATE TABLE IF NOT EXISTS team_members (
			id        TEXT PRIMARY KEY,
			user_id   TEXT NOT NULL,
			username  TEXT NOT NULL,
			team_id   TEXT NOT NULL,
			joined_at TEXT NOT NULL,
			role      TEXT NOT NULL,
			UNIQUE (team_id, user_id)
		);
		CREATE INDEX IF NOT EXISTS idx_team_members_user ON team_members (user_id);
		CREATE INDEX IF NOT EXISTS idx_teams_owner ON teams (owner_id);
	`)
	return err
}

// CreateTeam inserts the team and its owner membership in one
// transaction.
func (s *SQLiteStore) CreateTeam(ctx context.Context, team *domain.Team, owner *domain.TeamMember) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO teams (id, name, game, platform, skill_level, max_players, created_at, owner_id, is_open)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			team.ID.String(),
			team.Name,
			team.Game,
			team.Platform,
			team.SkillLevel,
			team.MaxPlayers,
			team.CreatedAt.Format(time.RFC3339Nano),
			team.OwnerID.String(),
			boolToInt(team.IsOpen),
		)
		if err != nil {
			return fmt.Errorf("insert team: %w", err)
		}
		return insertMemberTx(ctx, tx, owner)
	})
}

// FindTeam returns a team with its members.
func (s *SQLiteStore) FindTeam(ctx context.Context, id uuid.UUID) (*domain.Team, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, game, platform, skill_level, max_players, created_at, owner_id, is_open
		FROM teams WHERE id = ?
	`, id.String())

	team, err := scanTeam(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrTeamNotFound
		}
		return nil, fmt.Errorf("find team: %w", err)
	}

	members, err := s.membersOf(ctx, id)
	if err != nil {
		return nil, err
	}
	team.Members = members
	return team, nil
}

// ListTeams returns all teams with their members.
func (s *SQLiteStore) ListTeams(ctx context.Context) ([]*domain.Team, error) {
	return s.queryTeams(ctx, `
		SELECT id, name, game, platform, skill_level, max_players, created_at, owner_id, is_open
		FROM teams ORDER BY created_at
	`)
}

// DeleteTeam removes the team and its memberships in one transaction.
func (s *SQLiteStore) DeleteTeam(ctx context.Context, id uuid.UUID) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM team_members WHERE team_id = ?`, id.String()); err != nil {
			return fmt.Errorf("delete members: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM teams WHERE id = ?`, id.String())
		if err != nil {
			return fmt.Errorf("delete team: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return domain.ErrTeamNotFound
		}
		return nil
	})
}

// AddMember inserts one membership.
func (s *SQLiteStore) AddMember(ctx context.Context, member *domain.TeamMember) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return insertMemberTx(ctx, tx, member)
	})
}

// RemoveMember deletes the membership of userID in teamID.
func (s *SQLiteStore) RemoveMember(ctx context.Context, teamID, userID uuid.UUID) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM team_members WHERE team_id = ? AND user_id = ?`,
		teamID.String(), userID.String(),
	)
	if err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotMember
	}
	return nil
}

// MatchTeams returns open teams with free slots matching the filter.
func (s *SQLiteStore) MatchTeams(ctx context.Context, filter domain.MatchFilter) ([]*domain.Team, error) {
	query := `
		SELECT id, name, game, platform, skill_level, max_players, created_at, owner_id, is_open
		FROM teams WHERE is_open = 1
	`
	var args []any
	if filter.Game != "" {
		query += ` AND game = ?`
		args = append(args, filter.Game)
	}
	if filter.Platform != "" {
		query += ` AND platform = ?`
		args = append(args, filter.Platform)
	}
	if filter.SkillLevel != "" {
		query += ` AND skill_level = ?`
		args = append(args, filter.SkillLevel)
	}
	query += ` ORDER BY created_at`

	teams, err := s.queryTeams(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	matched := teams[:0]
	for _, t := range teams {
		if t.HasFreeSlot() {
			matched = append(matched, t)
		}
	}
	return matched, nil
}

// InsertUser adds a replica record.
func (s *SQLiteStore) InsertUser(ctx context.Context, user *domain.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, email, gaming_platform, preferred_game, skill_level)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		user.ID.String(),
		user.Username,
		user.Email,
		user.GamingPlatform,
		user.PreferredGame,
		user.SkillLevel,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") || strings.Contains(err.Error(), "PRIMARY KEY constraint") {
			return domain.ErrUserExists
		}
		return fmt.Errorf("insert replica user: %w", err)
	}
	return nil
}

// UpdateUser overwrites the replica record and rewrites the
// denormalized username on all memberships in one transaction.
func (s *SQLiteStore) UpdateUser(ctx context.Context, user *domain.User) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
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
			return fmt.Errorf("update replica user: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return domain.ErrUserNotFound
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE team_members SET username = ? WHERE user_id = ?`,
			user.Username, user.ID.String(),
		)
		if err != nil {
			return fmt.Errorf("rewrite member usernames: %w", err)
		}
		return nil
	})
}

// FindUser returns a replica record.
func (s *SQLiteStore) FindUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	var (
		user  domain.User
		rawID string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, email, gaming_platform, preferred_game, skill_level
		FROM users WHERE id = ?
	`, id.String()).Scan(
		&rawID,
		&user.Username,
		&user.Email,
		&user.GamingPlatform,
		&user.PreferredGame,
		&user.SkillLevel,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("find replica user: %w", err)
	}
	user.ID = id
	return &user, nil
}

// DeleteUserCascade removes the user, every team the user owns with
// all of that team's memberships, and the user's remaining
// memberships, in one transaction.
func (s *SQLiteStore) DeleteUserCascade(ctx context.Context, id uuid.UUID) (domain.CascadeResult, error) {
	var result domain.CascadeResult
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id.String())
		if err != nil {
			return fmt.Errorf("delete replica user: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return domain.ErrUserNotFound
		}

		// Memberships of teams the user owns go first; the teams
		// themselves second; the user's own remaining memberships last.
		res, err = tx.ExecContext(ctx, `
			DELETE FROM team_members
			WHERE team_id IN (SELECT id FROM teams WHERE owner_id = ?)
		`, id.String())
		if err != nil {
			return fmt.Errorf("delete owned-team members: %w", err)
		}
		owned, err := res.RowsAffected()
		if err != nil {
			return err
		}
		result.MembershipsRemoved += int(owned)

		res, err = tx.ExecContext(ctx, `DELETE FROM teams WHERE owner_id = ?`, id.String())
		if err != nil {
			return fmt.Errorf("delete owned teams: %w", err)
		}
		teams, err := res.RowsAffected()
		if err != nil {
			return err
		}
		result.TeamsDeleted = int(teams)

		res, err = tx.ExecContext(ctx, `DELETE FROM team_members WHERE user_id = ?`, id.String())
		if err != nil {
			return fmt.Errorf("delete memberships: %w", err)
		}
		remaining, err := res.RowsAffected()
		if err != nil {
			return err
		}
		result.MembershipsRemoved += int(remaining)
		return nil
	})
	if err != nil {
		return domain.CascadeResult{}, err
	}
	return result, nil
}

func (s *SQLiteStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) queryTeams(ctx context.Context, query string, args ...any) ([]*domain.Team, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query teams: %w", err)
	}
	defer rows.Close()

	var teams []*domain.Team
	for rows.Next() {
		team, err := scanTeam(rows)
		if err != nil {
			return nil, err
		}
		teams = append(teams, team)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, team := range teams {
		members, err := s.membersOf(ctx, team.ID)
		if err != nil {
			return nil, err
		}
		team.Members = members
	}
	return teams, nil
}

func (s *SQLiteStore) membersOf(ctx context.Context, teamID uuid.UUID) ([]domain.TeamMember, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, username, team_id, joined_at, role
		FROM team_members WHERE team_id = ? ORDER BY joined_at
	`, teamID.String())
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()

	var members []domain.TeamMember
	for rows.Next() {
		var (
			m                    domain.TeamMember
			id, userID, tid      string
			joinedAt, role       string
		)
		if err := rows.Scan(&id, &userID, &m.Username, &tid, &joinedAt, &role); err != nil {
			return nil, err
		}
		if m.ID, err = uuid.Parse(id); err != nil {
			return nil, err
		}
		if m.UserID, err = uuid.Parse(userID); err != nil {
			return nil, err
		}
		if m.TeamID, err = uuid.Parse(tid); err != nil {
			return nil, err
		}
		if m.JoinedAt, err = time.Parse(time.RFC3339Nano, joinedAt); err != nil {
			return nil, err
		}
		m.Role = domain.Role(role)
		members = append(members, m)
	}
	return members, rows.Err()
}

func insertMemberTx(ctx context.Context, tx *sql.Tx, member *domain.TeamMember) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO team_members (id, user_id, username, team_id, joined_at, role)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		member.ID.String(),
		member.UserID.String(),
		member.Username,
		member.TeamID.String(),
		member.JoinedAt.Format(time.RFC3339Nano),
		string(member.Role),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return domain.ErrAlreadyMember
		}
		return fmt.Errorf("insert member: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTeam(row rowScanner) (*domain.Team, error) {
	var (
		team              domain.Team
		id, ownerID       string
		createdAt         string
		isOpen            int
	)
	if err := row.Scan(
		&id,
		&team.Name,
		&team.Game,
		&team.Platform,
		&team.SkillLevel,
		&team.MaxPlayers,
		&createdAt,
		&ownerID,
		&isOpen,
	); err != nil {
		return nil, err
	}

	var err error
	if team.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse team id: %w", err)
	}
	if team.OwnerID, err = uuid.Parse(ownerID); err != nil {
		return nil, fmt.Errorf("parse owner id: %w", err)
	}
	if team.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	team.IsOpen = isOpen != 0
	return &team, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ domain.Store = (*SQLiteStore)(nil)
