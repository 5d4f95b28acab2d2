package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/felixgeelhaar/teamfinder/internal/teams/domain"
)

// PostgresStore implements domain.Store using PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL team store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the store's tables if they do not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id              UUID PRIMARY KEY,
			username        TEXT NOT NULL,
			email           TEXT NOT NULL,
			gaming_platform TEXT NOT NULL DEFAULT '',
			preferred_game  TEXT NOT NULL DEFAULT '',
			skill_level     TEXT NOT NULL DEFAULT ''
		);
		CREATE TABLE IF NOT EXISTS teams (
			id          UUID PRIMARY KEY,
			name        TEXT NOT NULL,
			game        TEXT NOT NULL,
			platform    TEXT NOT NULL,
			skill_level TEXT NOT NULL,
			max_players INT NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL,
			owner_id    UUID NOT NULL,
			is_open     BOOLEAN NOT NULL DEFAULT TRUE
		);
		CREATE TABLE IF NOT EXISTS team_members (
			id        UUID PRIMARY KEY,
			user_id   UUID NOT NULL,
			username  TEXT NOT NULL,
			team_id   UUID NOT NULL REFERENCES teams (id),
			joined_at TIMESTAMPTZ NOT NULL,
			role      TEXT NOT NULL,
			UNIQUE (team_id, user_id)
		);
		CREATE INDEX IF NOT EXISTS idx_team_members_user ON team_members (user_id);
		CREATE INDEX IF NOT EXISTS idx_teams_owner ON teams (owner_id)
	`)
	return err
}

func (s *PostgresStore) CreateTeam(ctx context.Context, team *domain.Team, owner *domain.TeamMember) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO teams (id, name, game, platform, skill_level, max_players, created_at, owner_id, is_open)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`,
			team.ID, team.Name, team.Game, team.Platform, team.SkillLevel,
			team.MaxPlayers, team.CreatedAt, team.OwnerID, team.IsOpen,
		)
		if err != nil {
			return fmt.Errorf("insert team: %w", err)
		}
		return insertMemberPgx(ctx, tx, owner)
	})
}

func (s *PostgresStore) FindTeam(ctx context.Context, id uuid.UUID) (*domain.Team, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, game, platform, skill_level, max_players, created_at, owner_id, is_open
		FROM teams WHERE id = $1
	`, id)

	team, err := scanTeamPgx(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
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

func (s *PostgresStore) ListTeams(ctx context.Context) ([]*domain.Team, error) {
	return s.queryTeams(ctx, `
		SELECT id, name, game, platform, skill_level, max_players, created_at, owner_id, is_open
		FROM teams ORDER BY created_at
	`)
}

func (s *PostgresStore) DeleteTeam(ctx context.Context, id uuid.UUID) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM team_members WHERE team_id = $1`, id); err != nil {
			return fmt.Errorf("delete members: %w", err)
		}
		tag, err := tx.Exec(ctx, `DELETE FROM teams WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete team: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrTeamNotFound
		}
		return nil
	})
}

func (s *PostgresStore) AddMember(ctx context.Context, member *domain.TeamMember) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		return insertMemberPgx(ctx, tx, member)
	})
}

func (s *PostgresStore) RemoveMember(ctx context.Context, teamID, userID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM team_members WHERE team_id = $1 AND user_id = $2`,
		teamID, userID,
	)
	if err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotMember
	}
	return nil
}

func (s *PostgresStore) MatchTeams(ctx context.Context, filter domain.MatchFilter) ([]*domain.Team, error) {
	query := `
		SELECT id, name, game, platform, skill_level, max_players, created_at, owner_id, is_open
		FROM teams WHERE is_open
	`
	var args []any
	if filter.Game != "" {
		args = append(args, filter.Game)
		query += fmt.Sprintf(` AND game = $%d`, len(args))
	}
	if filter.Platform != "" {
		args = append(args, filter.Platform)
		query += fmt.Sprintf(` AND platform = $%d`, len(args))
	}
	if filter.SkillLevel != "" {
		args = append(args, filter.SkillLevel)
		query += fmt.Sprintf(` AND skill_level = $%d`, len(args))
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

func (s *PostgresStore) InsertUser(ctx context.Context, user *domain.User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, username, email, gaming_platform, preferred_game, skill_level)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		user.ID, user.Username, user.Email,
		user.GamingPlatform, user.PreferredGame, user.SkillLevel,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrUserExists
		}
		return fmt.Errorf("insert replica user: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateUser(ctx context.Context, user *domain.User) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE users
			SET username = $1, email = $2, gaming_platform = $3, preferred_game = $4, skill_level = $5
			WHERE id = $6
		`,
			user.Username, user.Email, user.GamingPlatform,
			user.PreferredGame, user.SkillLevel, user.ID,
		)
		if err != nil {
			return fmt.Errorf("update replica user: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrUserNotFound
		}

		_, err = tx.Exec(ctx,
			`UPDATE team_members SET username = $1 WHERE user_id = $2`,
			user.Username, user.ID,
		)
		if err != nil {
			return fmt.Errorf("rewrite member usernames: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) FindUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	var user domain.User
	err := s.pool.QueryRow(ctx, `
		SELECT id, username, email, gaming_platform, preferred_game, skill_level
		FROM users WHERE id = $1
	`, id).Scan(
		&user.ID, &user.Username, &user.Email,
		&user.GamingPlatform, &user.PreferredGame, &user.SkillLevel,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("find replica user: %w", err)
	}
	return &user, nil
}

func (s *PostgresStore) DeleteUserCascade(ctx context.Context, id uuid.UUID) (domain.CascadeResult, error) {
	var result domain.CascadeResult
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete replica user: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrUserNotFound
		}

		tag, err = tx.Exec(ctx, `
			DELETE FROM team_members
			WHERE team_id IN (SELECT id FROM teams WHERE owner_id = $1)
		`, id)
		if err != nil {
			return fmt.Errorf("delete owned-team members: %w", err)
		}
		result.MembershipsRemoved += int(tag.RowsAffected())

		tag, err = tx.Exec(ctx, `DELETE FROM teams WHERE owner_id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete owned teams: %w", err)
		}
		result.TeamsDeleted = int(tag.RowsAffected())

		tag, err = tx.Exec(ctx, `DELETE FROM team_members WHERE user_id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete memberships: %w", err)
		}
		result.MembershipsRemoved += int(tag.RowsAffected())
		return nil
	})
	if err != nil {
		return domain.CascadeResult{}, err
	}
	return result, nil
}

func (s *PostgresStore) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) queryTeams(ctx context.Context, query string, args ...any) ([]*domain.Team, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query teams: %w", err)
	}
	defer rows.Close()

	var teams []*domain.Team
	for rows.Next() {
		team, err := scanTeamPgx(rows)
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

func (s *PostgresStore) membersOf(ctx context.Context, teamID uuid.UUID) ([]domain.TeamMember, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, username, team_id, joined_at, role
		FROM team_members WHERE team_id = $1 ORDER BY joined_at
	`, teamID)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()

	var members []domain.TeamMember
	for rows.Next() {
		var (
			m    domain.TeamMember
			role string
		)
		if err := rows.Scan(&m.ID, &m.UserID, &m.Username, &m.TeamID, &m.JoinedAt, &role); err != nil {
			return nil, err
		}
		m.Role = domain.Role(role)
		members = append(members, m)
	}
	return members, rows.Err()
}

func insertMemberPgx(ctx context.Context, tx pgx.Tx, member *domain.TeamMember) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO team_members (id, user_id, username, team_id, joined_at, role)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		member.ID, member.UserID, member.Username,
		member.TeamID, member.JoinedAt, string(member.Role),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrAlreadyMember
		}
		return fmt.Errorf("insert member: %w", err)
	}
	return nil
}

func scanTeamPgx(row pgx.Row) (*domain.Team, error) {
	var team domain.Team
	if err := row.Scan(
		&team.ID, &team.Name, &team.Game, &team.Platform, &team.SkillLevel,
		&team.MaxPlayers, &team.CreatedAt, &team.OwnerID, &team.IsOpen,
	); err != nil {
		return nil, err
	}
	return &team, nil
}

var _ domain.Store = (*PostgresStore)(nil)
