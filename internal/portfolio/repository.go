package portfolio

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"portfolio-service/internal/db"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("portfolio: not found")

// Repository reads and writes profiles and projects. Every write is
// scoped by the owner's user id.
type Repository struct {
	db *db.DB
}

func NewRepository(db *db.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return nil, ErrNotFound
	}

	var (
		p                           Profile
		name, jobTitle, bio, avatar sql.NullString
		email                       sql.NullString
	)
	err = r.db.QueryRowContext(ctx, `
		SELECT id, name, job_title, bio, avatar_url, email, created_at, updated_at
		FROM profiles
		WHERE id = $1
	`, id).Scan(&p.ID, &name, &jobTitle, &bio, &avatar, &email, &p.CreatedAt, &p.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("portfolio: get profile: %w", err)
	}

	p.Name, p.JobTitle, p.Bio = name.String, jobTitle.String, bio.String
	p.AvatarURL, p.Email = avatar.String, email.String
	return &p, nil
}

// SaveProfile creates or updates the profile of userID.
func (r *Repository) SaveProfile(ctx context.Context, userID, email string, in ProfileInput) error {
	id, err := uuid.Parse(userID)
	if err != nil {
		return fmt.Errorf("portfolio: invalid user id: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO profiles (id, name, job_title, bio, email)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    job_title = EXCLUDED.job_title,
		    bio = EXCLUDED.bio,
		    email = EXCLUDED.email,
		    updated_at = NOW()
	`, id, in.Name, in.JobTitle, in.Bio, email)
	if err != nil {
		return fmt.Errorf("portfolio: save profile: %w", err)
	}
	return nil
}

// SetAvatar points the profile of userID at avatarURL and returns the URL
// it replaced, if any.
func (r *Repository) SetAvatar(ctx context.Context, userID, email, avatarURL string) (string, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return "", fmt.Errorf("portfolio: invalid user id: %w", err)
	}

	var previous sql.NullString
	err = r.db.WithTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			SELECT avatar_url FROM profiles WHERE id = $1 FOR UPDATE
		`, id).Scan(&previous)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO profiles (id, avatar_url, email)
			VALUES ($1, $2, $3)
			ON CONFLICT (id) DO UPDATE
			SET avatar_url = EXCLUDED.avatar_url,
			    updated_at = NOW()
		`, id, avatarURL, email)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("portfolio: set avatar: %w", err)
	}
	return previous.String, nil
}

// ListProjects returns the projects of userID, newest first.
func (r *Repository) ListProjects(ctx context.Context, userID string) ([]Project, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, name, description, demo_url, repo_url, created_at, updated_at
		FROM projects
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("portfolio: list projects: %w", err)
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		var (
			p                Project
			desc, demo, repo sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.UserID, &p.Name, &desc, &demo, &repo, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("portfolio: scan project: %w", err)
		}
		p.Description, p.DemoURL, p.RepoURL = desc.String, demo.String, repo.String
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("portfolio: list projects: %w", err)
	}
	return projects, nil
}

func (r *Repository) CreateProject(ctx context.Context, userID string, in ProjectInput) (string, error) {
	owner, err := uuid.Parse(userID)
	if err != nil {
		return "", fmt.Errorf("portfolio: invalid user id: %w", err)
	}

	id := uuid.New()
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO projects (id, user_id, name, description, demo_url, repo_url)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, id, owner, in.Name, in.Description, in.DemoURL, in.RepoURL)
	if err != nil {
		return "", fmt.Errorf("portfolio: create project: %w", err)
	}
	return id.String(), nil
}

// UpdateProject changes a project owned by userID. Projects of other
// owners are reported as ErrNotFound.
func (r *Repository) UpdateProject(ctx context.Context, userID, projectID string, in ProjectInput) error {
	owner, id, err := parseIDs(userID, projectID)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE projects
		SET name = $3, description = $4, demo_url = $5, repo_url = $6, updated_at = NOW()
		WHERE id = $1 AND user_id = $2
	`, id, owner, in.Name, in.Description, in.DemoURL, in.RepoURL)
	if err != nil {
		return fmt.Errorf("portfolio: update project: %w", err)
	}
	return expectOneRow(res)
}

// DeleteProject removes a project owned by userID.
func (r *Repository) DeleteProject(ctx context.Context, userID, projectID string) error {
	owner, id, err := parseIDs(userID, projectID)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, `
		DELETE FROM projects
		WHERE id = $1 AND user_id = $2
	`, id, owner)
	if err != nil {
		return fmt.Errorf("portfolio: delete project: %w", err)
	}
	return expectOneRow(res)
}

func parseIDs(userID, projectID string) (uuid.UUID, uuid.UUID, error) {
	owner, err := uuid.Parse(userID)
	if err != nil {
		return uuid.Nil, uuid.Nil, ErrNotFound
	}
	id, err := uuid.Parse(projectID)
	if err != nil {
		return uuid.Nil, uuid.Nil, ErrNotFound
	}
	return owner, id, nil
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("portfolio: rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
