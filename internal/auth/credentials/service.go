package credentials

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"portfolio-service/internal/db"

	"github.com/google/uuid"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAlreadyRegistered  = errors.New("credentials already exist")
	ErrUnknownAccount     = errors.New("unknown account")
)

type Service struct {
	db *db.DB
}

func NewService(db *db.DB) *Service {
	return &Service{db: db}
}

// Register creates the user (or reuses one created by a social sign-in)
// and attaches a password credential to it.
func (s *Service) Register(
	ctx context.Context,
	email string,
	password string,
) (Account, error) {

	email = normalizeEmail(email)

	hash, version, err := HashPassword(password)
	if err != nil {
		return Account{}, err
	}

	var userID uuid.UUID

	err = s.db.WithTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			SELECT id FROM users
			WHERE LOWER(email) = LOWER($1)
		`, email).Scan(&userID)

		if errors.Is(err, sql.ErrNoRows) {
			err = tx.QueryRowContext(ctx, `
				INSERT INTO users (email, email_verified)
				VALUES ($1, false)
				RETURNING id
			`, email).Scan(&userID)
		}
		if err != nil {
			return err
		}

		var exists bool
		err = tx.QueryRowContext(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM credentials WHERE user_id = $1
			)
		`, userID).Scan(&exists)
		if err != nil {
			return err
		}
		if exists {
			return ErrAlreadyRegistered
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO credentials (user_id, password_hash, hash_version)
			VALUES ($1, $2, $3)
		`, userID, hash, version)
		return err
	})
	if err != nil {
		return Account{}, err
	}

	return Account{UserID: userID.String(), Email: email}, nil
}

func (s *Service) Authenticate(
	ctx context.Context,
	email string,
	password string,
) (Account, error) {

	var (
		userID       uuid.UUID
		storedEmail  string
		passwordHash string
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT u.id, u.email, c.password_hash
		FROM users u
		JOIN credentials c ON c.user_id = u.id
		WHERE LOWER(u.email) = LOWER($1)
	`, normalizeEmail(email)).Scan(&userID, &storedEmail, &passwordHash)

	if errors.Is(err, sql.ErrNoRows) {
		// hide whether user exists or not
		return Account{}, ErrInvalidCredentials
	}
	if err != nil {
		return Account{}, fmt.Errorf("credentials: lookup: %w", err)
	}

	if err := VerifyPassword(passwordHash, password); err != nil {
		return Account{}, ErrInvalidCredentials
	}

	return Account{UserID: userID.String(), Email: storedEmail}, nil
}

// FindByEmail returns the account registered under email.
func (s *Service) FindByEmail(ctx context.Context, email string) (Account, error) {
	var userID uuid.UUID
	var storedEmail string

	err := s.db.QueryRowContext(ctx, `
		SELECT id, email FROM users
		WHERE LOWER(email) = LOWER($1)
	`, normalizeEmail(email)).Scan(&userID, &storedEmail)

	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, ErrUnknownAccount
	}
	if err != nil {
		return Account{}, fmt.Errorf("credentials: lookup: %w", err)
	}
	return Account{UserID: userID.String(), Email: storedEmail}, nil
}

// SetPassword replaces (or creates) the password credential of a user.
func (s *Service) SetPassword(ctx context.Context, userID string, password string) error {
	id, err := uuid.Parse(userID)
	if err != nil {
		return ErrUnknownAccount
	}

	hash, version, err := HashPassword(password)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO credentials (user_id, password_hash, hash_version)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET password_hash = EXCLUDED.password_hash,
		    hash_version = EXCLUDED.hash_version,
		    updated_at = NOW()
	`, id, hash, version)
	if err != nil {
		return fmt.Errorf("credentials: set password: %w", err)
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(email)
}
