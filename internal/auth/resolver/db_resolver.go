package resolver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"portfolio-service/internal/auth"
	"portfolio-service/internal/db"

	"github.com/google/uuid"
)

// DBResolver resolves identities using the database.
type DBResolver struct {
	db *db.DB
}

func NewDBResolver(db *db.DB) *DBResolver {
	return &DBResolver{db: db}
}

// Resolve finds the user linked to identity, links it to an existing
// user with the same email, or creates a new user. All in one transaction.
func (r *DBResolver) Resolve(
	ctx context.Context,
	identity *auth.Identity,
) (auth.User, error) {

	if identity == nil {
		return auth.User{}, errors.New("identity is nil")
	}

	var (
		userID uuid.UUID
		email  string
	)

	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		// 1. Try identity lookup (provider + provider_user_id)
		err := tx.QueryRowContext(ctx, `
			SELECT u.id, u.email
			FROM identities i
			JOIN users u ON u.id = i.user_id
			WHERE i.provider = $1
			  AND i.provider_user_id = $2
		`,
			identity.Provider,
			identity.ProviderUserID,
		).Scan(&userID, &email)

		if err == nil {
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		// 2. Try email-based linking (existing user, new provider)
		err = tx.QueryRowContext(ctx, `
			SELECT id, email
			FROM users
			WHERE LOWER(email) = LOWER($1)
		`,
			identity.Email,
		).Scan(&userID, &email)

		if errors.Is(err, sql.ErrNoRows) {
			// 3. Create new user
			email = identity.Email
			err = tx.QueryRowContext(ctx, `
				INSERT INTO users (email, email_verified)
				VALUES ($1, $2)
				RETURNING id
			`,
				identity.Email,
				identity.EmailVerified,
			).Scan(&userID)
		}
		if err != nil {
			return err
		}

		// 4. Create identity mapping
		_, err = tx.ExecContext(ctx, `
			INSERT INTO identities (user_id, provider, provider_user_id)
			VALUES ($1, $2, $3)
		`,
			userID,
			identity.Provider,
			identity.ProviderUserID,
		)
		return err
	})
	if err != nil {
		return auth.User{}, fmt.Errorf("resolver: %w", err)
	}

	return auth.User{ID: userID.String(), Email: email}, nil
}
