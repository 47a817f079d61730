package directory

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresDirectory reads profiles from the users table.
//
// The pool is owned by the caller, matching the rest of the app's DB wiring.
type PostgresDirectory struct {
	pool   *pgxpool.Pool
	schema string
}

// DirectoryOption configures PostgresDirectory behavior.
type DirectoryOption func(*PostgresDirectory) error

// WithDirectorySchema sets the DB schema used by the directory (default: "pulse").
func WithDirectorySchema(schema string) DirectoryOption {
	return func(d *PostgresDirectory) error {
		schema = strings.TrimSpace(schema)
		if schema == "" || !identRE.MatchString(schema) {
			return errors.New("directory: invalid schema identifier")
		}
		d.schema = schema
		return nil
	}
}

// NewPostgresDirectory constructs a Postgres-backed Directory.
func NewPostgresDirectory(pool *pgxpool.Pool, opts ...DirectoryOption) (*PostgresDirectory, error) {
	d := &PostgresDirectory{pool: pool, schema: "pulse"}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(d); err != nil {
			return nil, err
		}
	}
	if d.pool == nil {
		return nil, errors.New("directory: nil pool")
	}
	return d, nil
}

// Lookup implements Directory.
func (d *PostgresDirectory) Lookup(ctx context.Context, userID string) (Profile, error) {
	if d == nil || d.pool == nil {
		return Profile{}, errors.New("directory: nil store")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Profile{}, ErrNotFound
	}
	if err := ctx.Err(); err != nil {
		return Profile{}, err
	}

	users := pgx.Identifier{d.schema, "users"}.Sanitize()

	var (
		p           Profile
		displayName *string
		avatarURL   *string
	)
	err := d.pool.QueryRow(ctx,
		`SELECT id, username, display_name, avatar_url FROM `+users+` WHERE id = $1`,
		userID,
	).Scan(&p.ID, &p.Username, &displayName, &avatarURL)
	if errors.Is(err, pgx.ErrNoRows) {
		return Profile{}, ErrNotFound
	}
	if err != nil {
		return Profile{}, err
	}

	if displayName != nil {
		p.DisplayName = *displayName
	}
	if avatarURL != nil {
		p.AvatarURL = *avatarURL
	}
	return p, nil
}

var identRE = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
