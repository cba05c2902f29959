package voice

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema is the SQL DDL for the voice_profiles table. Execute it via
// [PostgresStore.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS voice_profiles (
    voice_id       TEXT PRIMARY KEY,
    name           TEXT NOT NULL,
    description    TEXT NOT NULL DEFAULT '',
    audio_filename TEXT NOT NULL DEFAULT '',
    created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_voice_profiles_name ON voice_profiles(name);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [Profiles] implementation backed by PostgreSQL.
// Metadata lives in the database; reference recordings stay on disk
// under filesRoot so providers can read them as files.
type PostgresStore struct {
	db        DB
	filesRoot string
}

// Compile-time interface check.
var _ Profiles = (*PostgresStore)(nil)

// NewPostgresStore creates a PostgresStore using the given connection or
// pool, with reference audio stored under filesRoot. The caller is
// responsible for calling [PostgresStore.Migrate] before issuing queries.
func NewPostgresStore(db DB, filesRoot string) *PostgresStore {
	return &PostgresStore{db: db, filesRoot: filesRoot}
}

// Migrate executes the [Schema] DDL, creating the voice_profiles table
// and index if they do not already exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("voice: migrate: %w", err)
	}
	return nil
}

// Dir implements [Profiles].
func (s *PostgresStore) Dir(id string) string {
	return filepath.Join(s.filesRoot, id)
}

// Create implements [Profiles].
func (s *PostgresStore) Create(ctx context.Context, p *Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	const query = `
		INSERT INTO voice_profiles (voice_id, name, description, audio_filename)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`
	err := s.db.QueryRow(ctx, query,
		p.VoiceID, p.Name, p.Description, p.AudioFilename,
	).Scan(&p.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("voice: profile %q already exists", p.VoiceID)
		}
		return fmt.Errorf("voice: create: %w", err)
	}
	if err := os.MkdirAll(s.Dir(p.VoiceID), 0o755); err != nil {
		return fmt.Errorf("voice: create profile dir: %w", err)
	}
	return nil
}

// Get implements [Profiles].
func (s *PostgresStore) Get(ctx context.Context, id string) (*Profile, error) {
	const query = `
		SELECT voice_id, name, description, audio_filename, created_at
		FROM voice_profiles
		WHERE voice_id = $1`
	var p Profile
	err := s.db.QueryRow(ctx, query, id).Scan(
		&p.VoiceID, &p.Name, &p.Description, &p.AudioFilename, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("voice: get %q: %w", id, err)
	}
	return &p, nil
}

// SetAudio implements [Profiles].
func (s *PostgresStore) SetAudio(ctx context.Context, id, filename string) error {
	const query = `
		UPDATE voice_profiles SET audio_filename = $2
		WHERE voice_id = $1
		RETURNING voice_id`
	var got string
	if err := s.db.QueryRow(ctx, query, id, filename).Scan(&got); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: %q", ErrNotFound, id)
		}
		return fmt.Errorf("voice: set audio %q: %w", id, err)
	}
	return nil
}

// List implements [Profiles].
func (s *PostgresStore) List(ctx context.Context) ([]Profile, error) {
	const query = `
		SELECT voice_id, name, description, audio_filename, created_at
		FROM voice_profiles
		ORDER BY name`
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("voice: list: %w", err)
	}
	defer rows.Close()

	var out []Profile
	for rows.Next() {
		var p Profile
		if err := rows.Scan(&p.VoiceID, &p.Name, &p.Description, &p.AudioFilename, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("voice: list scan: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("voice: list: %w", err)
	}
	return out, nil
}

// Delete implements [Profiles].
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM voice_profiles WHERE voice_id = $1`
	if _, err := s.db.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("voice: delete %q: %w", id, err)
	}
	if err := os.RemoveAll(s.Dir(id)); err != nil {
		return fmt.Errorf("voice: delete audio %q: %w", id, err)
	}
	return nil
}

// isDuplicateKeyError checks whether a PostgreSQL error is a
// unique-violation (SQLSTATE 23505).
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
