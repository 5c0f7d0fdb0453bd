package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"rehearsal_scheduler/internal/config"
	"rehearsal_scheduler/internal/models"
	"rehearsal_scheduler/internal/storage"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresRepo struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, cfg *config.Config) (*PostgresRepo, error) {
	const op = "storage.postgres.New"

	poolConfig, err := pgxpool.ParseConfig(DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse config: %w", op, err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = time.Minute * 30

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create pool: %w", op, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s: failed to ping database: %w", op, err)
	}

	return &PostgresRepo{pool: pool}, nil
}

const publicColumns = `id, email, name, phone, role, profile_picture, preferences, created_at`

// SaveUser inserts a new account. The email is stored lowercased; the
// unique index turns a duplicate into storage.ErrUserExists.
func (r *PostgresRepo) SaveUser(ctx context.Context, email, name string, passHash []byte, prefs models.Preferences) (int64, error) {
	const op = "storage.postgres.SaveUser"

	prefsJSON, err := json.Marshal(prefs)
	if err != nil {
		return 0, fmt.Errorf("%s: failed to marshal preferences: %w", op, err)
	}

	query := `
		INSERT INTO users (email, name, role, preferences, password_hash)
		VALUES (lower($1), $2, $3, $4, $5)
		RETURNING id;
	`

	var id int64

	err = r.pool.QueryRow(ctx, query, email, name, models.RoleMember, prefsJSON, string(passHash)).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, storage.ErrUserExists
		}

		return 0, fmt.Errorf("%s: failed to save user: %w", op, err)
	}

	return id, nil
}

// UserByEmail returns the public projection. The password hash is never
// scanned here; use UserWithPasswordByEmail for credential checks.
func (r *PostgresRepo) UserByEmail(ctx context.Context, email string) (models.User, error) {
	query := `
		SELECT ` + publicColumns + `
		FROM users
		WHERE email = lower($1);
	`

	return r.scanPublicUser(r.pool.QueryRow(ctx, query, email))
}

func (r *PostgresRepo) UserByID(ctx context.Context, id int64) (models.User, error) {
	query := `
		SELECT ` + publicColumns + `
		FROM users
		WHERE id = $1;
	`

	return r.scanPublicUser(r.pool.QueryRow(ctx, query, id))
}

// UserWithPasswordByEmail is the single secret-bearing lookup used for
// login verification.
func (r *PostgresRepo) UserWithPasswordByEmail(ctx context.Context, email string) (models.User, error) {
	query := `
		SELECT ` + publicColumns + `, password_hash
		FROM users
		WHERE email = lower($1);
	`

	return r.scanUserWithPassword(r.pool.QueryRow(ctx, query, email))
}

func (r *PostgresRepo) UserWithPasswordByID(ctx context.Context, id int64) (models.User, error) {
	query := `
		SELECT ` + publicColumns + `, password_hash
		FROM users
		WHERE id = $1;
	`

	return r.scanUserWithPassword(r.pool.QueryRow(ctx, query, id))
}

func (r *PostgresRepo) UpdatePassword(ctx context.Context, userID int64, passHash []byte) error {
	const op = "storage.postgres.UpdatePassword"

	query := `UPDATE users SET password_hash = $1 WHERE id = $2`

	tag, err := r.pool.Exec(ctx, query, string(passHash), userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrUserNotFound
	}

	return nil
}

func (r *PostgresRepo) SetResetToken(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time) error {
	const op = "storage.postgres.SetResetToken"

	query := `UPDATE users SET reset_token_hash = $1, reset_expires_at = $2 WHERE id = $3`

	tag, err := r.pool.Exec(ctx, query, tokenHash, expiresAt, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrUserNotFound
	}

	return nil
}

func (r *PostgresRepo) ClearResetToken(ctx context.Context, userID int64) error {
	const op = "storage.postgres.ClearResetToken"

	query := `UPDATE users SET reset_token_hash = NULL, reset_expires_at = NULL WHERE id = $1`

	_, err := r.pool.Exec(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// ResetPasswordByTokenHash sets the new password hash and clears the reset
// fields in one statement. The expiry guard makes the token single-use:
// a second attempt matches no row and returns ErrResetTokenInvalid.
func (r *PostgresRepo) ResetPasswordByTokenHash(ctx context.Context, tokenHash string, passHash []byte, now time.Time) (models.User, error) {
	const op = "storage.postgres.ResetPasswordByTokenHash"

	query := `
		UPDATE users
		SET password_hash = $2, reset_token_hash = NULL, reset_expires_at = NULL
		WHERE reset_token_hash = $1 AND reset_expires_at > $3
		RETURNING ` + publicColumns + `;
	`

	u, err := r.scanPublicUser(r.pool.QueryRow(ctx, query, tokenHash, string(passHash), now))
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return models.User{}, storage.ErrResetTokenInvalid
		}

		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return u, nil
}

func (r *PostgresRepo) SaveBand(ctx context.Context, band models.Band) (int64, error) {
	const op = "storage.postgres.SaveBand"

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	defer tx.Rollback(ctx)

	var id int64

	err = tx.QueryRow(ctx, `
		INSERT INTO bands (name, description, genre, location, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id;
	`, band.Name, band.Description, band.Genre, band.Location, band.CreatedBy).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("%s: failed to save band: %w", op, err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO band_members (band_id, user_id, role)
		VALUES ($1, $2, $3);
	`, id, band.CreatedBy, models.BandRoleLeader)
	if err != nil {
		return 0, fmt.Errorf("%s: failed to add creator as leader: %w", op, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

func (r *PostgresRepo) BandByID(ctx context.Context, id int64) (models.Band, error) {
	const op = "storage.postgres.BandByID"

	query := `
		SELECT id, name, description, genre, location, created_by, created_at
		FROM bands
		WHERE id = $1;
	`

	var b models.Band
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&b.ID,
		&b.Name,
		&b.Description,
		&b.Genre,
		&b.Location,
		&b.CreatedBy,
		&b.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Band{}, storage.ErrBandNotFound
		}

		return models.Band{}, fmt.Errorf("%s: %w", op, err)
	}

	members, err := r.bandMembers(ctx, id)
	if err != nil {
		return models.Band{}, fmt.Errorf("%s: %w", op, err)
	}
	b.Members = members

	return b, nil
}

func (r *PostgresRepo) BandsByUser(ctx context.Context, userID int64) ([]models.Band, error) {
	const op = "storage.postgres.BandsByUser"

	query := `
		SELECT b.id, b.name, b.description, b.genre, b.location, b.created_by, b.created_at
		FROM bands b
		JOIN band_members m ON m.band_id = b.id
		WHERE m.user_id = $1
		ORDER BY b.created_at;
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var bands []models.Band

	for rows.Next() {
		var b models.Band
		err := rows.Scan(&b.ID, &b.Name, &b.Description, &b.Genre, &b.Location, &b.CreatedBy, &b.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		bands = append(bands, b)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("%s: %w", op, rows.Err())
	}

	for i := range bands {
		members, err := r.bandMembers(ctx, bands[i].ID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		bands[i].Members = members
	}

	return bands, nil
}

func (r *PostgresRepo) bandMembers(ctx context.Context, bandID int64) ([]models.BandMember, error) {
	query := `
		SELECT user_id, role, COALESCE(instrument, ''), joined_at
		FROM band_members
		WHERE band_id = $1
		ORDER BY joined_at;
	`

	rows, err := r.pool.Query(ctx, query, bandID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []models.BandMember

	for rows.Next() {
		var m models.BandMember
		if err := rows.Scan(&m.UserID, &m.Role, &m.Instrument, &m.JoinedAt); err != nil {
			return nil, err
		}
		members = append(members, m)
	}

	return members, rows.Err()
}

func (r *PostgresRepo) SaveVenue(ctx context.Context, venue models.Venue) (int64, error) {
	const op = "storage.postgres.SaveVenue"

	query := `
		INSERT INTO venues (name, address, phone)
		VALUES ($1, $2, $3)
		RETURNING id;
	`

	var id int64

	err := r.pool.QueryRow(ctx, query, venue.Name, venue.Address, venue.Phone).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("%s: failed to save venue: %w", op, err)
	}

	return id, nil
}

func (r *PostgresRepo) VenueByID(ctx context.Context, id int64) (models.Venue, error) {
	const op = "storage.postgres.VenueByID"

	query := `
		SELECT id, name, COALESCE(address, ''), COALESCE(phone, '')
		FROM venues
		WHERE id = $1;
	`

	var v models.Venue
	err := r.pool.QueryRow(ctx, query, id).Scan(&v.ID, &v.Name, &v.Address, &v.Phone)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Venue{}, storage.ErrVenueNotFound
		}

		return models.Venue{}, fmt.Errorf("%s: %w", op, err)
	}

	return v, nil
}

func (r *PostgresRepo) Venues(ctx context.Context) ([]models.Venue, error) {
	const op = "storage.postgres.Venues"

	query := `
		SELECT id, name, COALESCE(address, ''), COALESCE(phone, '')
		FROM venues
		ORDER BY name;
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var venues []models.Venue

	for rows.Next() {
		var v models.Venue
		if err := rows.Scan(&v.ID, &v.Name, &v.Address, &v.Phone); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		venues = append(venues, v)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("%s: %w", op, rows.Err())
	}

	return venues, nil
}

func (r *PostgresRepo) SaveRehearsal(ctx context.Context, reh models.Rehearsal) (int64, error) {
	const op = "storage.postgres.SaveRehearsal"

	query := `
		INSERT INTO rehearsals (band_id, venue_id, title, notes, status, start_time, end_time, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id;
	`

	var id int64

	err := r.pool.QueryRow(ctx, query,
		reh.BandID, reh.VenueID, reh.Title, reh.Notes, reh.Status, reh.StartTime, reh.EndTime, reh.CreatedBy,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("%s: failed to save rehearsal: %w", op, err)
	}

	return id, nil
}

func (r *PostgresRepo) RehearsalsByBand(ctx context.Context, bandID int64) ([]models.Rehearsal, error) {
	const op = "storage.postgres.RehearsalsByBand"

	query := `
		SELECT id, band_id, venue_id, title, COALESCE(notes, ''), status, start_time, end_time, created_by, created_at
		FROM rehearsals
		WHERE band_id = $1
		ORDER BY start_time;
	`

	rows, err := r.pool.Query(ctx, query, bandID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var rehearsals []models.Rehearsal

	for rows.Next() {
		var reh models.Rehearsal
		err := rows.Scan(
			&reh.ID,
			&reh.BandID,
			&reh.VenueID,
			&reh.Title,
			&reh.Notes,
			&reh.Status,
			&reh.StartTime,
			&reh.EndTime,
			&reh.CreatedBy,
			&reh.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		rehearsals = append(rehearsals, reh)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("%s: %w", op, rows.Err())
	}

	return rehearsals, nil
}

func (r *PostgresRepo) Close() {
	r.pool.Close()
}

// isUniqueViolation reports whether err is a unique-constraint violation
// from the driver, however deeply it is wrapped.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (r *PostgresRepo) scanPublicUser(row pgx.Row) (models.User, error) {
	var (
		u         models.User
		phone     *string
		picture   *string
		prefsJSON []byte
	)

	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Name,
		&phone,
		&u.Role,
		&picture,
		&prefsJSON,
		&u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, storage.ErrUserNotFound
		}

		return models.User{}, err
	}

	if phone != nil {
		u.Phone = *phone
	}
	if picture != nil {
		u.ProfilePicture = *picture
	}
	if len(prefsJSON) > 0 {
		if err := json.Unmarshal(prefsJSON, &u.Preferences); err != nil {
			return models.User{}, err
		}
	}

	return u, nil
}

func (r *PostgresRepo) scanUserWithPassword(row pgx.Row) (models.User, error) {
	var (
		u         models.User
		phone     *string
		picture   *string
		prefsJSON []byte
		passHash  string
	)

	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Name,
		&phone,
		&u.Role,
		&picture,
		&prefsJSON,
		&u.CreatedAt,
		&passHash,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, storage.ErrUserNotFound
		}

		return models.User{}, err
	}

	if phone != nil {
		u.Phone = *phone
	}
	if picture != nil {
		u.ProfilePicture = *picture
	}
	if len(prefsJSON) > 0 {
		if err := json.Unmarshal(prefsJSON, &u.Preferences); err != nil {
			return models.User{}, err
		}
	}
	u.PassHash = []byte(passHash)

	return u, nil
}

// * DSN формирует конфигурацию базы данных.
func DSN(cfg *config.Config) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s database=%s sslmode=%s",
		cfg.Postgres.Host,
		cfg.Postgres.Port,
		cfg.Postgres.User,
		cfg.Postgres.Password,
		cfg.Postgres.DBName,
		cfg.Postgres.SSLMode,
	)
}
