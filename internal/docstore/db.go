// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package docstore

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/pkg/errors"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var (
	// ErrUserNotFound is returned when no user matches a lookup.
	ErrUserNotFound = errors.New("user not found")

	// ErrEmailTaken is returned when signing up with a registered email.
	ErrEmailTaken = errors.New("email already registered")

	// ErrResetNotFound is returned for an unknown or expired reset code.
	ErrResetNotFound = errors.New("reset code not found or expired")
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            TEXT PRIMARY KEY,
		email         TEXT NOT NULL UNIQUE,
		display_name  TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		created_at    BIGINT NOT NULL,
		updated_at    BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS chats (
		user_id    TEXT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
		data       TEXT NOT NULL,
		total      INTEGER NOT NULL DEFAULT 0,
		updated_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS revoked_tokens (
		jti        TEXT PRIMARY KEY,
		expires_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS password_resets (
		code       TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		expires_at BIGINT NOT NULL
	)`,
}

// userRecord is a users row.
type userRecord struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	CreatedAt    int64
	UpdatedAt    int64
}

// chatsRecord is a chats row.
type chatsRecord struct {
	Data      string
	Total     int
	UpdatedAt int64
}

// DB is the docstore's SQL layer. Queries are written with ? placeholders
// and rebound for drivers that use numbered ones.
type DB struct {
	db     *sql.DB
	driver string
}

// OpenDB opens and migrates the database for driver. For sqlite the dsn is
// a file path whose directory is created if needed.
func OpenDB(driver, dsn string) (*DB, error) {
	var (
		db  *sql.DB
		err error
	)
	switch driver {
	case DriverSQLite:
		db, err = openSQLite(dsn)
	case DriverPostgres:
		db, err = openPostgres(dsn)
	default:
		return nil, errors.Errorf("unknown db driver %q: only 'sqlite' and 'postgres' are supported", driver)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to create db driver")
	}

	d := &DB{db: db, driver: driver}
	if err := d.migrate(context.Background()); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to initialize schema")
	}
	return d, nil
}

func openSQLite(path string) (*sql.DB, error) {
	if path == "" {
		return nil, errors.New("sqlite path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, errors.Wrap(err, "failed to create database directory")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database: %s", path)
	}

	// One writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, errors.Wrapf(err, "failed to set pragma %q", pragma)
		}
	}
	return db, nil
}

func openPostgres(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is empty")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(15 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to ping database")
	}
	return db, nil
}

// Driver returns the driver name the database was opened with.
func (d *DB) Driver() string {
	return d.driver
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks the connection.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

func (d *DB) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "failed to apply schema")
		}
	}
	return nil
}

// rebind rewrites ? placeholders as $1, $2, ... for postgres.
func (d *DB) rebind(query string) string {
	if d.driver != DriverPostgres {
		return query
	}
	var sb strings.Builder
	sb.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func (d *DB) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return d.db.ExecContext(ctx, d.rebind(query), args...)
}

func (d *DB) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return d.db.QueryRowContext(ctx, d.rebind(query), args...)
}

// ============================================================================
// USERS
// ============================================================================

// CreateUser inserts u. Email uniqueness is checked first so both drivers
// report ErrEmailTaken the same way.
func (d *DB) CreateUser(ctx context.Context, u *userRecord) error {
	if _, err := d.UserByEmail(ctx, u.Email); err == nil {
		return ErrEmailTaken
	} else if !errors.Is(err, ErrUserNotFound) {
		return err
	}

	_, err := d.exec(ctx,
		`INSERT INTO users (id, email, display_name, password_hash, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.DisplayName, u.PasswordHash, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return errors.Wrapf(err, "failed to insert user %s", u.ID)
	}
	return nil
}

// UserByEmail looks a user up by email.
func (d *DB) UserByEmail(ctx context.Context, email string) (*userRecord, error) {
	return d.scanUser(d.queryRow(ctx,
		`SELECT id, email, display_name, password_hash, created_at, updated_at
		 FROM users WHERE email = ?`, email))
}

// UserByID looks a user up by id.
func (d *DB) UserByID(ctx context.Context, id string) (*userRecord, error) {
	return d.scanUser(d.queryRow(ctx,
		`SELECT id, email, display_name, password_hash, created_at, updated_at
		 FROM users WHERE id = ?`, id))
}

func (d *DB) scanUser(row *sql.Row) (*userRecord, error) {
	var u userRecord
	err := row.Scan(&u.ID, &u.Email, &u.DisplayName, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read user")
	}
	return &u, nil
}

// UpdateDisplayName sets a user's display name.
func (d *DB) UpdateDisplayName(ctx context.Context, id, name string, now int64) error {
	return d.updateUser(ctx, `UPDATE users SET display_name = ?, updated_at = ? WHERE id = ?`, name, now, id)
}

// UpdatePassword sets a user's password hash.
func (d *DB) UpdatePassword(ctx context.Context, id, hash string, now int64) error {
	return d.updateUser(ctx, `UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`, hash, now, id)
}

func (d *DB) updateUser(ctx context.Context, query string, args ...any) error {
	res, err := d.exec(ctx, query, args...)
	if err != nil {
		return errors.Wrap(err, "failed to update user")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// ============================================================================
// CHATS
// ============================================================================

// Chats returns the user's chat document, creating an empty one when the
// user has none yet.
func (d *DB) Chats(ctx context.Context, userID string, now int64) (*chatsRecord, error) {
	var rec chatsRecord
	err := d.queryRow(ctx, `SELECT data, total, updated_at FROM chats WHERE user_id = ?`, userID).
		Scan(&rec.Data, &rec.Total, &rec.UpdatedAt)
	if err == nil {
		return &rec, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrap(err, "failed to read chats")
	}

	rec = chatsRecord{Data: "{}", UpdatedAt: now}
	if err := d.PutChats(ctx, userID, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// ChatStats returns the session count and last update without the document.
// A user with no document yet reports zeros.
func (d *DB) ChatStats(ctx context.Context, userID string) (total int, updatedAt int64, err error) {
	err = d.queryRow(ctx, `SELECT total, updated_at FROM chats WHERE user_id = ?`, userID).
		Scan(&total, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, errors.Wrap(err, "failed to read chat stats")
	}
	return total, updatedAt, nil
}

// PutChats replaces the user's chat document.
func (d *DB) PutChats(ctx context.Context, userID string, rec *chatsRecord) error {
	_, err := d.exec(ctx,
		`INSERT INTO chats (user_id, data, total, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET
		   data = excluded.data, total = excluded.total, updated_at = excluded.updated_at`,
		userID, rec.Data, rec.Total, rec.UpdatedAt)
	if err != nil {
		return errors.Wrapf(err, "failed to write chats for %s", userID)
	}
	return nil
}

// ============================================================================
// TOKENS AND RESETS
// ============================================================================

// RevokeToken records a signed-out token id until it would have expired.
func (d *DB) RevokeToken(ctx context.Context, jti string, expiresAt int64) error {
	_, err := d.exec(ctx,
		`INSERT INTO revoked_tokens (jti, expires_at) VALUES (?, ?) ON CONFLICT (jti) DO NOTHING`,
		jti, expiresAt)
	return errors.Wrap(err, "failed to revoke token")
}

// IsRevoked reports whether jti was signed out.
func (d *DB) IsRevoked(ctx context.Context, jti string) (bool, error) {
	var n int
	err := d.queryRow(ctx, `SELECT COUNT(*) FROM revoked_tokens WHERE jti = ?`, jti).Scan(&n)
	if err != nil {
		return false, errors.Wrap(err, "failed to check token")
	}
	return n > 0, nil
}

// CreateReset stores a password reset code for userID.
func (d *DB) CreateReset(ctx context.Context, code, userID string, expiresAt int64) error {
	_, err := d.exec(ctx,
		`INSERT INTO password_resets (code, user_id, expires_at) VALUES (?, ?, ?)`,
		code, userID, expiresAt)
	return errors.Wrap(err, "failed to store reset code")
}

// ConsumeReset deletes code and returns its user when it has not expired.
func (d *DB) ConsumeReset(ctx context.Context, code string, now int64) (string, error) {
	var (
		userID    string
		expiresAt int64
	)
	err := d.queryRow(ctx, `SELECT user_id, expires_at FROM password_resets WHERE code = ?`, code).
		Scan(&userID, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrResetNotFound
	}
	if err != nil {
		return "", errors.Wrap(err, "failed to read reset code")
	}
	if _, err := d.exec(ctx, `DELETE FROM password_resets WHERE code = ?`, code); err != nil {
		return "", errors.Wrap(err, "failed to delete reset code")
	}
	if expiresAt <= now {
		return "", ErrResetNotFound
	}
	return userID, nil
}

// Prune removes expired revocations and reset codes.
func (d *DB) Prune(ctx context.Context, now int64) error {
	if _, err := d.exec(ctx, `DELETE FROM revoked_tokens WHERE expires_at <= ?`, now); err != nil {
		return errors.Wrap(err, "failed to prune revoked tokens")
	}
	if _, err := d.exec(ctx, `DELETE FROM password_resets WHERE expires_at <= ?`, now); err != nil {
		return errors.Wrap(err, "failed to prune reset codes")
	}
	return nil
}
