package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"summitsafeguard/go-tracker-server/internal/model"

	_ "modernc.org/sqlite"
)

// timeFormat is RFC3339 with fixed-width nanoseconds so the stored text
// sorts chronologically.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// Sentinel errors callers branch on. Handlers map these to user-visible
// validation failures without exposing store detail.
var (
	ErrDuplicateUsername = errors.New("username already exists")
	ErrAccountNotFound   = errors.New("account not found")
)

// Store wraps the SQLite database connection and schema lifecycle.
type Store struct {
	db *sql.DB
}

// Open initializes the database connection, creating directories as needed.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(ON)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// InitSchema ensures baseline tables exist.
func (s *Store) InitSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS pendaki_data (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			hiker_id TEXT NOT NULL,
			latitude REAL NOT NULL,
			longitude REAL NOT NULL,
			temperature REAL,
			humidity REAL,
			sos INTEGER NOT NULL DEFAULT 0,
			observed_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
		);`,
		`CREATE INDEX IF NOT EXISTS idx_pendaki_data_hiker_time ON pendaki_data(hiker_id, observed_at);`,
		`CREATE TABLE IF NOT EXISTS accounts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			role TEXT NOT NULL,
			bound_hiker_id TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
		);`,
		`CREATE TABLE IF NOT EXISTS ingestion_errors (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			topic TEXT,
			payload TEXT,
			error TEXT NOT NULL,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
		);`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}

	return nil
}

// DB exposes the underlying sql.DB for callers that need raw access.
func (s *Store) DB() *sql.DB {
	return s.db
}

// InsertTelemetry persists a validated reading. The observation timestamp is
// assigned here, at write time, never taken from the device.
func (s *Store) InsertTelemetry(ctx context.Context, r model.TelemetryRecord) error {
	if s.db == nil {
		return fmt.Errorf("store not initialized")
	}

	observedAt := time.Now().UTC()

	var temperature, humidity sql.NullFloat64
	if r.Temperature != nil {
		temperature = sql.NullFloat64{Float64: *r.Temperature, Valid: true}
	}
	if r.Humidity != nil {
		humidity = sql.NullFloat64{Float64: *r.Humidity, Valid: true}
	}

	sos := 0
	if r.SOSActive {
		sos = 1
	}

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO pendaki_data (hiker_id, latitude, longitude, temperature, humidity, sos, observed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?);`,
		r.HikerID,
		r.Latitude,
		r.Longitude,
		temperature,
		humidity,
		sos,
		observedAt.Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("insert telemetry: %w", err)
	}

	return nil
}

// RecentTelemetry returns the most recent readings for one hiker, newest
// first. Fewer than limit rows is not an error; neither is zero.
func (s *Store) RecentTelemetry(ctx context.Context, hikerID string, limit int) ([]model.TelemetryRecord, error) {
	if s.db == nil {
		return nil, fmt.Errorf("store not initialized")
	}

	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, hiker_id, latitude, longitude, temperature, humidity, sos, observed_at
		 FROM pendaki_data
		 WHERE hiker_id = ?
		 ORDER BY observed_at DESC, id DESC
		 LIMIT ?;`,
		hikerID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent telemetry: %w", err)
	}
	defer rows.Close()

	records := make([]model.TelemetryRecord, 0, limit)

	for rows.Next() {
		var (
			id            int64
			hiker         string
			lat, lon      float64
			temperature   sql.NullFloat64
			humidity      sql.NullFloat64
			sos           int
			observedAtStr string
		)

		if err := rows.Scan(&id, &hiker, &lat, &lon, &temperature, &humidity, &sos, &observedAtStr); err != nil {
			return nil, fmt.Errorf("scan telemetry: %w", err)
		}

		observedAt, err := time.Parse(time.RFC3339Nano, observedAtStr)
		if err != nil {
			observedAt, _ = time.Parse("2006-01-02T15:04:05Z07:00", observedAtStr)
		}

		record := model.TelemetryRecord{
			ID:         id,
			HikerID:    hiker,
			Latitude:   lat,
			Longitude:  lon,
			SOSActive:  sos != 0,
			ObservedAt: observedAt,
		}
		if temperature.Valid {
			v := temperature.Float64
			record.Temperature = &v
		}
		if humidity.Valid {
			v := humidity.Float64
			record.Humidity = &v
		}

		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate telemetry: %w", err)
	}

	return records, nil
}

// ListHikerIDs returns the distinct hiker identifiers that have telemetry.
func (s *Store) ListHikerIDs(ctx context.Context) ([]string, error) {
	if s.db == nil {
		return nil, fmt.Errorf("store not initialized")
	}

	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT hiker_id FROM pendaki_data ORDER BY hiker_id;`)
	if err != nil {
		return nil, fmt.Errorf("query hiker ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan hiker id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate hiker ids: %w", err)
	}

	return ids, nil
}

// InsertIngestionError records a message that failed parsing or persistence.
func (s *Store) InsertIngestionError(ctx context.Context, e model.IngestionError) error {
	if s.db == nil {
		return fmt.Errorf("store not initialized")
	}

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO ingestion_errors (topic, payload, error) VALUES (?, ?, ?);`,
		e.Topic,
		e.Payload,
		e.Error,
	)
	if err != nil {
		return fmt.Errorf("insert ingestion error: %w", err)
	}
	return nil
}

// CreateAccount inserts a new account and returns it with its assigned id.
// The username must be unique; the password must already be hashed.
func (s *Store) CreateAccount(ctx context.Context, a model.Account) (model.Account, error) {
	if s.db == nil {
		return model.Account{}, fmt.Errorf("store not initialized")
	}

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO accounts (username, password_hash, role, bound_hiker_id) VALUES (?, ?, ?, ?);`,
		a.Username,
		a.PasswordHash,
		string(a.Role),
		a.BoundHikerID,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return model.Account{}, ErrDuplicateUsername
		}
		return model.Account{}, fmt.Errorf("insert account: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return model.Account{}, fmt.Errorf("account insert id: %w", err)
	}

	a.ID = id
	return a, nil
}

// AccountByUsername loads one account by its unique username.
func (s *Store) AccountByUsername(ctx context.Context, username string) (model.Account, error) {
	if s.db == nil {
		return model.Account{}, fmt.Errorf("store not initialized")
	}

	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, username, password_hash, role, bound_hiker_id FROM accounts WHERE username = ?;`,
		username,
	)
	return scanAccount(row)
}

// AccountByID loads one account by surrogate id.
func (s *Store) AccountByID(ctx context.Context, id int64) (model.Account, error) {
	if s.db == nil {
		return model.Account{}, fmt.Errorf("store not initialized")
	}

	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, username, password_hash, role, bound_hiker_id FROM accounts WHERE id = ?;`,
		id,
	)
	return scanAccount(row)
}

func scanAccount(row *sql.Row) (model.Account, error) {
	var (
		a    model.Account
		role string
	)
	err := row.Scan(&a.ID, &a.Username, &a.PasswordHash, &role, &a.BoundHikerID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Account{}, ErrAccountNotFound
	}
	if err != nil {
		return model.Account{}, fmt.Errorf("scan account: %w", err)
	}
	a.Role = model.Role(role)
	return a, nil
}

// ListAccounts returns all accounts ordered by id.
func (s *Store) ListAccounts(ctx context.Context) ([]model.Account, error) {
	if s.db == nil {
		return nil, fmt.Errorf("store not initialized")
	}

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, username, password_hash, role, bound_hiker_id FROM accounts ORDER BY id;`)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []model.Account
	for rows.Next() {
		var (
			a    model.Account
			role string
		)
		if err := rows.Scan(&a.ID, &a.Username, &a.PasswordHash, &role, &a.BoundHikerID); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		a.Role = model.Role(role)
		accounts = append(accounts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}

	return accounts, nil
}

// UpdateAccount replaces the stored username, role, binding, and password
// hash for one account. The caller decides whether the hash changes.
func (s *Store) UpdateAccount(ctx context.Context, a model.Account) error {
	if s.db == nil {
		return fmt.Errorf("store not initialized")
	}

	res, err := s.db.ExecContext(
		ctx,
		`UPDATE accounts SET username = ?, password_hash = ?, role = ?, bound_hiker_id = ? WHERE id = ?;`,
		a.Username,
		a.PasswordHash,
		string(a.Role),
		a.BoundHikerID,
		a.ID,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicateUsername
		}
		return fmt.Errorf("update account: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	if affected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// DeleteAccount removes one account by id.
func (s *Store) DeleteAccount(ctx context.Context, id int64) error {
	if s.db == nil {
		return fmt.Errorf("store not initialized")
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?;`, id)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if affected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// CountAccounts returns the number of stored accounts.
func (s *Store) CountAccounts(ctx context.Context) (int, error) {
	if s.db == nil {
		return 0, fmt.Errorf("store not initialized")
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts;`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count accounts: %w", err)
	}
	return count, nil
}
