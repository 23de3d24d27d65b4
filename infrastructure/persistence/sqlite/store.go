// Package sqlite is the durable ports.PatientStore backed by a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	"rhealth-backend/domain/patient"
	apperrors "rhealth-backend/pkg/errors"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - empty database
// 1 - patients table
const currentSchemaVersion = 1

// Store provides durable storage for the patient roster.
// Uses SQLite with WAL mode for concurrent read access.
type Store struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and migrations automatically.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode
//   - 5-second busy timeout for lock contention
//
// This function is idempotent - safe to call multiple times.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SchemaVersion reports the user_version of the open database
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("get user_version: %w", err)
	}
	return version, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if _, err := db.Exec(schemaSQL); err != nil {
			return fmt.Errorf("failed to execute schema: %w", err)
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

const selectColumns = `id, name, age, gender, heart_rate, oxygen_saturation, temperature`

// Insert writes a new row and returns it with the assigned ID
func (s *Store) Insert(ctx context.Context, fields patient.Fields) (patient.Patient, error) {
	p := patient.New(0, fields)

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO patients (name, age, gender, heart_rate, oxygen_saturation, temperature)
		VALUES (?, ?, ?, ?, ?, ?)
	`, p.Name, p.Age, p.Gender, nullFloat(p.HeartRate), nullFloat(p.OxygenSaturation), nullFloat(p.Temperature))
	if err != nil {
		return patient.Patient{}, apperrors.NewStore("failed to insert patient", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return patient.Patient{}, apperrors.NewStore("failed to read inserted id", err)
	}
	p.ID = id
	return p, nil
}

// Update applies the patch inside a transaction and returns the stored row
func (s *Store) Update(ctx context.Context, id int64, patch patient.Patch) (patient.Patient, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return patient.Patient{}, apperrors.NewStore("failed to begin transaction", err)
	}
	defer tx.Rollback()

	current, err := scanPatient(tx.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM patients WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return patient.Patient{}, apperrors.NewNotFound(fmt.Sprintf("patient %d not found", id))
	}
	if err != nil {
		return patient.Patient{}, apperrors.NewStore("failed to read patient", err)
	}

	updated := patient.Apply(current, patch)
	_, err = tx.ExecContext(ctx, `
		UPDATE patients
		SET name = ?, age = ?, gender = ?, heart_rate = ?, oxygen_saturation = ?, temperature = ?,
		    updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
		WHERE id = ?
	`, updated.Name, updated.Age, updated.Gender,
		nullFloat(updated.HeartRate), nullFloat(updated.OxygenSaturation), nullFloat(updated.Temperature), id)
	if err != nil {
		return patient.Patient{}, apperrors.NewStore("failed to update patient", err)
	}

	if err := tx.Commit(); err != nil {
		return patient.Patient{}, apperrors.NewStore("failed to commit update", err)
	}
	return updated, nil
}

// Delete removes a row
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM patients WHERE id = ?`, id)
	if err != nil {
		return apperrors.NewStore("failed to delete patient", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperrors.NewStore("failed to confirm delete", err)
	}
	if n == 0 {
		return apperrors.NewNotFound(fmt.Sprintf("patient %d not found", id))
	}
	return nil
}

// ListAll returns every row ordered by ID
func (s *Store) ListAll(ctx context.Context) ([]patient.Patient, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM patients ORDER BY id`)
	if err != nil {
		return nil, apperrors.NewStore("failed to list patients", err)
	}
	defer rows.Close()

	roster := []patient.Patient{}
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, apperrors.NewStore("failed to scan patient", err)
		}
		roster = append(roster, p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStore("failed to list patients", err)
	}
	return roster, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPatient(row scanner) (patient.Patient, error) {
	var (
		p                     patient.Patient
		hr, spo2, temperature sql.NullFloat64
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Age, &p.Gender, &hr, &spo2, &temperature); err != nil {
		return patient.Patient{}, err
	}
	p.HeartRate = floatPtr(hr)
	p.OxygenSaturation = floatPtr(spo2)
	p.Temperature = floatPtr(temperature)
	return p, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
