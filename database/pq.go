package database

import (
	"database/sql"
	"fmt"
	"log"

	"github.com/examlens/examlens-api/config"
	_ "github.com/lib/pq"
)

// Storage defines the interface that all database implementations must satisfy
type Storage interface {
	// Lifecycle methods
	Init() error
	Close() error
	HealthCheck() error

	// DB access
	GetDB() interface{} // Returns *gorm.DB for GORMStore, *sql.DB for PostgreSQLStore
}

// PostgreSQLStore is a raw database/sql implementation used where GORM is
// overkill: the checkevals ops CLI and low-level maintenance queries.
type PostgreSQLStore struct {
	db *sql.DB
}

// Start opens a raw PostgreSQL connection
func Start() (*PostgreSQLStore, error) {
	getEnv, err := config.Get()
	if err != nil {
		return nil, err
	}

	connectStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		getEnv.DB_HOST, getEnv.DB_PORT, getEnv.DB_USER_NAME,
		getEnv.DB_PASSWORD, getEnv.DB_NAME, getEnv.DB_SSL_MODE,
	)

	db, err := sql.Open("postgres", connectStr)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("unable to reach PostgreSQL: %w", err)
	}

	log.Println("Successfully connected to PostgreSQL Database.")
	return &PostgreSQLStore{db: db}, nil
}

// Init is a no-op for the raw store: the GORM store owns migrations, and the
// ops CLI only ever reads/updates existing tables.
func (s *PostgreSQLStore) Init() error {
	return nil
}

// Close closes the connection
func (s *PostgreSQLStore) Close() error {
	return s.db.Close()
}

// HealthCheck pings the database
func (s *PostgreSQLStore) HealthCheck() error {
	return s.db.Ping()
}

// GetDB returns the underlying *sql.DB
func (s *PostgreSQLStore) GetDB() interface{} {
	return s.db
}

// EvaluationStatusCount is one row of the per-status evaluation summary
type EvaluationStatusCount struct {
	Status string
	Count  int64
}

// CountEvaluationsByStatus summarizes the evaluations table per status
func (s *PostgreSQLStore) CountEvaluationsByStatus() ([]EvaluationStatusCount, error) {
	rows, err := s.db.Query(`
		SELECT status, COUNT(*)
		FROM evaluations
		WHERE deleted_at IS NULL
		GROUP BY status
		ORDER BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []EvaluationStatusCount
	for rows.Next() {
		var c EvaluationStatusCount
		if err := rows.Scan(&c.Status, &c.Count); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// StuckEvaluation is a processing record older than the given deadline
type StuckEvaluation struct {
	ID         int64
	Subject    string
	GradeLevel string
	AgeMinutes float64
}

// ListStuckEvaluations returns processing records older than maxAgeMinutes
func (s *PostgreSQLStore) ListStuckEvaluations(maxAgeMinutes int) ([]StuckEvaluation, error) {
	rows, err := s.db.Query(`
		SELECT id, subject, grade_level,
		       EXTRACT(EPOCH FROM (NOW() - created_at)) / 60 AS age_minutes
		FROM evaluations
		WHERE status = 'processing'
		  AND deleted_at IS NULL
		  AND created_at < NOW() - ($1 * INTERVAL '1 minute')
		ORDER BY created_at`, maxAgeMinutes)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stuck []StuckEvaluation
	for rows.Next() {
		var e StuckEvaluation
		if err := rows.Scan(&e.ID, &e.Subject, &e.GradeLevel, &e.AgeMinutes); err != nil {
			return nil, err
		}
		stuck = append(stuck, e)
	}
	return stuck, rows.Err()
}

// FailStuckEvaluations transitions stuck processing records to failed.
// The status guard in the WHERE clause keeps this safe against a grading
// pipeline finishing concurrently.
func (s *PostgreSQLStore) FailStuckEvaluations(maxAgeMinutes int, reason string) (int64, error) {
	res, err := s.db.Exec(`
		UPDATE evaluations
		SET status = 'failed', failure_reason = $1, failed_at = NOW(), updated_at = NOW()
		WHERE status = 'processing'
		  AND deleted_at IS NULL
		  AND created_at < NOW() - ($2 * INTERVAL '1 minute')`, reason, maxAgeMinutes)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
