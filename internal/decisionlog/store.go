// Package decisionlog keeps an append-only record of scoring decisions. A record holds
// the result and an irreversible profile fingerprint, never applicant attributes.
package decisionlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"credit-risk/internal/common/database"
	"credit-risk/internal/scoring"
)

// ErrDecisionNotFound is returned by Get for an unknown id.
var ErrDecisionNotFound = errors.New("decision not found")

// Decision is one logged scoring outcome.
type Decision struct {
	ID            uuid.UUID
	ApplicationID string
	ModelVersion  string
	Fingerprint   string
	Probability   float64
	CreditScore   int
	Rating        scoring.Rating
	Cached        bool
	CreatedAt     time.Time
}

// Store persists decisions.
type Store interface {
	Record(ctx context.Context, d Decision) (Decision, error)
}

// NewDecision builds a record for a scored profile.
func NewDecision(applicationID string, profile scoring.ApplicantProfile, result scoring.ScoringResult, cached bool) Decision {
	return Decision{
		ApplicationID: applicationID,
		ModelVersion:  result.ModelVersion,
		Fingerprint:   profile.Fingerprint(),
		Probability:   result.Probability,
		CreditScore:   result.CreditScore,
		Rating:        result.Rating,
		Cached:        cached,
	}
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS credit_decisions (
		id UUID PRIMARY KEY,
		application_id TEXT NOT NULL,
		model_version TEXT NOT NULL,
		profile_fingerprint CHAR(64) NOT NULL,
		probability DOUBLE PRECISION NOT NULL,
		credit_score INTEGER NOT NULL,
		rating TEXT NOT NULL,
		cached BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS credit_decisions_application_idx ON credit_decisions (application_id)`,
}

const insertDecision = `INSERT INTO credit_decisions
	(id, application_id, model_version, profile_fingerprint, probability, credit_score, rating, cached, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

const selectDecision = `SELECT id, application_id, model_version, profile_fingerprint, probability, credit_score, rating, cached, created_at
	FROM credit_decisions WHERE id = $1`

// PostgresStore writes decisions to the credit_decisions table.
type PostgresStore struct {
	db  *database.PostgresClient
	now func() time.Time
}

func NewPostgresStore(db *database.PostgresClient) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

// EnsureSchema creates the table and index if they do not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	return s.db.Migrate(ctx, schemaStatements...)
}

// Record assigns an id and timestamp and inserts d.
func (s *PostgresStore) Record(ctx context.Context, d Decision) (Decision, error) {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = s.now().UTC()
	}

	_, err := s.db.Exec(ctx, insertDecision,
		d.ID, d.ApplicationID, d.ModelVersion, d.Fingerprint,
		d.Probability, d.CreditScore, string(d.Rating), d.Cached, d.CreatedAt,
	)
	if err != nil {
		return Decision{}, fmt.Errorf("insert decision: %w", err)
	}
	return d, nil
}

// Get loads one decision.
func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (Decision, error) {
	var (
		d      Decision
		rating string
	)
	err := s.db.QueryRow(ctx, selectDecision, id).Scan(
		&d.ID, &d.ApplicationID, &d.ModelVersion, &d.Fingerprint,
		&d.Probability, &d.CreditScore, &rating, &d.Cached, &d.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Decision{}, ErrDecisionNotFound
		}
		return Decision{}, fmt.Errorf("select decision: %w", err)
	}
	d.Rating = scoring.Rating(rating)
	return d, nil
}
