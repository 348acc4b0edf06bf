package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ballotbrief/ballotbrief/internal/core/domain"
)

type ProfileRepository struct {
	db *sql.DB
}

func NewProfileRepository(db *sql.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func (r *ProfileRepository) Create(ctx context.Context, profile *domain.VoterProfile) error {
	issuesJSON, err := json.Marshal(profile.Issues)
	if err != nil {
		return fmt.Errorf("marshal issues: %w", err)
	}
	demographicsJSON, err := json.Marshal(profile.Demographics)
	if err != nil {
		return fmt.Errorf("marshal demographics: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO voter_profiles (id, issues, demographics, created_at)
VALUES ($1,$2,$3,$4)
`, profile.ID, issuesJSON, demographicsJSON, profile.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert voter profile: %w", err)
	}
	return nil
}

func (r *ProfileRepository) GetByID(ctx context.Context, id string) (*domain.VoterProfile, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, issues, demographics, created_at
FROM voter_profiles
WHERE id = $1
`, id)

	var profile domain.VoterProfile
	var issuesRaw, demographicsRaw []byte

	err := row.Scan(&profile.ID, &issuesRaw, &demographicsRaw, &profile.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get voter profile", fmt.Errorf("profile %s", id))
		}
		return nil, fmt.Errorf("scan voter profile: %w", err)
	}

	if err := json.Unmarshal(issuesRaw, &profile.Issues); err != nil {
		return nil, fmt.Errorf("unmarshal issues: %w", err)
	}
	if err := json.Unmarshal(demographicsRaw, &profile.Demographics); err != nil {
		return nil, fmt.Errorf("unmarshal demographics: %w", err)
	}
	return &profile, nil
}
