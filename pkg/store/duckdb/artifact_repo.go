package duckdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// Artifact kinds persisted per pipeline run.
const (
	ArtifactThresholds  = "clip_thresholds"
	ArtifactScaler      = "scaler"
	ArtifactRegimeModel = "regime_model"
	ArtifactManifest    = "manifest"
)

// ArtifactRepo stores fitted-model artifacts as JSON so a later inference
// run can reload them without refitting.
type ArtifactRepo struct {
	client *Client
}

// NewArtifactRepo creates an artifact repository.
func NewArtifactRepo(client *Client) *ArtifactRepo {
	return &ArtifactRepo{client: client}
}

// Save marshals and upserts one artifact under (kind, version).
func (r *ArtifactRepo) Save(ctx context.Context, kind string, version int, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s artifact: %w", kind, err)
	}
	query := `
		INSERT INTO artifacts (kind, version, payload)
		VALUES (?, ?, ?)
		ON CONFLICT (kind, version) DO UPDATE SET
			payload = EXCLUDED.payload,
			created_at = CURRENT_TIMESTAMP
	`
	if err := r.client.Exec(ctx, query, kind, version, string(data)); err != nil {
		return fmt.Errorf("failed to save %s artifact: %w", kind, err)
	}
	return nil
}

// Load unmarshals one artifact into out.
func (r *ArtifactRepo) Load(ctx context.Context, kind string, version int, out interface{}) error {
	var payload string
	err := r.client.QueryRow(ctx,
		"SELECT payload FROM artifacts WHERE kind = ? AND version = ?", kind, version,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return fmt.Errorf("no %s artifact at version %d", kind, version)
	}
	if err != nil {
		return fmt.Errorf("failed to load %s artifact: %w", kind, err)
	}
	if err := json.Unmarshal([]byte(payload), out); err != nil {
		return fmt.Errorf("failed to unmarshal %s artifact: %w", kind, err)
	}
	return nil
}
