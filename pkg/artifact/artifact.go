// Package artifact persists the per-entity model artifacts produced by training
package artifact

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/ethpandaops/lossforecast/pkg/regression"
)

// Artifact is a fitted model together with the schema it was fitted on.
// Artifacts are immutable once stored; callers must not modify shared instances.
type Artifact struct {
	EntityID  string
	Label     string
	Kind      regression.Kind
	Columns   []string
	Target    string
	CVMAE     float64
	Samples   int
	TrainedAt time.Time
	Model     regression.Predictor
}

// FeatureColumns returns the ordered feature columns the model expects
func (a *Artifact) FeatureColumns() []string {
	return slices.Clone(a.Columns)
}

// TargetColumn returns the name of the predicted column
func (a *Artifact) TargetColumn() string {
	return a.Target
}

// Predict evaluates the model on a vector ordered like FeatureColumns
func (a *Artifact) Predict(x []float64) (float64, error) {
	return a.Model.Predict(x)
}

type wireArtifact struct {
	EntityID  string          `json:"entity_id"`
	Label     string          `json:"label,omitempty"`
	Kind      regression.Kind `json:"kind"`
	Columns   []string        `json:"feature_columns"`
	Target    string          `json:"target_column"`
	CVMAE     float64         `json:"cv_mae"`
	Samples   int             `json:"n_samples"`
	TrainedAt time.Time       `json:"trained_at"`
	Model     json.RawMessage `json:"model"`
}

// MarshalJSON implements json.Marshaler
func (a *Artifact) MarshalJSON() ([]byte, error) {
	model, err := regression.Marshal(a.Model)
	if err != nil {
		return nil, err
	}

	return json.Marshal(wireArtifact{
		EntityID:  a.EntityID,
		Label:     a.Label,
		Kind:      a.Kind,
		Columns:   a.Columns,
		Target:    a.Target,
		CVMAE:     a.CVMAE,
		Samples:   a.Samples,
		TrainedAt: a.TrainedAt,
		Model:     model,
	})
}

// UnmarshalJSON implements json.Unmarshaler
func (a *Artifact) UnmarshalJSON(data []byte) error {
	var w wireArtifact
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	model, err := regression.Unmarshal(w.Model)
	if err != nil {
		return err
	}

	if model.Features() != len(w.Columns) {
		return fmt.Errorf("%w: artifact %s lists %d columns, model has %d",
			regression.ErrDimensionMismatch, w.EntityID, len(w.Columns), model.Features())
	}

	*a = Artifact{
		EntityID:  w.EntityID,
		Label:     w.Label,
		Kind:      w.Kind,
		Columns:   w.Columns,
		Target:    w.Target,
		CVMAE:     w.CVMAE,
		Samples:   w.Samples,
		TrainedAt: w.TrainedAt,
		Model:     model,
	}

	return nil
}
