package classifier

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/naf-analyzer/internal/model"
)

// ArtifactVersion is the current artifact schema version.
const ArtifactVersion = 1

// Artifact is the persisted form of a trained model and its decision
// threshold.
type Artifact struct {
	Version   int                `json:"version"`
	Features  []string           `json:"features"`
	Weights   []float64          `json:"weights"`
	Bias      float64            `json:"bias"`
	Threshold float64            `json:"threshold"`
	C         float64            `json:"c,omitempty"`
	TrainedAt time.Time          `json:"trained_at"`
	Report    *TrainReport       `json:"report,omitempty"`
	Metrics   map[string]float64 `json:"metrics,omitempty"`
}

// NewArtifact packages m with its threshold.
func NewArtifact(m *Logistic, threshold float64) *Artifact {
	a := &Artifact{
		Version:   ArtifactVersion,
		Features:  append([]string(nil), model.FeatureNames[:]...),
		Weights:   append([]float64(nil), m.Weights[:]...),
		Bias:      m.Bias,
		Threshold: threshold,
		TrainedAt: time.Now().UTC(),
	}
	return a
}

// Model rebuilds the logistic model, mapping stored weights onto the
// canonical feature order. Artifacts whose feature list is not a
// permutation of the canonical names are rejected.
func (a *Artifact) Model() (*Logistic, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	byName := make(map[string]float64, len(a.Features))
	for i, name := range a.Features {
		byName[name] = a.Weights[i]
	}
	m := &Logistic{Bias: a.Bias}
	for i, name := range model.FeatureNames {
		m.Weights[i] = byName[name]
	}
	return m, nil
}

// Validate checks the artifact's internal consistency.
func (a *Artifact) Validate() error {
	if a.Version != ArtifactVersion {
		return eris.Wrapf(model.ErrCorruptArtifact, "unsupported version %d", a.Version)
	}
	if len(a.Features) != model.NumFeatures || len(a.Weights) != model.NumFeatures {
		return eris.Wrapf(model.ErrCorruptArtifact, "expected %d features and weights, got %d and %d",
			model.NumFeatures, len(a.Features), len(a.Weights))
	}
	known := make(map[string]bool, model.NumFeatures)
	for _, name := range model.FeatureNames {
		known[name] = true
	}
	seen := make(map[string]bool, len(a.Features))
	for _, name := range a.Features {
		if !known[name] {
			return eris.Wrapf(model.ErrCorruptArtifact, "unknown feature %q", name)
		}
		if seen[name] {
			return eris.Wrapf(model.ErrCorruptArtifact, "duplicate feature %q", name)
		}
		seen[name] = true
	}
	for i, w := range a.Weights {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return eris.Wrapf(model.ErrCorruptArtifact, "weight %s is not finite", a.Features[i])
		}
	}
	if math.IsNaN(a.Bias) || math.IsInf(a.Bias, 0) {
		return eris.Wrap(model.ErrCorruptArtifact, "bias is not finite")
	}
	if math.IsNaN(a.Threshold) || a.Threshold < 0 || a.Threshold > 1 {
		return eris.Wrapf(model.ErrCorruptArtifact, "threshold %v outside [0,1]", a.Threshold)
	}
	return nil
}

// LoadArtifact reads and validates an artifact file.
func LoadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "classifier: read artifact %s", path)
	}
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, eris.Wrapf(model.ErrCorruptArtifact, "decode %s: %v", path, err)
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return &a, nil
}

// SaveArtifact writes a as indented JSON, creating parent directories.
func SaveArtifact(path string, a *Artifact) error {
	if err := a.Validate(); err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrapf(err, "classifier: create %s", dir)
		}
	}
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return eris.Wrap(err, "classifier: encode artifact")
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return eris.Wrapf(err, "classifier: write artifact %s", path)
	}
	return nil
}
