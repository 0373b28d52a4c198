package svm

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/netsift/flowtriage/internal/model"
)

// Calibration is the JSON sidecar shipped alongside each model artifact. It
// carries everything the training pipeline fixed at export time: the feature
// order, per-feature standardization parameters, the categorical
// vocabularies, the fitted sigmoid, the deployment threshold, and the class
// mapping. Artifact and sidecar are versioned together with the extractor
// schema.
type Calibration struct {
	FeatureNames  []string            `json:"feature_names"`
	NumFeatures   int                 `json:"num_features"`
	FeatureStats  FeatureStats        `json:"feature_stats"`
	SigmoidParams SigmoidParams       `json:"sigmoid_params"`
	Threshold     float64             `json:"threshold"`
	Classes       ClassMapping        `json:"class_mapping"`
	Categories    map[string][]string `json:"categories"`
}

// FeatureStats holds per-feature standardization parameters. Entries are
// positional, matching FeatureNames. A zero standard deviation disables
// standardization for that feature (categorical codes keep their raw value).
type FeatureStats struct {
	Means []float64 `json:"means"`
	Stds  []float64 `json:"stds"`
}

// SigmoidParams maps a raw SVM decision value to a probability via
// 1/(1+exp(-a*(x-b))).
type SigmoidParams struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
}

// ClassMapping names the label on each side of the calibrated threshold.
type ClassMapping struct {
	Negative string `json:"negative"`
	Positive string `json:"positive"`
}

func loadCalibration(path string) (*Calibration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading calibration sidecar: %w", err)
	}

	var cal Calibration
	if err := json.Unmarshal(data, &cal); err != nil {
		return nil, fmt.Errorf("parsing calibration sidecar %s: %w", path, err)
	}
	if err := cal.validate(); err != nil {
		return nil, fmt.Errorf("calibration sidecar %s: %w", path, err)
	}
	return &cal, nil
}

func (c *Calibration) validate() error {
	if c.NumFeatures == 0 {
		c.NumFeatures = len(c.FeatureNames)
	}
	if len(c.FeatureNames) != len(model.FeatureNames) {
		return fmt.Errorf("expected %d features, sidecar declares %d", len(model.FeatureNames), len(c.FeatureNames))
	}
	for i, name := range model.FeatureNames {
		if c.FeatureNames[i] != name {
			return fmt.Errorf("feature %d is %q, want %q", i, c.FeatureNames[i], name)
		}
	}
	if len(c.FeatureStats.Means) != c.NumFeatures || len(c.FeatureStats.Stds) != c.NumFeatures {
		return fmt.Errorf("feature stats cover %d/%d features, want %d",
			len(c.FeatureStats.Means), len(c.FeatureStats.Stds), c.NumFeatures)
	}
	if c.SigmoidParams.A == 0 {
		c.SigmoidParams.A = 1.0
	}
	if c.Threshold <= 0 || c.Threshold >= 1 {
		return fmt.Errorf("threshold %v outside (0,1)", c.Threshold)
	}
	if c.Classes.Negative == "" || c.Classes.Positive == "" {
		return fmt.Errorf("incomplete class mapping")
	}
	return nil
}

// Encode maps a FeatureVector onto libsvm's 1-based sparse feature indices.
// Categorical features resolve through the sidecar vocabulary; a category
// unseen at training time falls into the reserved "unknown" slot (code 0)
// rather than failing. Numeric features are standardized when the sidecar
// carries a positive standard deviation.
func (c *Calibration) Encode(fv model.FeatureVector) map[int]float64 {
	raw := []float64{
		c.categoryCode("proto", fv.Proto),
		c.categoryCode("state", fv.State),
		float64(fv.Spkts),
		float64(fv.Dpkts),
		float64(fv.Sbytes),
		float64(fv.Dbytes),
		fv.Dur,
	}

	x := make(map[int]float64, len(raw))
	for i, v := range raw {
		if std := c.FeatureStats.Stds[i]; std > 0 {
			v = (v - c.FeatureStats.Means[i]) / std
		}
		x[i+1] = v
	}
	return x
}

func (c *Calibration) categoryCode(name, value string) float64 {
	for i, cat := range c.Categories[name] {
		if cat == value {
			// Slot 0 is reserved for unknown.
			return float64(i + 1)
		}
	}
	// Unseen category, or the explicit unknown sentinel.
	return 0
}

// Score converts a raw decision value into a calibrated probability.
func (c *Calibration) Score(decision float64) float64 {
	return 1.0 / (1.0 + math.Exp(-c.SigmoidParams.A*(decision-c.SigmoidParams.B)))
}

// Label applies the deployment threshold to a calibrated score.
func (c *Calibration) Label(score float64) string {
	if score >= c.Threshold {
		return c.Classes.Positive
	}
	return c.Classes.Negative
}
