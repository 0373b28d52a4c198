// Package svm loads the two serialized flow classifiers and exposes a
// read-only prediction interface over them. Both artifacts are libsvm text
// models; each carries a JSON calibration sidecar (<artifact>.info) holding
// the preprocessing parameters it was trained with. The store treats that
// pipeline as opaque: it encodes the vector exactly as the sidecar dictates
// and trusts the parameters to match training.
package svm

import (
	"bytes"
	"fmt"
	"log"
	"os"

	libSvm "github.com/CyrusF/libsvm-go"

	"github.com/netsift/flowtriage/internal/model"
)

// Default artifact file names inside a models directory.
const (
	BinaryModelFile    = "svm_bin.model"
	SecondaryModelFile = "svm_dos_vs_other.model"
)

// SidecarSuffix is appended to an artifact path to locate its calibration.
const SidecarSuffix = ".info"

// Store owns both loaded models for the process lifetime. Loading happens
// once, before any classification work; predictions never mutate state, so
// a single Store is shared across goroutines without locking.
type Store struct {
	bin    *libSvm.Model
	binCal *Calibration
	sec    *libSvm.Model
	secCal *Calibration
}

// Load reads both model artifacts and their calibration sidecars. It is
// fail-fast: any missing or incompatible artifact makes the whole load fail,
// and the process must not serve predictions. There is no single-model
// degraded mode.
func Load(binPath, secondaryPath string) (*Store, error) {
	bin, binCal, err := loadOne(binPath)
	if err != nil {
		return nil, fmt.Errorf("binary model: %w", err)
	}
	sec, secCal, err := loadOne(secondaryPath)
	if err != nil {
		return nil, fmt.Errorf("secondary model: %w", err)
	}

	log.Printf("svm: loaded binary model %s (%s/%s, threshold %.3f)",
		binPath, binCal.Classes.Negative, binCal.Classes.Positive, binCal.Threshold)
	log.Printf("svm: loaded secondary model %s (%s/%s, threshold %.3f)",
		secondaryPath, secCal.Classes.Negative, secCal.Classes.Positive, secCal.Threshold)

	return &Store{bin: bin, binCal: binCal, sec: sec, secCal: secCal}, nil
}

func loadOne(path string) (*libSvm.Model, *Calibration, error) {
	cal, err := loadCalibration(path + SidecarSuffix)
	if err != nil {
		return nil, nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading model artifact: %w", err)
	}
	m := libSvm.NewModelFromFileStream(bytes.NewReader(data))
	if m == nil {
		return nil, nil, fmt.Errorf("parsing model artifact %s", path)
	}
	return m, cal, nil
}

// PredictBinary runs the first-stage model: normal vs attack.
func (s *Store) PredictBinary(fv model.FeatureVector) (string, error) {
	return predict(s.bin, s.binCal, fv, "binary")
}

// PredictSecondary runs the second-stage model: dos vs other_attack.
func (s *Store) PredictSecondary(fv model.FeatureVector) (string, error) {
	return predict(s.sec, s.secCal, fv, "secondary")
}

func predict(m *libSvm.Model, cal *Calibration, fv model.FeatureVector, stage string) (string, error) {
	x := cal.Encode(fv)
	_, values := m.PredictValues(x)
	if len(values) == 0 {
		return "", &model.InferenceError{Stage: stage, Err: fmt.Errorf("no decision value returned")}
	}
	return cal.Label(cal.Score(values[0])), nil
}
