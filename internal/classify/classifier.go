// Package classify implements the two-stage hierarchical decision over the
// loaded flow models.
package classify

import (
	"github.com/netsift/flowtriage/internal/model"
)

// Classifier fuses the binary and secondary model outputs into one final
// label. It holds no state beyond a non-owning reference to the models and
// is a pure function of its input: no retries, no randomness.
type Classifier struct {
	models model.FlowModels
}

// New returns a classifier over the given models.
func New(models model.FlowModels) *Classifier {
	return &Classifier{models: models}
}

// Classify runs the two-stage decision:
//
//  1. The binary model labels the flow normal or attack.
//  2. A normal flow short-circuits: the secondary model is never invoked and
//     the final label is normal.
//  3. An attack flow is handed to the secondary model, whose dos /
//     other_attack output becomes the final label.
//
// A prediction error from either stage propagates to the caller unmodified;
// the classifier never substitutes a label for a failed inference.
func (c *Classifier) Classify(fv model.FeatureVector) (model.LabelTriple, error) {
	binary, err := c.models.PredictBinary(fv)
	if err != nil {
		return model.LabelTriple{}, err
	}

	if binary == model.LabelNormal {
		return model.LabelTriple{
			Binary: model.LabelNormal,
			Final:  model.LabelNormal,
		}, nil
	}

	secondary, err := c.models.PredictSecondary(fv)
	if err != nil {
		return model.LabelTriple{}, err
	}

	return model.LabelTriple{
		Binary:    binary,
		Secondary: secondary,
		Final:     secondary,
	}, nil
}
