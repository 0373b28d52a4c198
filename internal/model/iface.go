package model

// BinaryModel is the first-stage model contract: normal vs attack.
// Implementations must be safe for concurrent use; the loaded parameters
// are read-only for the process lifetime.
type BinaryModel interface {
	PredictBinary(FeatureVector) (string, error)
}

// SecondaryModel is the second-stage model contract: dos vs other_attack.
// It is only consulted for flows the binary model labelled attack.
type SecondaryModel interface {
	PredictSecondary(FeatureVector) (string, error)
}

// FlowModels bundles both stages as loaded by the model store. The
// hierarchical classifier holds a non-owning reference to this.
type FlowModels interface {
	BinaryModel
	SecondaryModel
}

// FlowClassifier produces the final label triple for one feature vector.
type FlowClassifier interface {
	Classify(FeatureVector) (LabelTriple, error)
}
