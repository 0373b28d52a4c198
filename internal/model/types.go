package model

// Label values emitted by the two classification stages.
const (
	LabelNormal      = "normal"
	LabelAttack      = "attack"
	LabelDoS         = "dos"
	LabelOtherAttack = "other_attack"
)

// FeatureNames is the canonical feature order shared by the extractor, the
// model artifacts, and the batch output header. The loaded models were
// trained on exactly these names in exactly this order; extractor and model
// artifacts are versioned together.
var FeatureNames = []string{"proto", "state", "spkts", "dpkts", "sbytes", "dbytes", "dur"}

// FeatureVector is the canonical unit of work: one flow, reduced to the
// seven features the models consume. Numeric fields are non-negative;
// Proto and State are open-vocabulary categorical strings.
type FeatureVector struct {
	Proto  string
	State  string
	Spkts  int64
	Dpkts  int64
	Sbytes int64
	Dbytes int64
	Dur    float64
}

// LabelTriple is the combined output of the two-stage decision.
// Secondary is empty exactly when Binary is LabelNormal; Final is
// LabelNormal iff Binary is LabelNormal, otherwise Final equals Secondary.
type LabelTriple struct {
	Binary    string
	Secondary string
	Final     string
}
