package services

// ConfidenceLevel is an advisory label derived from a prediction's
// confidence score. It is used for logging and triage only; the raw score
// is always persisted verbatim.
type ConfidenceLevel string

const (
	ConfidenceVeryLow ConfidenceLevel = "very-low"
	ConfidenceLow     ConfidenceLevel = "low"
	ConfidenceMedium  ConfidenceLevel = "medium"
	ConfidenceHigh    ConfidenceLevel = "high"
)

// ClassifyConfidence buckets a score in [0,1]. Scores below 0.1 usually
// mean feature normalization broke upstream, not an uncertain sign.
func ClassifyConfidence(score float64) ConfidenceLevel {
	switch {
	case score < 0.1:
		return ConfidenceVeryLow
	case score < 0.5:
		return ConfidenceLow
	case score < 0.8:
		return ConfidenceMedium
	default:
		return ConfidenceHigh
	}
}
