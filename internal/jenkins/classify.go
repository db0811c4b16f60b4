package jenkins

// resultSuccess is the literal marker the upstream uses for a passed build.
const resultSuccess = "SUCCESS"

// Outcome is the semantic classification of a build record.
type Outcome int

const (
	OutcomeUnknown Outcome = iota
	OutcomeSuccess
	OutcomeFailed
	OutcomeRunning
	// OutcomeMissing means no build record exists at all. It is surfaced by
	// callers when the job summary has no lastBuild reference; ClassifyResult
	// never produces it.
	OutcomeMissing
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailed:
		return "failed"
	case OutcomeRunning:
		return "running"
	case OutcomeMissing:
		return "missing"
	default:
		return "unknown"
	}
}

// ClassifyResult maps a raw result string to an Outcome.
//
// A nil result means the build exists but has not completed; that is an
// in-progress build, never a failure. An empty (but present) result is
// unknown rather than failed so the evaluator stays conservative.
func ClassifyResult(result *string) Outcome {
	switch {
	case result == nil:
		return OutcomeRunning
	case *result == resultSuccess:
		return OutcomeSuccess
	case *result == "":
		return OutcomeUnknown
	default:
		return OutcomeFailed
	}
}
