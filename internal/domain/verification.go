package domain

// Grade is the four-tier fidelity rubric applied to a rewrite.
type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
)

// Valid reports whether g is one of the rubric grades.
func (g Grade) Valid() bool {
	switch g {
	case GradeA, GradeB, GradeC, GradeD:
		return true
	}
	return false
}

// Verdict is where a grade moves the verification state machine.
type Verdict string

const (
	VerdictAccepted      Verdict = "accepted"
	VerdictNeedsRevision Verdict = "needs_revision"
	VerdictRejected      Verdict = "rejected"
)

// Verdict maps a grade onto the state machine. Unknown grades reject.
func (g Grade) Verdict() Verdict {
	switch g {
	case GradeA:
		return VerdictAccepted
	case GradeB, GradeC:
		return VerdictNeedsRevision
	default:
		return VerdictRejected
	}
}

// VerificationResult is produced once per verification call and never stored.
type VerificationResult struct {
	Grade       Grade
	Summary     string
	Improvement string
	LengthRatio float64
	Warnings    CrossCheck
	Raw         string
}

// Passed is true only for grade A.
func (r VerificationResult) Passed() bool {
	return r.Grade == GradeA
}

// CrossCheck lists numbers and quotations found in a draft but absent from
// its source.
type CrossCheck struct {
	UnknownNumbers []string `json:"unknown_numbers,omitempty"`
	UnknownQuotes  []string `json:"unknown_quotes,omitempty"`
}

// HardWarning reports whether anything in the draft was not in the source.
func (c CrossCheck) HardWarning() bool {
	return len(c.UnknownNumbers) > 0 || len(c.UnknownQuotes) > 0
}

// Feedback seeds a correction pass after a non-passing verification.
type Feedback struct {
	PreviousDraft string
	Summary       string
	Improvement   string
}

// GenerationOptions are the decoding parameters sent with a prompt.
type GenerationOptions struct {
	Temperature   float64
	TopP          float64
	RepeatPenalty float64
	MaxTokens     int
}

// GenerationRequest is a single synchronous call to a text model.
type GenerationRequest struct {
	System  string
	Prompt  string
	Options GenerationOptions
}
