package pop

import "fmt"

// Outcome is the decision taken when a candidate altchain tip is compared
// against the active tip.
type Outcome int

// Set of fork resolution outcomes.
const (
	CandidateIsTip Outcome = iota
	CandidateInvalidChain
	CandidateInvalidPayloads
	CandidatePartOfActiveChain
	CandidateIsTipSuccessor
	CandidateNotConnected
	TipIsFinal
	BothDontCrossKeystoneBoundary
	CandidateInvalidIndependently
	HigherPopScore
	LowerPopScore
)

var outcomeNames = map[Outcome]string{
	CandidateIsTip:                "CANDIDATE_IS_TIP",
	CandidateInvalidChain:         "CANDIDATE_INVALID_CHAIN",
	CandidateInvalidPayloads:      "CANDIDATE_INVALID_PAYLOADS",
	CandidatePartOfActiveChain:    "CANDIDATE_PART_OF_ACTIVE_CHAIN",
	CandidateIsTipSuccessor:       "CANDIDATE_IS_TIP_SUCCESSOR",
	CandidateNotConnected:         "CANDIDATE_NOT_CONNECTED",
	TipIsFinal:                    "TIP_IS_FINAL",
	BothDontCrossKeystoneBoundary: "BOTH_DONT_CROSS_KEYSTONE_BOUNDARY",
	CandidateInvalidIndependently: "CANDIDATE_INVALID_INDEPENDENTLY",
	HigherPopScore:                "HIGHER_POP_SCORE",
	LowerPopScore:                 "LOWER_POP_SCORE",
}

// String returns the name of the outcome.
func (o Outcome) String() string {
	if name, exists := outcomeNames[o]; exists {
		return name
	}
	return fmt.Sprintf("OUTCOME(%d)", int(o))
}

// MarshalText implements the encoding.TextMarshaler interface.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Result represents the decision of one fork resolution.
type Result struct {
	Outcome        Outcome `json:"outcome"`
	Reason         string  `json:"reason"`
	Switched       bool    `json:"switched"` // The candidate became the active tip.
	ActiveScore    int64   `json:"activeScore"`
	CandidateScore int64   `json:"candidateScore"`
}

func result(o Outcome, switched bool, format string, args ...any) Result {
	return Result{
		Outcome:  o,
		Reason:   fmt.Sprintf(format, args...),
		Switched: switched,
	}
}
