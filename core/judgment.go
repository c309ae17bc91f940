package core

// Judgment is the aggregated final outcome of a job: either Passed or
// Unpassed (§3). Implemented as a sealed interface rather than a dynamic
// dict, per the tagged-variant design note.
type Judgment interface {
	isJudgment()
	Identity() JudgmentIdentity
}

// JudgmentIdentity carries the fields common to every Judgment variant.
type JudgmentIdentity struct {
	UserID       int64        `json:"userId"`
	JobID        string       `json:"jobId"`
	ChallengeID  int64        `json:"challengeId"`
	CodeLanguage CodeLanguage `json:"codeLanguage"`
	Code         string       `json:"code"`
	CodeByteSize int          `json:"codeByteSize"`
	SubmittedAt  string       `json:"submittedAt"`
}

// PassedJudgment is emitted when every verdict in the sequence passed.
type PassedJudgment struct {
	JudgmentIdentity
	Passed           bool    `json:"passed"`
	MaxMemoryUsedMb  float64 `json:"maxMemoryUsedMb"`
	MaxElapsedTimeMs int     `json:"maxElapsedTimeMs"`
}

func (PassedJudgment) isJudgment() {}

func (p PassedJudgment) Identity() JudgmentIdentity { return p.JudgmentIdentity }

// UnpassedJudgment is emitted when the verdict sequence contains at least
// one non-passing verdict; its cause/detail are copied from the earliest
// one (§4.6 termination classification).
type UnpassedJudgment struct {
	JudgmentIdentity
	Passed        bool         `json:"passed"`
	FailureCause  FailureCause `json:"failureCause"`
	FailureDetail *string      `json:"failureDetail,omitempty"`
}

func (UnpassedJudgment) isJudgment() {}

func (u UnpassedJudgment) Identity() JudgmentIdentity { return u.JudgmentIdentity }

// BuildJudgment implements the aggregation rule of §4.6: the first
// non-passing verdict wins outright (its cause/detail are copied verbatim);
// otherwise every verdict must carry memory/time and the result is a
// PassedJudgment with element-wise maxima. An all-pass empty sequence
// yields a PassedJudgment with zero maxima (§8 boundary behavior, N=0).
func BuildJudgment(verdicts []Verdict, identity JudgmentIdentity) (Judgment, error) {
	var maxMemory float64
	var maxElapsed int

	for _, v := range verdicts {
		if !v.Passed {
			return UnpassedJudgment{
				JudgmentIdentity: identity,
				Passed:           false,
				FailureCause:     v.FailureCause,
				FailureDetail:    v.FailureDetail,
			}, nil
		}
		if v.MemoryUsedMb == nil || v.ElapsedTimeMs == nil {
			return nil, ErrJudgmentContractBroken
		}
		if *v.MemoryUsedMb > maxMemory {
			maxMemory = *v.MemoryUsedMb
		}
		if *v.ElapsedTimeMs > maxElapsed {
			maxElapsed = *v.ElapsedTimeMs
		}
	}

	return PassedJudgment{
		JudgmentIdentity: identity,
		Passed:           true,
		MaxMemoryUsedMb:  maxMemory,
		MaxElapsedTimeMs: maxElapsed,
	}, nil
}
