package core

// FailureCause is the taxonomy of reasons a Verdict or Judgment is not a
// pass (§3, §7).
type FailureCause string

const (
	CompileError       FailureCause = "COMPILE_ERROR"
	CompileTimeout     FailureCause = "COMPILE_TIMEOUT"
	CompileOutOfMemory FailureCause = "COMPILE_OUT_OF_MEMORY"
	RuntimeError       FailureCause = "RUNTIME_ERROR"
	RuntimeTimeout     FailureCause = "RUNTIME_TIMEOUT"
	RuntimeOutOfMemory FailureCause = "RUNTIME_OUT_OF_MEMORY"
	WrongAnswer        FailureCause = "WRONG_ANSWER"
	SandboxTimeout     FailureCause = "SANDBOX_TIMEOUT"
	SandboxOutOfMemory FailureCause = "SANDBOX_OUT_OF_MEMORY"
)

// exitCodeCause maps an exit code to a FailureCause, separately for the
// compile and runtime phases (§4.3 table).
func exitCodeCause(exitCode int, phase string) FailureCause {
	switch phase {
	case "compileError":
		switch exitCode {
		case 124:
			return CompileTimeout
		case 137:
			return CompileOutOfMemory
		default:
			return CompileError
		}
	default: // runtimeError
		switch exitCode {
		case 124:
			return RuntimeTimeout
		case 137:
			return RuntimeOutOfMemory
		default:
			return RuntimeError
		}
	}
}

// Verdict is the outcome of one test case, or of one terminal sandbox-level
// failure (§3).
type Verdict struct {
	Passed        bool         `json:"passed"`
	TestCaseIndex *int         `json:"testCaseIndex,omitempty"`
	MemoryUsedMb  *float64     `json:"memoryUsedMb,omitempty"`
	ElapsedTimeMs *int         `json:"elapsedTimeMs,omitempty"`
	FailureCause  FailureCause `json:"failureCause,omitempty"`
	FailureDetail *string      `json:"failureDetail,omitempty"`
}

// NewPassedVerdict builds a passing Verdict for testCaseIndex.
func NewPassedVerdict(testCaseIndex int, elapsedTimeMs int, memoryUsedMb float64) Verdict {
	return Verdict{
		Passed:        true,
		TestCaseIndex: &testCaseIndex,
		ElapsedTimeMs: &elapsedTimeMs,
		MemoryUsedMb:  &memoryUsedMb,
	}
}

// NewFailingVerdict builds a failing Verdict. testCaseIndex is nil for
// compile-phase/sandbox-level failures that never reach a specific case.
func NewFailingVerdict(testCaseIndex *int, cause FailureCause, detail string) Verdict {
	v := Verdict{
		Passed:       false,
		FailureCause: cause,
	}
	v.TestCaseIndex = testCaseIndex
	if detail != "" {
		v.FailureDetail = &detail
	}
	return v
}
