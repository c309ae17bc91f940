package core

import "encoding/json"

// runnerLine is the loose JSON shape a sandbox runner line may take (§6.2);
// fields are pointers/omitted so we can distinguish "absent" from "zero".
type runnerLine struct {
	Status        *string  `json:"status"`
	ExitCode      *int     `json:"exitCode"`
	TestCaseIndex *int     `json:"testCaseIndex"`
	Error         *string  `json:"error"`
	Passed        *bool    `json:"passed"`
	ElapsedTimeMs *int     `json:"elapsedTimeMs"`
	MemoryUsageMb *float64 `json:"memoryUsageMb"`
}

// ParsedLine is the classification of one line from the sandbox's stdout
// (§4.3). Exactly one of Verdict, SystemError, Unexpected is meaningful.
type ParsedLine struct {
	Verdict     *Verdict
	SystemError string // meaningful iff IsSystemErr
	IsSystemErr bool
	Unexpected  bool
}

// ParseVerdictLine classifies one non-empty line of sandbox output per the
// rules of §4.3/§6.2.
func ParseVerdictLine(line string) ParsedLine {
	var parsed runnerLine
	var generic interface{}
	if err := json.Unmarshal([]byte(line), &generic); err != nil {
		return ParsedLine{Unexpected: true}
	}
	if _, ok := generic.(map[string]interface{}); !ok {
		return ParsedLine{Unexpected: true}
	}
	if err := json.Unmarshal([]byte(line), &parsed); err != nil {
		return ParsedLine{Unexpected: true}
	}

	if parsed.Status != nil {
		switch *parsed.Status {
		case "systemError":
			msg := ""
			if parsed.Error != nil {
				msg = *parsed.Error
			}
			return ParsedLine{IsSystemErr: true, SystemError: msg}
		case "compileError", "runtimeError":
			if parsed.ExitCode == nil {
				return ParsedLine{Unexpected: true}
			}
			cause := exitCodeCause(*parsed.ExitCode, *parsed.Status)
			detail := ""
			if parsed.Error != nil {
				detail = *parsed.Error
			}
			v := NewFailingVerdict(parsed.TestCaseIndex, cause, detail)
			return ParsedLine{Verdict: &v}
		default:
			return ParsedLine{Unexpected: true}
		}
	}

	if parsed.Passed != nil {
		if *parsed.Passed {
			if parsed.TestCaseIndex == nil || parsed.ElapsedTimeMs == nil || parsed.MemoryUsageMb == nil {
				return ParsedLine{Unexpected: true}
			}
			v := NewPassedVerdict(*parsed.TestCaseIndex, *parsed.ElapsedTimeMs, *parsed.MemoryUsageMb)
			return ParsedLine{Verdict: &v}
		}
		v := NewFailingVerdict(parsed.TestCaseIndex, WrongAnswer, "")
		return ParsedLine{Verdict: &v}
	}

	return ParsedLine{Unexpected: true}
}
