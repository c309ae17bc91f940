package core

import "testing"

func TestParseVerdictLinePassed(t *testing.T) {
	line := `{"passed":true,"testCaseIndex":0,"elapsedTimeMs":50,"memoryUsageMb":12.5}`
	parsed := ParseVerdictLine(line)
	if parsed.Unexpected || parsed.IsSystemErr {
		t.Fatalf("unexpected classification: %+v", parsed)
	}
	if parsed.Verdict == nil || !parsed.Verdict.Passed {
		t.Fatalf("expected a passing verdict, got %+v", parsed.Verdict)
	}
	if *parsed.Verdict.TestCaseIndex != 0 {
		t.Errorf("TestCaseIndex = %d, want 0", *parsed.Verdict.TestCaseIndex)
	}
}

func TestParseVerdictLineWrongAnswer(t *testing.T) {
	line := `{"passed":false,"testCaseIndex":1}`
	parsed := ParseVerdictLine(line)
	if parsed.Verdict == nil || parsed.Verdict.Passed {
		t.Fatalf("expected a failing verdict, got %+v", parsed.Verdict)
	}
	if parsed.Verdict.FailureCause != WrongAnswer {
		t.Errorf("FailureCause = %q, want WRONG_ANSWER", parsed.Verdict.FailureCause)
	}
}

func TestParseVerdictLinePassedMissingFieldsIsUnexpected(t *testing.T) {
	line := `{"passed":true,"testCaseIndex":0}`
	parsed := ParseVerdictLine(line)
	if !parsed.Unexpected {
		t.Fatalf("expected Unexpected for a pass-marked line missing memory/time, got %+v", parsed)
	}
}

func TestParseVerdictLineSystemError(t *testing.T) {
	line := `{"status":"systemError","error":"disk full"}`
	parsed := ParseVerdictLine(line)
	if !parsed.IsSystemErr || parsed.SystemError != "disk full" {
		t.Fatalf("expected a system error, got %+v", parsed)
	}
}

func TestParseVerdictLineCompileError(t *testing.T) {
	line := `{"status":"compileError","exitCode":1,"error":"syntax error"}`
	parsed := ParseVerdictLine(line)
	if parsed.Verdict == nil || parsed.Verdict.FailureCause != CompileError {
		t.Fatalf("expected COMPILE_ERROR, got %+v", parsed)
	}
	if parsed.Verdict.TestCaseIndex != nil {
		t.Errorf("expected nil test case index for a compile-phase failure")
	}
}

func TestParseVerdictLineCompileTimeout(t *testing.T) {
	line := `{"status":"compileError","exitCode":124}`
	parsed := ParseVerdictLine(line)
	if parsed.Verdict == nil || parsed.Verdict.FailureCause != CompileTimeout {
		t.Fatalf("expected COMPILE_TIMEOUT, got %+v", parsed)
	}
}

func TestParseVerdictLineRuntimeOutOfMemory(t *testing.T) {
	line := `{"status":"runtimeError","exitCode":137,"testCaseIndex":3}`
	parsed := ParseVerdictLine(line)
	if parsed.Verdict == nil || parsed.Verdict.FailureCause != RuntimeOutOfMemory {
		t.Fatalf("expected RUNTIME_OUT_OF_MEMORY, got %+v", parsed)
	}
}

func TestParseVerdictLineMissingExitCodeIsUnexpected(t *testing.T) {
	line := `{"status":"runtimeError"}`
	parsed := ParseVerdictLine(line)
	if !parsed.Unexpected {
		t.Fatalf("expected Unexpected when exitCode is absent, got %+v", parsed)
	}
}

func TestParseVerdictLineUnknownStatusIsUnexpected(t *testing.T) {
	line := `{"status":"weird"}`
	parsed := ParseVerdictLine(line)
	if !parsed.Unexpected {
		t.Fatalf("expected Unexpected for an unrecognized status, got %+v", parsed)
	}
}

func TestParseVerdictLineNonJSONIsUnexpected(t *testing.T) {
	parsed := ParseVerdictLine("totally not json")
	if !parsed.Unexpected {
		t.Fatalf("expected Unexpected for non-JSON input, got %+v", parsed)
	}
}

func TestParseVerdictLineNonObjectJSONIsUnexpected(t *testing.T) {
	parsed := ParseVerdictLine(`[1,2,3]`)
	if !parsed.Unexpected {
		t.Fatalf("expected Unexpected for a JSON array, got %+v", parsed)
	}
}
