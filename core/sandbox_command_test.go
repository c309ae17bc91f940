package core

import (
	"strings"
	"testing"
)

func TestBuildSandboxCommandShape(t *testing.T) {
	spec := SandboxSpec{
		ScratchDir:     "/scratch/abc",
		CodeFilePath:   "/src/main.py",
		Language:       Python3,
		TestCases:      []TestCase{{InputLines: []string{"1"}, ExpectedOutput: "1"}},
		TimeLimitSec:   2.0,
		MemoryLimitMb:  256,
		Image:          "judge/python3:latest",
		RunnerScript:   "/scripts/python3/run.sh",
		SeccompProfile: "/etc/judgment-worker/seccomp-profile.json",
	}
	argv, err := BuildSandboxCommand(spec)
	if err != nil {
		t.Fatalf("BuildSandboxCommand: %v", err)
	}
	if argv[0] != "docker" || argv[1] != "run" {
		t.Fatalf("expected argv to start with [docker run], got %v", argv[:2])
	}
	joined := strings.Join(argv, " ")
	for _, want := range []string{
		"--network none",
		"--read-only",
		"--memory 256m",
		"--memory-swap 256m",
		"--cap-drop ALL",
		"--security-opt no-new-privileges",
		"judge/python3:latest",
		"/tmp/run.sh",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("expected argv to contain %q, got %q", want, joined)
		}
	}
	if argv[len(argv)-1] != "256" {
		t.Errorf("expected last arg to be the memory limit, got %q", argv[len(argv)-1])
	}
}

func TestBuildSandboxCommandDefaultsCPUFraction(t *testing.T) {
	spec := SandboxSpec{
		Language:       Python3,
		RunnerScript:   "/scripts/run.sh",
		CodeFilePath:   "/src/main.py",
		ScratchDir:     "/scratch",
		SeccompProfile: "/seccomp.json",
	}
	argv, err := BuildSandboxCommand(spec)
	if err != nil {
		t.Fatalf("BuildSandboxCommand: %v", err)
	}
	if !strings.Contains(strings.Join(argv, " "), "--cpus 0.5") {
		t.Errorf("expected default CPU fraction 0.5, got %v", argv)
	}
}

func TestBuildSandboxCommandUnknownLanguage(t *testing.T) {
	_, err := BuildSandboxCommand(SandboxSpec{Language: CodeLanguage("COBOL")})
	if err == nil {
		t.Fatal("expected error for unknown language")
	}
}

func TestSandboxDeadlineCompiledLanguage(t *testing.T) {
	d := SandboxDeadline(3, 2.0, Java17, 5.0)
	if d != 3*2.0+5.0+3.0 {
		t.Errorf("SandboxDeadline = %v, want %v", d, 3*2.0+5.0+3.0)
	}
}

func TestSandboxDeadlineNodeJSHasNoCompileBonus(t *testing.T) {
	d := SandboxDeadline(3, 2.0, NodeJS20, 5.0)
	if d != 3*2.0+3.0 {
		t.Errorf("SandboxDeadline = %v, want %v", d, 3*2.0+3.0)
	}
}

func TestSandboxDeadlineZeroTestCases(t *testing.T) {
	d := SandboxDeadline(0, 2.0, CPP17, 5.0)
	if d != 0+5.0+3.0 {
		t.Errorf("SandboxDeadline = %v, want %v", d, 8.0)
	}
}

func TestSandboxDeadlineUsesConfiguredCompileBonus(t *testing.T) {
	d := SandboxDeadline(2, 1.0, Java17, 1.5)
	if d != 2*1.0+1.5+3.0 {
		t.Errorf("SandboxDeadline = %v, want %v", d, 2*1.0+1.5+3.0)
	}
}
