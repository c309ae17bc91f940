package core

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// SandboxImages maps a language to its runner image name (§4.9's
// per-language sandbox image config).
type SandboxImages map[CodeLanguage]string

// SandboxSpec is the full set of inputs C2 needs to build a sandbox
// invocation (§4.2).
type SandboxSpec struct {
	ScratchDir     string
	CodeFilePath   string
	Language       CodeLanguage
	TestCases      []TestCase
	TimeLimitSec   float64
	MemoryLimitMb  int
	CPUFraction    float64 // default 0.5 when zero
	Image          string
	RunnerScript   string // host path to the per-language run.sh, bind-mounted read-only at /tmp/run.sh
	SeccompProfile string
}

// testCaseWire is the JSON shape passed as the runner's test-cases
// argument: a tuple of (inputLines, expectedOutput) per case, matching
// build_docker_run_cmd's json.dumps(test_cases).
type testCaseWire [2]interface{}

// BuildSandboxCommand returns the literal argv for "docker run ..." plus
// the runner's positional arguments, per §4.2's required properties.
func BuildSandboxCommand(spec SandboxSpec) ([]string, error) {
	sourceFile, err := spec.Language.SourceFileName()
	if err != nil {
		return nil, err
	}
	if spec.CPUFraction <= 0 {
		spec.CPUFraction = 0.5
	}

	tmpfsPath := fmt.Sprintf("/tmp/%s", randomScratchSuffix())

	wireCases := make([]testCaseWire, len(spec.TestCases))
	for i, tc := range spec.TestCases {
		wireCases[i] = testCaseWire{tc.InputLines, tc.ExpectedOutput}
	}
	encodedCases, err := json.Marshal(wireCases)
	if err != nil {
		return nil, fmt.Errorf("core: encode test cases: %w", err)
	}

	cmd := []string{
		"docker", "run", "--rm", "--init",
		"--network", "none",
		"--read-only",
		"--mount", fmt.Sprintf("type=bind,source=%s,target=/tmp,readonly=false", spec.ScratchDir),
		"--mount", fmt.Sprintf("type=bind,source=%s,target=/tmp/%s,readonly", spec.CodeFilePath, sourceFile),
		"--mount", fmt.Sprintf("type=bind,source=%s,target=/tmp/run.sh,readonly", spec.RunnerScript),
		"--mount", fmt.Sprintf("type=tmpfs,destination=%s", tmpfsPath),
		"--memory", fmt.Sprintf("%dm", spec.MemoryLimitMb),
		"--memory-swap", fmt.Sprintf("%dm", spec.MemoryLimitMb),
		"--cpus", fmt.Sprintf("%g", spec.CPUFraction),
		"--pids-limit", "50",
		"--ulimit", "nofile=32",
		"--ulimit", "fsize=1572864", // 1.5 MiB in bytes
		"--cap-drop", "ALL",
		"--security-opt", "no-new-privileges",
		"--security-opt", fmt.Sprintf("seccomp=%s", spec.SeccompProfile),
		spec.Image,

		// Positional arguments forwarded to the image's ENTRYPOINT (/tmp/run.sh).
		"/tmp/run.sh",
		string(encodedCases),
		fmt.Sprintf("%g", spec.TimeLimitSec),
		fmt.Sprintf("%d", spec.MemoryLimitMb),
	}
	return cmd, nil
}

func randomScratchSuffix() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		for i := range b {
			b[i] = byte(i + 1)
		}
	}
	return hex.EncodeToString(b)
}

// SandboxDeadline computes the sandbox wall deadline D = N*T + compileBonus
// + 3s (§4.6). compileBonusSec is added only for compiled languages, else 0;
// callers pass Config.CompileTimeLimitMs (converted to seconds) so the
// budget stays operator-tunable instead of a baked-in constant.
func SandboxDeadline(testCaseCount int, timeLimitSec float64, lang CodeLanguage, compileBonusSec float64) float64 {
	bonus := 0.0
	if lang.HasCompileBonus() {
		bonus = compileBonusSec
	}
	return float64(testCaseCount)*timeLimitSec + bonus + 3.0
}
