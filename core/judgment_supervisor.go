package core

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// JudgmentSupervisor is the central orchestrator (C6, §4.6): it prepares
// the sandbox, drives the parser and the webhook dispatcher concurrently,
// enforces the sandbox wall deadline, classifies termination, aggregates
// the final judgment, and cleans up.
type JudgmentSupervisor struct {
	Catalog         *LimitsCatalog
	JobStore        *JobStore
	Dispatcher      *WebhookDispatcher
	Images          SandboxImages
	RunnerScripts   map[CodeLanguage]string
	SeccompProfile  string
	ScratchBaseDir  string
	CPUFraction     float64
	CompileBonusSec float64 // added to the sandbox deadline for compiled languages (Config.CompileTimeLimitMs)
	Metrics         *WorkerMetricsCollector // nil disables instrumentation, e.g. in tests
}

func (s *JudgmentSupervisor) recordOutcome(outcome string) {
	if s.Metrics != nil {
		s.Metrics.JobsProcessed.WithLabelValues(outcome).Inc()
	}
}

func (s *JudgmentSupervisor) recordFailureCause(cause FailureCause) {
	if s.Metrics != nil {
		s.Metrics.FailureCauses.WithLabelValues(string(cause)).Inc()
	}
}

// Process runs one job to completion: the full CREATED -> ... -> DONE
// lifecycle of §4.6. It returns a non-nil error only for unrecoverable
// supervisor-level failures that the caller (the worker loop) should treat
// as a processing failure for retry/ack purposes; judgment failures are not
// errors, they are reported through the webhook.
func (s *JudgmentSupervisor) Process(ctx context.Context, userID int64, jobID string) error {
	job, err := s.JobStore.FindByUserAndJob(ctx, userID, jobID)
	if err != nil {
		return fmt.Errorf("core: load job %s: %w", jobID, err)
	}
	if job == nil {
		return fmt.Errorf("%w: job %s", ErrJobVanished, jobID)
	}

	// PREPARING: stopFlag is honored only if already set when the
	// supervisor starts; it is not polled mid-stream (§9 design note).
	if job.StopFlag {
		if _, err := s.Dispatcher.DispatchWebhookCallback(ctx, JobCancellation{JobID: jobID}); err != nil {
			log.Printf("[job %s] cancellation webhook failed: %v", jobID, err)
		}
		_, _ = s.JobStore.Delete(ctx, userID, jobID)
		s.recordOutcome("cancelled")
		return nil
	}

	scratchDir, err := os.MkdirTemp(s.ScratchBaseDir, "judgment-*")
	if err != nil {
		return fmt.Errorf("core: create scratch dir: %w", err)
	}
	defer os.RemoveAll(scratchDir)

	sourceDir, err := os.MkdirTemp(s.ScratchBaseDir, "judgment-src-*")
	if err != nil {
		return fmt.Errorf("core: create source dir: %w", err)
	}
	defer os.RemoveAll(sourceDir)

	code, err := job.DecodeCode()
	if err != nil {
		s.abortWithError(ctx, userID, jobID, DefaultErrorDetail)
		return nil
	}
	sourceFile, err := job.CodeLanguage.SourceFileName()
	if err != nil {
		s.abortWithError(ctx, userID, jobID, DefaultErrorDetail)
		return nil
	}
	codeFilePath := filepath.Join(sourceDir, sourceFile)
	if err := os.WriteFile(codeFilePath, code, 0o644); err != nil {
		return fmt.Errorf("core: write source file: %w", err)
	}

	testCases, err := s.Catalog.GetTestCases(job.ChallengeID)
	if err != nil {
		s.abortWithError(ctx, userID, jobID, err.Error())
		return nil
	}
	timeLimitSec, err := s.Catalog.GetTimeLimit(job.ChallengeID, job.CodeLanguage)
	if err != nil {
		s.abortWithError(ctx, userID, jobID, err.Error())
		return nil
	}
	memoryLimitMb, err := s.Catalog.GetMemoryLimit(job.ChallengeID, job.CodeLanguage)
	if err != nil {
		s.abortWithError(ctx, userID, jobID, err.Error())
		return nil
	}

	// Shuffle to deter memoization attacks (§4.6, §9: always shuffle).
	shuffled := make([]TestCase, len(testCases))
	copy(shuffled, testCases)
	rand.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	cmdArgv, err := BuildSandboxCommand(SandboxSpec{
		ScratchDir:     scratchDir,
		CodeFilePath:   codeFilePath,
		Language:       job.CodeLanguage,
		TestCases:      shuffled,
		TimeLimitSec:   timeLimitSec,
		MemoryLimitMb:  memoryLimitMb,
		CPUFraction:    s.CPUFraction,
		Image:          s.Images[job.CodeLanguage],
		RunnerScript:   s.RunnerScripts[job.CodeLanguage],
		SeccompProfile: s.SeccompProfile,
	})
	if err != nil {
		return fmt.Errorf("core: build sandbox command: %w", err)
	}

	deadlineSec := SandboxDeadline(len(shuffled), timeLimitSec, job.CodeLanguage, s.CompileBonusSec)
	sandboxCtx, cancel := context.WithTimeout(ctx, time.Duration(deadlineSec*float64(time.Second)))
	defer cancel()

	identity := JudgmentIdentity{
		UserID:       userID,
		JobID:        jobID,
		ChallengeID:  job.ChallengeID,
		CodeLanguage: job.CodeLanguage,
		Code:         job.Code,
		CodeByteSize: len(code),
		SubmittedAt:  job.SubmittedAt,
	}

	outcome, runErr := s.runSandbox(sandboxCtx, ctx, jobID, cmdArgv)
	if runErr != nil {
		return fmt.Errorf("core: spawn sandbox for job %s: %w", jobID, runErr)
	}

	if outcome.cleanupTriggered {
		detail := outcome.errorDetail
		if detail == "" {
			detail = DefaultErrorDetail
		}
		s.abortWithError(ctx, userID, jobID, detail)
		return nil
	}

	verdicts := outcome.verdicts
	hasNonPass := false
	for _, v := range verdicts {
		if !v.Passed {
			hasNonPass = true
			break
		}
	}
	if !hasNonPass {
		if outcome.timedOut {
			v := NewFailingVerdict(nil, SandboxTimeout, "")
			verdicts = append(verdicts, v)
			s.dispatchAndForget(ctx, TestCaseResult{JobID: jobID, Verdict: v})
		} else if outcome.exitCode == 137 {
			v := NewFailingVerdict(nil, SandboxOutOfMemory, "")
			verdicts = append(verdicts, v)
			s.dispatchAndForget(ctx, TestCaseResult{JobID: jobID, Verdict: v})
		}
	}

	judgment, buildErr := BuildJudgment(verdicts, identity)
	if buildErr != nil {
		s.abortWithError(ctx, userID, jobID, DefaultErrorDetail)
		return nil
	}

	switch j := judgment.(type) {
	case PassedJudgment:
		s.recordOutcome("passed")
	case UnpassedJudgment:
		s.recordOutcome("unpassed")
		s.recordFailureCause(j.FailureCause)
	}

	if _, err := s.Dispatcher.DispatchWebhookCallback(ctx, judgment.(WebhookEvent)); err != nil {
		log.Printf("[job %s] final judgment webhook failed: %v", jobID, err)
	}
	if _, err := s.JobStore.Delete(ctx, userID, jobID); err != nil {
		log.Printf("[job %s] delete after completion failed: %v", jobID, err)
	}
	return nil
}

func (s *JudgmentSupervisor) abortWithError(ctx context.Context, userID int64, jobID, detail string) {
	if _, err := s.Dispatcher.DispatchWebhookCallback(ctx, NewError(jobID, detail)); err != nil {
		log.Printf("[job %s] error webhook failed: %v", jobID, err)
	}
	if _, err := s.JobStore.Delete(ctx, userID, jobID); err != nil {
		log.Printf("[job %s] delete after abort failed: %v", jobID, err)
	}
	s.recordOutcome("error")
}

func (s *JudgmentSupervisor) dispatchAndForget(ctx context.Context, event WebhookEvent) {
	if _, err := s.Dispatcher.DispatchWebhookCallback(ctx, event); err != nil {
		log.Printf("dispatch %T failed: %v", event, err)
	}
}

// sandboxOutcome summarizes how one sandbox run ended, for the termination
// classification step of §4.6.
type sandboxOutcome struct {
	verdicts         []Verdict
	cleanupTriggered bool
	errorDetail      string
	timedOut         bool
	exitCode         int
}

// runSandbox spawns the sandbox, drives two concurrent stream readers plus
// a process waiter bounded by sandboxCtx's deadline, and returns the
// resulting verdict sequence and termination signal. dispatchCtx is used
// for per-verdict webhook dispatch so an expired sandbox deadline does not
// also cancel in-flight webhook POSTs.
func (s *JudgmentSupervisor) runSandbox(sandboxCtx, dispatchCtx context.Context, jobID string, argv []string) (sandboxOutcome, error) {
	start := time.Now()
	if s.Metrics != nil {
		defer func() { s.Metrics.SandboxWallTime.Observe(time.Since(start).Seconds()) }()
	}

	cmd := exec.CommandContext(sandboxCtx, argv[0], argv[1:]...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return sandboxOutcome{}, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return sandboxOutcome{}, err
	}
	if err := cmd.Start(); err != nil {
		return sandboxOutcome{}, fmt.Errorf("core: start sandbox: %w", err)
	}

	var (
		mu               sync.Mutex
		verdicts         []Verdict
		unexpectedLines  []string
		cleanupOnce      sync.Once
		cleanupTriggered bool
		systemErrMsg     string
		dispatchWG       sync.WaitGroup
	)
	triggerCleanup := func(detail string) {
		cleanupOnce.Do(func() {
			mu.Lock()
			cleanupTriggered = true
			if systemErrMsg == "" {
				systemErrMsg = detail
			}
			mu.Unlock()
			_ = cmd.Process.Kill()
		})
	}

	g, _ := errgroup.WithContext(sandboxCtx)
	g.Go(func() error {
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			parsed := ParseVerdictLine(line)
			switch {
			case parsed.IsSystemErr:
				triggerCleanup(parsed.SystemError)
				return fmt.Errorf("%w: %s", ErrSystemError, parsed.SystemError)
			case parsed.Unexpected:
				mu.Lock()
				unexpectedLines = append(unexpectedLines, line)
				mu.Unlock()
			default:
				v := *parsed.Verdict
				mu.Lock()
				verdicts = append(verdicts, v)
				mu.Unlock()
				dispatchWG.Add(1)
				go func() {
					defer dispatchWG.Done()
					status, err := s.Dispatcher.DispatchWebhookCallback(dispatchCtx, TestCaseResult{JobID: jobID, Verdict: v})
					if err != nil || status != 200 {
						triggerCleanup("")
					}
				}()
			}
		}
		return scanner.Err()
	})
	g.Go(func() error {
		scanner := bufio.NewScanner(stderr)
		scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			mu.Lock()
			unexpectedLines = append(unexpectedLines, line)
			mu.Unlock()
		}
		return scanner.Err()
	})

	waitErr := g.Wait()
	procErr := cmd.Wait()
	dispatchWG.Wait()

	mu.Lock()
	finalVerdicts := verdicts
	finalUnexpected := append([]string(nil), unexpectedLines...)
	triggered := cleanupTriggered
	detail := systemErrMsg
	mu.Unlock()

	if !triggered && len(finalUnexpected) > 0 {
		triggerCleanup(strings.Join(finalUnexpected, "; "))
		triggered = true
		detail = strings.Join(finalUnexpected, "; ")
	}
	if !triggered && waitErr != nil && errors.Is(waitErr, ErrSystemError) {
		triggered = true
		if detail == "" {
			detail = waitErr.Error()
		}
	}

	timedOut := sandboxCtx.Err() == context.DeadlineExceeded
	exitCode := -1
	if cmd.ProcessState != nil {
		exitCode = cmd.ProcessState.ExitCode()
	}
	_ = procErr // exit status is read via ProcessState; a non-zero/kill error is expected on timeout/kill paths

	return sandboxOutcome{
		verdicts:         finalVerdicts,
		cleanupTriggered: triggered,
		errorDetail:      detail,
		timedOut:         timedOut,
		exitCode:         exitCode,
	}, nil
}
