package core

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func shArgv(script string) []string {
	return []string{"sh", "-c", script}
}

func TestRunSandboxHappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := &JudgmentSupervisor{Dispatcher: NewWebhookDispatcher(WebhookEndpoints{Verdict: srv.URL}, nil)}

	script := `echo '{"passed":true,"testCaseIndex":0,"elapsedTimeMs":10,"memoryUsageMb":1.0}'; ` +
		`echo '{"passed":true,"testCaseIndex":1,"elapsedTimeMs":20,"memoryUsageMb":2.0}'`
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	outcome, err := s.runSandbox(ctx, context.Background(), "job-1", shArgv(script))
	if err != nil {
		t.Fatalf("runSandbox returned error: %v", err)
	}
	if outcome.cleanupTriggered {
		t.Fatalf("expected no cleanup, got detail=%q", outcome.errorDetail)
	}
	if len(outcome.verdicts) != 2 {
		t.Fatalf("expected 2 verdicts, got %d: %+v", len(outcome.verdicts), outcome.verdicts)
	}
	for _, v := range outcome.verdicts {
		if !v.Passed {
			t.Errorf("expected all verdicts to pass, got %+v", v)
		}
	}
	if outcome.exitCode != 0 {
		t.Errorf("exitCode = %d, want 0", outcome.exitCode)
	}
}

func TestRunSandboxSystemErrorTriggersCleanup(t *testing.T) {
	s := &JudgmentSupervisor{Dispatcher: NewWebhookDispatcher(WebhookEndpoints{}, nil)}

	script := `echo '{"status":"systemError","error":"disk full"}'; sleep 5`
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	outcome, err := s.runSandbox(ctx, context.Background(), "job-2", shArgv(script))
	if err != nil {
		t.Fatalf("runSandbox returned error: %v", err)
	}
	if !outcome.cleanupTriggered {
		t.Fatal("expected cleanup to be triggered on systemError")
	}
	if outcome.errorDetail != "disk full" {
		t.Errorf("errorDetail = %q, want %q", outcome.errorDetail, "disk full")
	}
}

func TestRunSandboxWebhookRejectionTriggersCleanup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := &JudgmentSupervisor{Dispatcher: NewWebhookDispatcher(WebhookEndpoints{Verdict: srv.URL}, nil)}

	script := `echo '{"passed":true,"testCaseIndex":0,"elapsedTimeMs":10,"memoryUsageMb":1.0}'; sleep 5`
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	outcome, err := s.runSandbox(ctx, context.Background(), "job-3", shArgv(script))
	if err != nil {
		t.Fatalf("runSandbox returned error: %v", err)
	}
	if !outcome.cleanupTriggered {
		t.Fatal("expected cleanup to be triggered when the webhook receiver rejects a verdict")
	}
}

func TestRunSandboxUnexpectedStderrTriggersCleanup(t *testing.T) {
	s := &JudgmentSupervisor{Dispatcher: NewWebhookDispatcher(WebhookEndpoints{}, nil)}

	script := `echo 'stack trace garbage' 1>&2`
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	outcome, err := s.runSandbox(ctx, context.Background(), "job-4", shArgv(script))
	if err != nil {
		t.Fatalf("runSandbox returned error: %v", err)
	}
	if !outcome.cleanupTriggered {
		t.Fatal("expected cleanup to be triggered by unexpected stderr output")
	}
}

func TestRunSandboxDeadlineExceeded(t *testing.T) {
	s := &JudgmentSupervisor{Dispatcher: NewWebhookDispatcher(WebhookEndpoints{}, nil)}

	script := `sleep 30`
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	outcome, err := s.runSandbox(ctx, context.Background(), "job-5", shArgv(script))
	if err != nil {
		t.Fatalf("runSandbox returned error: %v", err)
	}
	if !outcome.timedOut {
		t.Fatal("expected timedOut=true once the sandbox deadline elapses")
	}
}

func TestRunSandboxExitCodeOutOfMemory(t *testing.T) {
	s := &JudgmentSupervisor{Dispatcher: NewWebhookDispatcher(WebhookEndpoints{}, nil)}

	script := `exit 137`
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	outcome, err := s.runSandbox(ctx, context.Background(), "job-6", shArgv(script))
	if err != nil {
		t.Fatalf("runSandbox returned error: %v", err)
	}
	if outcome.exitCode != 137 {
		t.Errorf("exitCode = %d, want 137", outcome.exitCode)
	}
	if outcome.cleanupTriggered {
		t.Errorf("a bare exit 137 with no unexpected output should not itself trigger cleanup")
	}
}

func TestRunSandboxObservesWallTime(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewWorkerMetricsCollector(registry)
	s := &JudgmentSupervisor{
		Dispatcher: NewWebhookDispatcher(WebhookEndpoints{}, metrics),
		Metrics:    metrics,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := s.runSandbox(ctx, context.Background(), "job-7", shArgv("true")); err != nil {
		t.Fatalf("runSandbox returned error: %v", err)
	}

	if got := testutil.CollectAndCount(metrics.SandboxWallTime); got != 1 {
		t.Errorf("SandboxWallTime sample count = %d, want 1", got)
	}
}

func TestRecordOutcomeAndFailureCause(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewWorkerMetricsCollector(registry)
	s := &JudgmentSupervisor{Metrics: metrics}

	s.recordOutcome("passed")
	s.recordOutcome("passed")
	s.recordOutcome("unpassed")
	s.recordFailureCause(WrongAnswer)

	if got := testutil.ToFloat64(metrics.JobsProcessed.WithLabelValues("passed")); got != 2 {
		t.Errorf("JobsProcessed{outcome=passed} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(metrics.JobsProcessed.WithLabelValues("unpassed")); got != 1 {
		t.Errorf("JobsProcessed{outcome=unpassed} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.FailureCauses.WithLabelValues(string(WrongAnswer))); got != 1 {
		t.Errorf("FailureCauses{cause=WRONG_ANSWER} = %v, want 1", got)
	}
}

func TestRecordOutcomeNilMetricsIsNoop(t *testing.T) {
	s := &JudgmentSupervisor{}
	s.recordOutcome("passed")
	s.recordFailureCause(WrongAnswer)
}
