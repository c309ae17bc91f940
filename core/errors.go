package core

import "errors"

// System failures per spec: no final judgment is emitted, an Error webhook
// is sent instead, and the job record is deleted.
var (
	ErrConfigMissing           = errors.New("core: limits catalog lookup missing")
	ErrSandboxUnexpectedOutput = errors.New("core: sandbox produced unexpected output")
	ErrSystemError             = errors.New("core: sandbox runner reported a system error")
	ErrWebhookRejected         = errors.New("core: webhook receiver returned a non-2xx status")
	ErrJobVanished             = errors.New("core: job disappeared from the store mid-run")
	ErrJudgmentContractBroken  = errors.New("core: pass-marked verdict missing memory/time")
)

// DefaultErrorDetail is sent on the Error webhook event when no more
// specific detail is available.
const DefaultErrorDetail = "Internal server error"
