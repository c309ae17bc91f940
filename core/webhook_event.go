package core

// WebhookEndpoint names the three configured outbound URLs (§6.3).
type WebhookEndpoint int

const (
	VerdictEndpoint WebhookEndpoint = iota
	SubmissionResultEndpoint
	ErrorEndpoint
)

// String names the endpoint for metrics labels (WebhookLatency, C8 §4.8).
func (ep WebhookEndpoint) String() string {
	switch ep {
	case VerdictEndpoint:
		return "verdict"
	case SubmissionResultEndpoint:
		return "submissionResult"
	default:
		return "error"
	}
}

// WebhookEvent is any of the five outbound event kinds (§3 glossary). Each
// variant selects its own endpoint, mirroring the original's
// path_mapping lookup but resolved statically instead of by runtime type
// inspection.
type WebhookEvent interface {
	Endpoint() WebhookEndpoint
}

// TestCaseResult reports one verdict as it is produced (§4.3's ordering
// guarantee: dispatched before being awaited).
type TestCaseResult struct {
	JobID   string  `json:"jobId"`
	Verdict Verdict `json:"verdict"`
}

func (TestCaseResult) Endpoint() WebhookEndpoint { return VerdictEndpoint }

func (PassedJudgment) Endpoint() WebhookEndpoint   { return SubmissionResultEndpoint }
func (UnpassedJudgment) Endpoint() WebhookEndpoint { return SubmissionResultEndpoint }

// Error reports a system failure; the job is deleted and no judgment is
// produced (§7).
type Error struct {
	JobID string `json:"jobId"`
	Error string `json:"error"`
}

func (Error) Endpoint() WebhookEndpoint { return ErrorEndpoint }

// NewError builds an Error event, defaulting detail to DefaultErrorDetail
// when the caller has no more specific message.
func NewError(jobID, detail string) Error {
	if detail == "" {
		detail = DefaultErrorDetail
	}
	return Error{JobID: jobID, Error: detail}
}

// JobCancellation reports that the job was abandoned because its stopFlag
// was set before the supervisor began execution (§9 design note).
type JobCancellation struct {
	JobID string `json:"jobId"`
}

func (JobCancellation) Endpoint() WebhookEndpoint { return ErrorEndpoint }
