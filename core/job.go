package core

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var jobValidate = validator.New()

// Job is the unit of work a queue task carries and the Job Store Gateway
// persists under key "{userId}:{jobId}" (§3, §6.4).
type Job struct {
	JobID             string       `json:"jobId" validate:"required,uuid"`
	UserID            int64        `json:"userId" validate:"required,gt=0"`
	ChallengeID       int64        `json:"challengeId" validate:"required,gt=0"`
	CodeLanguage      CodeLanguage `json:"codeLanguage" validate:"required"`
	Code              string       `json:"code" validate:"required,base64"` // base64-encoded source
	SubmittedAt       string       `json:"submittedAt" validate:"required"`
	TotalTestCases    int          `json:"totalTestCases" validate:"gte=0"`
	StopFlag          bool         `json:"stopFlag"`
	LastTestCaseIndex int          `json:"lastTestCaseIndex" validate:"gte=0"`
	Verdicts          []Verdict    `json:"verdicts"`
}

// StoreKey returns the external-store key "{userId}:{jobId}" (§6.4).
func (j Job) StoreKey() string {
	return fmt.Sprintf("%d:%s", j.UserID, j.JobID)
}

// Validate enforces the invariants of §3: struct-tag constraints (valid
// UUID jobId, base64 code, positive identifiers) via validator, plus the
// language whitelist and the verdicts-bounded-by-totalTestCases+1 invariant
// that validator's tag vocabulary cannot express (the +1 allows a
// sandbox-level failure marker with no test case index).
func (j Job) Validate() error {
	if err := jobValidate.Struct(j); err != nil {
		return fmt.Errorf("core: invalid job %s: %w", j.JobID, err)
	}
	if _, err := uuid.Parse(j.JobID); err != nil {
		return fmt.Errorf("core: invalid jobId %q: %w", j.JobID, err)
	}
	if !j.CodeLanguage.Valid() {
		return fmt.Errorf("core: unsupported code language %q", j.CodeLanguage)
	}
	if len(j.Verdicts) > j.TotalTestCases+1 {
		return fmt.Errorf("core: job %s has %d verdicts for %d test cases", j.JobID, len(j.Verdicts), j.TotalTestCases)
	}
	return nil
}

// DecodeCode base64-decodes Code into raw source bytes.
func (j Job) DecodeCode() ([]byte, error) {
	decoded, err := base64.StdEncoding.DecodeString(j.Code)
	if err != nil {
		return nil, fmt.Errorf("core: decode job code: %w", err)
	}
	return decoded, nil
}

// ParseJobPayload decodes an inbound queue task payload (§6.1). Keys may be
// either snake_case or camelCase; both are normalized to camelCase before
// unmarshaling into Job.
func ParseJobPayload(raw []byte) (Job, error) {
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return Job{}, fmt.Errorf("core: parse job payload: %w", err)
	}
	normalized := normalizeKeysToCamel(generic)
	canonical, err := json.Marshal(normalized)
	if err != nil {
		return Job{}, fmt.Errorf("core: re-marshal normalized job payload: %w", err)
	}
	var job Job
	if err := json.Unmarshal(canonical, &job); err != nil {
		return Job{}, fmt.Errorf("core: decode job: %w", err)
	}
	return job, nil
}
