package core

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"gopkg.in/yaml.v3"
)

// TestCase is one hidden test case: an ordered sequence of input lines and
// the expected output. Owned by C1, read-only at runtime (§3).
type TestCase struct {
	InputLines     []string `yaml:"inputLines"`
	ExpectedOutput string   `yaml:"expectedOutput"`
}

// LimitsCatalog looks up per-challenge test cases, time/memory limits, and
// applies per-language bonuses (C1, §4.1).
type LimitsCatalog struct {
	testCases    map[int64][]TestCase
	timeLimits   map[int64]float64
	memoryLimits map[int64]int
	timeBonus    map[CodeLanguage]float64
	memoryBonus  map[CodeLanguage]int
}

// GetTestCases returns challengeId's test cases, or ErrConfigMissing.
func (c *LimitsCatalog) GetTestCases(challengeID int64) ([]TestCase, error) {
	tc, ok := c.testCases[challengeID]
	if !ok {
		return nil, fmt.Errorf("%w: test cases for challenge %d", ErrConfigMissing, challengeID)
	}
	return tc, nil
}

// GetTimeLimit returns base + bonus seconds for (challengeId, lang).
func (c *LimitsCatalog) GetTimeLimit(challengeID int64, lang CodeLanguage) (float64, error) {
	base, ok := c.timeLimits[challengeID]
	if !ok {
		return 0, fmt.Errorf("%w: time limit for challenge %d", ErrConfigMissing, challengeID)
	}
	bonus, ok := c.timeBonus[lang]
	if !ok {
		return 0, fmt.Errorf("%w: time bonus for language %s", ErrConfigMissing, lang)
	}
	return base + bonus, nil
}

// GetMemoryLimit returns base + bonus MB for (challengeId, lang).
func (c *LimitsCatalog) GetMemoryLimit(challengeID int64, lang CodeLanguage) (int, error) {
	base, ok := c.memoryLimits[challengeID]
	if !ok {
		return 0, fmt.Errorf("%w: memory limit for challenge %d", ErrConfigMissing, challengeID)
	}
	bonus, ok := c.memoryBonus[lang]
	if !ok {
		return 0, fmt.Errorf("%w: memory bonus for language %s", ErrConfigMissing, lang)
	}
	return base + bonus, nil
}

// LoadLimitsCatalogFromPostgres populates a LimitsCatalog from the
// challenge_limits / challenge_testcases / language_bonus tables. This is
// the production data source (§4.1's "configured data source").
func LoadLimitsCatalogFromPostgres(ctx context.Context, pool *pgxpool.Pool) (*LimitsCatalog, error) {
	cat := newEmptyLimitsCatalog()

	limitRows, err := pool.Query(ctx, `SELECT challenge_id, time_limit_ms, memory_limit_mb FROM challenge_limits`)
	if err != nil {
		return nil, fmt.Errorf("core: query challenge_limits: %w", err)
	}
	defer limitRows.Close()
	for limitRows.Next() {
		var challengeID int64
		var timeLimitMs int
		var memoryLimitMb int
		if err := limitRows.Scan(&challengeID, &timeLimitMs, &memoryLimitMb); err != nil {
			return nil, fmt.Errorf("core: scan challenge_limits: %w", err)
		}
		cat.timeLimits[challengeID] = float64(timeLimitMs) / 1000.0
		cat.memoryLimits[challengeID] = memoryLimitMb
	}
	if err := limitRows.Err(); err != nil {
		return nil, err
	}

	caseRows, err := pool.Query(ctx, `SELECT challenge_id, ordinal, input, expected_output FROM challenge_testcases ORDER BY challenge_id, ordinal`)
	if err != nil {
		return nil, fmt.Errorf("core: query challenge_testcases: %w", err)
	}
	defer caseRows.Close()
	for caseRows.Next() {
		var challengeID int64
		var ordinal int
		var input []string
		var expected string
		if err := caseRows.Scan(&challengeID, &ordinal, &input, &expected); err != nil {
			return nil, fmt.Errorf("core: scan challenge_testcases: %w", err)
		}
		cat.testCases[challengeID] = append(cat.testCases[challengeID], TestCase{InputLines: input, ExpectedOutput: expected})
	}
	if err := caseRows.Err(); err != nil {
		return nil, err
	}

	bonusRows, err := pool.Query(ctx, `SELECT language, time_bonus_ms, memory_bonus_mb FROM language_bonus`)
	if err != nil {
		return nil, fmt.Errorf("core: query language_bonus: %w", err)
	}
	defer bonusRows.Close()
	for bonusRows.Next() {
		var lang string
		var timeBonusMs int
		var memBonusMb int
		if err := bonusRows.Scan(&lang, &timeBonusMs, &memBonusMb); err != nil {
			return nil, fmt.Errorf("core: scan language_bonus: %w", err)
		}
		cat.timeBonus[CodeLanguage(lang)] = float64(timeBonusMs) / 1000.0
		cat.memoryBonus[CodeLanguage(lang)] = memBonusMb
	}
	if err := bonusRows.Err(); err != nil {
		return nil, err
	}

	return cat, nil
}

// limitsBundle is the YAML shape of the static fallback file, mirroring the
// JSON-file-backed catalog of the original config module but collapsed
// into one document instead of three sibling files.
type limitsBundle struct {
	TestCases    map[string][]TestCase `yaml:"testCases"`
	TimeLimits   map[string]float64    `yaml:"timeLimits"`
	MemoryLimits map[string]int        `yaml:"memoryLimits"`
	TimeBonus    map[string]float64    `yaml:"timeBonus"`
	MemoryBonus  map[string]int        `yaml:"memoryBonus"`
}

// LoadLimitsCatalogFromYAML reads a static bundle file, used for local
// development and tests in place of a Postgres-backed catalog.
func LoadLimitsCatalogFromYAML(path string) (*LimitsCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("core: read limits bundle %s: %w", path, err)
	}
	var bundle limitsBundle
	if err := yaml.Unmarshal(data, &bundle); err != nil {
		return nil, fmt.Errorf("core: parse limits bundle %s: %w", path, err)
	}

	cat := newEmptyLimitsCatalog()
	for k, v := range bundle.TestCases {
		id, err := parseChallengeID(k)
		if err != nil {
			return nil, err
		}
		cat.testCases[id] = v
	}
	for k, v := range bundle.TimeLimits {
		id, err := parseChallengeID(k)
		if err != nil {
			return nil, err
		}
		cat.timeLimits[id] = v
	}
	for k, v := range bundle.MemoryLimits {
		id, err := parseChallengeID(k)
		if err != nil {
			return nil, err
		}
		cat.memoryLimits[id] = v
	}
	for k, v := range bundle.TimeBonus {
		cat.timeBonus[CodeLanguage(k)] = v
	}
	for k, v := range bundle.MemoryBonus {
		cat.memoryBonus[CodeLanguage(k)] = v
	}
	return cat, nil
}

func newEmptyLimitsCatalog() *LimitsCatalog {
	return &LimitsCatalog{
		testCases:    make(map[int64][]TestCase),
		timeLimits:   make(map[int64]float64),
		memoryLimits: make(map[int64]int),
		timeBonus:    make(map[CodeLanguage]float64),
		memoryBonus:  make(map[CodeLanguage]int),
	}
}

func parseChallengeID(s string) (int64, error) {
	var id int64
	if _, err := fmt.Sscanf(s, "%d", &id); err != nil {
		return 0, fmt.Errorf("core: invalid challenge id key %q: %w", s, err)
	}
	return id, nil
}
