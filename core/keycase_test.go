package core

import "testing"

func TestSnakeToCamel(t *testing.T) {
	cases := map[string]string{
		"total_test_cases": "totalTestCases",
		"jobId":             "jobId",
		"code_language":     "codeLanguage",
		"a":                 "a",
	}
	for in, want := range cases {
		if got := snakeToCamel(in); got != want {
			t.Errorf("snakeToCamel(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCamelToSnake(t *testing.T) {
	cases := map[string]string{
		"totalTestCases": "total_test_cases",
		"jobId":          "job_id",
		"codeLanguage":   "code_language",
	}
	for in, want := range cases {
		if got := camelToSnake(in); got != want {
			t.Errorf("camelToSnake(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSnakeToCamelIsIdempotent(t *testing.T) {
	for _, s := range []string{"totalTestCases", "jobId", "codeLanguage"} {
		if got := snakeToCamel(s); got != s {
			t.Errorf("snakeToCamel(%q) = %q, want unchanged", s, got)
		}
	}
}

func TestNormalizeKeysToCamelNested(t *testing.T) {
	in := map[string]interface{}{
		"job_id": "abc",
		"nested": map[string]interface{}{
			"total_test_cases": float64(2),
		},
		"list": []interface{}{
			map[string]interface{}{"input_lines": []interface{}{"1"}},
		},
	}
	out := normalizeKeysToCamel(in).(map[string]interface{})
	if _, ok := out["jobId"]; !ok {
		t.Fatalf("expected jobId key, got %v", out)
	}
	nested := out["nested"].(map[string]interface{})
	if _, ok := nested["totalTestCases"]; !ok {
		t.Fatalf("expected totalTestCases key, got %v", nested)
	}
	list := out["list"].([]interface{})
	elem := list[0].(map[string]interface{})
	if _, ok := elem["inputLines"]; !ok {
		t.Fatalf("expected inputLines key, got %v", elem)
	}
}
