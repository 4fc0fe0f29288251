package llm

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

const validResponse = `{
	"pr_summary": {"what_changed": "Adds validation", "why_it_changed": "Hardening", "key_files": ["a.go"]},
	"findings": [],
	"risk_matrix": {"security": "low", "performance": "low", "breaking_change": "low", "maintainability": "low"},
	"test_plan": {"unit_tests": [], "integration_tests": [], "edge_cases": []},
	"merge_readiness": {"score": 95, "blockers": [], "notes": "ok"}
}`

type scriptedClient struct {
	responses []string
	errs      []error
	calls     int
	repairs   []string
}

func (s *scriptedClient) AnalyzeChange(ctx context.Context, input Input) (json.RawMessage, error) {
	idx := s.calls
	s.calls++
	if instruction, ok := RepairInstructionFromContext(ctx); ok {
		s.repairs = append(s.repairs, instruction)
	} else {
		s.repairs = append(s.repairs, "")
	}
	if idx < len(s.errs) && s.errs[idx] != nil {
		return nil, s.errs[idx]
	}
	if idx < len(s.responses) {
		return json.RawMessage(s.responses[idx]), nil
	}
	return nil, errors.New("no scripted response")
}

func TestAnalyzeValidFirstTry(t *testing.T) {
	client := &scriptedClient{responses: []string{validResponse}}
	a := NewAnalyzer(client, "openai/test", 2)

	result, err := a.Analyze(context.Background(), Input{Diff: "+x\n"})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if result.MergeReadiness.Score != 95 {
		t.Fatalf("unexpected score %d", result.MergeReadiness.Score)
	}
	if client.calls != 1 {
		t.Fatalf("expected 1 call, got %d", client.calls)
	}
}

func TestAnalyzeRepairsInvalidOutput(t *testing.T) {
	invalid := strings.Replace(validResponse, `"low"`, `"extreme"`, 1)
	client := &scriptedClient{responses: []string{invalid, validResponse}}
	a := NewAnalyzer(client, "openai/test", 2)

	result, err := a.Analyze(context.Background(), Input{Diff: "+x\n"})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if result == nil {
		t.Fatalf("expected repaired result")
	}
	if client.calls != 2 {
		t.Fatalf("expected 2 calls, got %d", client.calls)
	}
	if client.repairs[0] != "" {
		t.Fatalf("first call must not carry a repair instruction")
	}
	if !strings.Contains(client.repairs[1], "extreme") {
		t.Fatalf("repair instruction should name the validation failure, got %q", client.repairs[1])
	}
}

func TestAnalyzeSchemaExhaustion(t *testing.T) {
	client := &scriptedClient{responses: []string{"not json", "not json", "not json"}}
	a := NewAnalyzer(client, "openai/test", 2)

	_, err := a.Analyze(context.Background(), Input{Diff: "+x\n"})
	var modelErr *ModelError
	if !errors.As(err, &modelErr) {
		t.Fatalf("expected ModelError, got %v", err)
	}
	if modelErr.Kind != KindSchemaInvalid {
		t.Fatalf("expected schema_invalid, got %s", modelErr.Kind)
	}
	if client.calls != 3 {
		t.Fatalf("expected 1 attempt + 2 repairs, got %d calls", client.calls)
	}
}

func TestAnalyzeUpstreamFailureNotRetriedBySchemaLoop(t *testing.T) {
	client := &scriptedClient{errs: []error{errors.New("status code: 500")}}
	a := NewAnalyzer(client, "openai/test", 2)

	_, err := a.Analyze(context.Background(), Input{Diff: "+x\n"})
	var modelErr *ModelError
	if !errors.As(err, &modelErr) {
		t.Fatalf("expected ModelError, got %v", err)
	}
	if modelErr.Kind != KindUpstream {
		t.Fatalf("expected upstream kind, got %s", modelErr.Kind)
	}
	if client.calls != 1 {
		t.Fatalf("schema loop must not retry provider failures, got %d calls", client.calls)
	}
}

func TestAnalyzeDoesNotFillDefaults(t *testing.T) {
	missing := `{"findings": [], "risk_matrix": {"security": "low", "performance": "low", "breaking_change": "low", "maintainability": "low"}, "test_plan": {}, "merge_readiness": {"score": 50}}`
	client := &scriptedClient{responses: []string{missing, missing, missing}}
	a := NewAnalyzer(client, "openai/test", 2)

	_, err := a.Analyze(context.Background(), Input{Diff: "+x\n"})
	var modelErr *ModelError
	if !errors.As(err, &modelErr) || modelErr.Kind != KindSchemaInvalid {
		t.Fatalf("missing required fields must fail validation, got %v", err)
	}
}
