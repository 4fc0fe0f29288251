// Package llm abstracts model providers for pull request analysis.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
)

// Client abstracts LLM providers for change analysis.
type Client interface {
	AnalyzeChange(ctx context.Context, input Input) (json.RawMessage, error)
}

// Input captures everything the model sees about a change.
type Input struct {
	Title        string
	Body         string
	Files        []string
	Commits      []string
	Diff         string
	RulesText    string
	LanguageHint string
}

type repairKey struct{}

// WithRepairInstruction returns a context signaling a schema-repair retry.
// The instruction names the validation failure so the model can correct it.
func WithRepairInstruction(ctx context.Context, instruction string) context.Context {
	return context.WithValue(ctx, repairKey{}, instruction)
}

// RepairInstructionFromContext returns the repair instruction, if any.
func RepairInstructionFromContext(ctx context.Context) (string, bool) {
	val := ctx.Value(repairKey{})
	instruction, ok := val.(string)
	return instruction, ok
}

// ErrorKind classifies model failures.
type ErrorKind string

const (
	// KindSchemaInvalid means the model output failed schema validation
	// after all repair attempts.
	KindSchemaInvalid ErrorKind = "schema_invalid"

	// KindUpstream means the provider call itself failed.
	KindUpstream ErrorKind = "upstream"
)

// ModelError is a model analysis failure. Callers absorb it by falling
// back to heuristic analysis; it never fails a run on its own.
type ModelError struct {
	Kind ErrorKind
	Err  error
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("model error (%s): %v", e.Kind, e.Err)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}
