package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"prreview-backend/internal/review"
)

// Analyzer runs model analysis and enforces the output schema. Invalid
// output triggers repair retries: the request is reissued with an extra
// instruction naming the validation failure.
type Analyzer struct {
	client        Client
	modelVersion  string
	schemaRetries int
}

// NewAnalyzer constructs an Analyzer. modelVersion labels results in
// stored runs; schemaRetries is the number of repair attempts after the
// first validation failure.
func NewAnalyzer(client Client, modelVersion string, schemaRetries int) *Analyzer {
	if schemaRetries < 0 {
		schemaRetries = 0
	}
	return &Analyzer{
		client:        client,
		modelVersion:  modelVersion,
		schemaRetries: schemaRetries,
	}
}

// ModelVersion labels results produced by this analyzer.
func (a *Analyzer) ModelVersion() string {
	return a.modelVersion
}

// Analyze calls the model and validates its output against the review
// schema. Provider failures return a ModelError of kind upstream; output
// that never validates returns kind schema_invalid.
func (a *Analyzer) Analyze(ctx context.Context, input Input) (*review.Result, error) {
	var lastErr error
	callCtx := ctx
	for attempt := 0; attempt <= a.schemaRetries; attempt++ {
		raw, err := a.client.AnalyzeChange(callCtx, input)
		if err != nil {
			return nil, &ModelError{Kind: KindUpstream, Err: err}
		}

		result, err := decodeResult(raw)
		if err == nil {
			return result, nil
		}
		lastErr = err
		callCtx = WithRepairInstruction(ctx, repairInstruction(err))
	}
	return nil, &ModelError{Kind: KindSchemaInvalid, Err: lastErr}
}

func decodeResult(raw json.RawMessage) (*review.Result, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	var result review.Result
	if err := dec.Decode(&result); err != nil {
		return nil, fmt.Errorf("decode model output: %w", err)
	}
	if err := result.Validate(); err != nil {
		return nil, err
	}
	return &result, nil
}

func repairInstruction(validationErr error) string {
	return fmt.Sprintf(
		"Your previous response failed schema validation: %v. "+
			"Respond again with a single JSON object that satisfies the required schema exactly.",
		validationErr,
	)
}
