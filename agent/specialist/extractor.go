package specialist

import (
	"context"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"

	contractx "github.com/shoptalk-ai/shoptalk/agent/contract"
)

type extractorImpl struct {
	runner compose.Runnable[map[string]any, extractorLLMOutput]
}

type extractorLLMOutput struct {
	Facts []extractedFact `json:"facts"`
}

type extractedFact struct {
	Key    string `json:"key"`
	Value  string `json:"value"`
	Source string `json:"source,omitempty"`
}

var _ contractx.FactExtractor = (*extractorImpl)(nil)

func newExtractor(ctx context.Context, chatModel einomodel.BaseChatModel, systemPrompt string) (*extractorImpl, error) {
	runner, err := compileStructuredLLMGraph[extractorLLMOutput](ctx, chatModel, systemPrompt, "extractor.model_graph")
	if err != nil {
		return nil, fmt.Errorf("%w: compile extractor graph: %v", contractx.ErrGeneration, err)
	}
	return &extractorImpl{runner: runner}, nil
}

// Extract returns the facts from this turn worth keeping long-term. Errors
// here are never fatal to the turn; the caller logs and moves on.
func (e *extractorImpl) Extract(ctx context.Context, req contractx.ExtractRequest) ([]contractx.Fact, error) {
	input, err := marshalPayload(map[string]any{
		"user_message": req.UserMessage,
		"reply":        req.Reply,
		"known_facts":  req.Facts,
	})
	if err != nil {
		return nil, err
	}

	out, err := e.runner.Invoke(ctx, map[string]any{"input": input})
	if err != nil {
		return nil, fmt.Errorf("%w: extractor invoke: %v", contractx.ErrTransientUpstream, err)
	}

	facts := make([]contractx.Fact, 0, len(out.Facts))
	for _, f := range out.Facts {
		key := strings.TrimSpace(f.Key)
		value := strings.TrimSpace(f.Value)
		if key == "" || value == "" {
			continue
		}
		source := strings.TrimSpace(f.Source)
		if source != "explicit" && source != "inferred" {
			source = "inferred"
		}
		facts = append(facts, contractx.Fact{Key: key, Value: value, Source: source})
	}
	return facts, nil
}
