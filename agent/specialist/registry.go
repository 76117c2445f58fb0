package specialist

import (
	"context"
	"fmt"

	contractx "github.com/shoptalk-ai/shoptalk/agent/contract"
	promptx "github.com/shoptalk-ai/shoptalk/agent/prompt"
	openrouterx "github.com/shoptalk-ai/shoptalk/pkg/openrouter"
)

type registryImpl struct {
	transactional contractx.Generator
	assistance    contractx.Generator
	extractor     contractx.FactExtractor
}

func (r *registryImpl) Transactional() contractx.Generator {
	return r.transactional
}

func (r *registryImpl) Assistance() contractx.Generator {
	return r.assistance
}

func (r *registryImpl) Extractor() contractx.FactExtractor {
	return r.extractor
}

// NewRegistry builds both specialist generators and the fact extractor from
// one OpenRouter config. The extractor uses the cheaper extractor model.
func NewRegistry(ctx context.Context, cfg openrouterx.Config) (contractx.Registry, error) {
	prompts := promptx.LoadPromptSet()
	if err := prompts.Validate(); err != nil {
		return nil, err
	}

	chatModel, err := cfg.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: create chat model: %v", contractx.ErrGeneration, err)
	}
	extractorModel, err := cfg.NewExtractor(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: create extractor model: %v", contractx.ErrGeneration, err)
	}

	transactional, err := newGenerator(ctx, contractx.AgentTypeTransactional, chatModel, prompts.Transactional)
	if err != nil {
		return nil, err
	}
	assistance, err := newGenerator(ctx, contractx.AgentTypeAssistance, chatModel, prompts.Assistance)
	if err != nil {
		return nil, err
	}
	extractor, err := newExtractor(ctx, extractorModel, prompts.Extractor)
	if err != nil {
		return nil, err
	}

	return &registryImpl{
		transactional: transactional,
		assistance:    assistance,
		extractor:     extractor,
	}, nil
}
