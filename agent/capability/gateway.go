package capability

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	contractx "github.com/shoptalk-ai/shoptalk/agent/contract"
)

// Per-agent allowlists: the transactional specialist sells, the assistance
// specialist services existing orders. Both share customer memory.
var agentAllowlist = map[contractx.AgentType]map[string]struct{}{
	contractx.AgentTypeTransactional: {
		NameCatalogSearch: {},
		NameOrderLookup:   {},
		NameOrderCreate:   {},
		NameMemoryGet:     {},
		NameMemorySet:     {},
	},
	contractx.AgentTypeAssistance: {
		NameOrderLookup:     {},
		NameKnowledgeSearch: {},
		NameMemoryGet:       {},
		NameMemorySet:       {},
	},
}

// Gateway executes capability batches. Calls in a batch are independent, so
// they fan out concurrently; every outcome is recorded individually and a
// failed call never fails the batch.
type Gateway struct {
	registry map[string]Capability
}

var _ contractx.CapabilityGateway = (*Gateway)(nil)

func NewGateway(engine Searcher, orders OrderStore, articles KnowledgeStore, memory contractx.MemoryStore) (*Gateway, error) {
	if engine == nil || orders == nil || articles == nil || memory == nil {
		return nil, errMissingDependency
	}

	caps := []Capability{
		catalogSearch{engine: engine},
		orderLookup{orders: orders},
		orderCreate{orders: orders},
		knowledgeSearch{articles: articles},
		memoryGet{memory: memory},
		memorySet{memory: memory},
	}

	registry := make(map[string]Capability, len(caps))
	for _, c := range caps {
		registry[c.Name()] = c
	}
	return &Gateway{registry: registry}, nil
}

func (g *Gateway) Execute(ctx context.Context, agent contractx.AgentType, customerID string, calls []contractx.CapabilityCall) []contractx.CapabilityResult {
	results := make([]contractx.CapabilityResult, len(calls))

	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call contractx.CapabilityCall) {
			defer wg.Done()
			results[i] = g.invoke(ctx, agent, customerID, call)
		}(i, call)
	}
	wg.Wait()

	return results
}

func (g *Gateway) invoke(ctx context.Context, agent contractx.AgentType, customerID string, call contractx.CapabilityCall) contractx.CapabilityResult {
	impl, ok := g.registry[call.Name]
	if !ok {
		return failure(call.Name, fmt.Errorf("%w: %s", contractx.ErrUnknownCapability, call.Name))
	}
	if allowed, ok := agentAllowlist[agent]; !ok {
		return failure(call.Name, fmt.Errorf("%w: unknown agent %q", contractx.ErrValidation, agent))
	} else if _, ok := allowed[call.Name]; !ok {
		return failure(call.Name, fmt.Errorf("%w: %s not allowed for agent %s", contractx.ErrValidation, call.Name, agent))
	}

	payload, err := impl.Invoke(ctx, customerID, call.Args)
	if err != nil && impl.Idempotent() && errors.Is(err, contractx.ErrTransientUpstream) && ctx.Err() == nil {
		// One retry for idempotent reads only; writes and non-transient
		// failures surface immediately.
		log.Warn().Err(err).Str("capability", call.Name).Msg("retrying idempotent capability call")
		payload, err = impl.Invoke(ctx, customerID, call.Args)
	}
	if err != nil {
		return failure(call.Name, err)
	}

	return contractx.CapabilityResult{
		Name:    call.Name,
		Result:  payload,
		Success: true,
	}
}

func failure(name string, err error) contractx.CapabilityResult {
	log.Warn().Err(err).Str("capability", name).Msg("capability call failed")
	return contractx.CapabilityResult{
		Name:  name,
		Error: err.Error(),
	}
}
