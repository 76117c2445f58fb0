// Package specialist wraps the generation capability behind the two
// response branches. Each branch runs a tool-planning pass (native tool
// calling, mapped to a strict typed decision) and a structured synthesis
// pass that folds capability outcomes into the final reply.
package specialist

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/shoptalk-ai/shoptalk/agent/capability"
	contractx "github.com/shoptalk-ai/shoptalk/agent/contract"
)

type generatorImpl struct {
	agentType    contractx.AgentType
	planRunner   compose.Runnable[map[string]any, *schema.Message]
	synthRunner  compose.Runnable[map[string]any, synthesisLLMOutput]
	allowedTools map[string]struct{}
}

type synthesisLLMOutput struct {
	Reply string `json:"reply"`
}

var _ contractx.Generator = (*generatorImpl)(nil)

func newGenerator(
	ctx context.Context,
	agentType contractx.AgentType,
	chatModel einomodel.ToolCallingChatModel,
	systemPrompt string,
) (*generatorImpl, error) {
	tools := capabilityTools(agentType)
	toolModel, err := chatModel.WithTools(tools)
	if err != nil {
		return nil, fmt.Errorf("%w: bind tools for agent=%s: %v", contractx.ErrGeneration, agentType, err)
	}

	planRunner, err := compileToolPlanningGraph(ctx, toolModel, systemPrompt, string(agentType)+".plan_graph")
	if err != nil {
		return nil, fmt.Errorf("%w: compile plan graph: %v", contractx.ErrGeneration, err)
	}

	synthRunner, err := compileStructuredLLMGraph[synthesisLLMOutput](ctx, chatModel, systemPrompt, string(agentType)+".synthesis_graph")
	if err != nil {
		return nil, fmt.Errorf("%w: compile synthesis graph: %v", contractx.ErrGeneration, err)
	}

	allowed := make(map[string]struct{}, len(tools))
	for _, t := range tools {
		if t != nil && strings.TrimSpace(t.Name) != "" {
			allowed[t.Name] = struct{}{}
		}
	}

	return &generatorImpl{
		agentType:    agentType,
		planRunner:   planRunner,
		synthRunner:  synthRunner,
		allowedTools: allowed,
	}, nil
}

// Decide asks the model what should happen next: a direct reply or a batch
// of capability calls. The output is a strict typed decision, never parsed
// free text.
func (g *generatorImpl) Decide(ctx context.Context, req contractx.GenerateRequest) (contractx.Decision, error) {
	input, err := marshalPayload(map[string]any{
		"mode":         "decide",
		"user_message": req.UserMessage,
		"history":      req.History,
		"facts":        req.Facts,
		"recent_order": req.RecentOrder,
		"routing":      req.Routing,
	})
	if err != nil {
		return contractx.Decision{}, err
	}

	msg, err := g.planRunner.Invoke(ctx, map[string]any{"input": input})
	if err != nil {
		return contractx.Decision{}, fmt.Errorf("%w: decide invoke for agent=%s: %v", contractx.ErrGeneration, g.agentType, err)
	}
	if msg == nil {
		return contractx.Decision{}, fmt.Errorf("%w: empty decide response", contractx.ErrGeneration)
	}

	calls, err := toCapabilityCalls(msg.ToolCalls)
	if err != nil {
		return contractx.Decision{}, err
	}

	if len(calls) == 0 {
		reply := strings.TrimSpace(msg.Content)
		if reply == "" {
			return contractx.Decision{}, fmt.Errorf("%w: decide returned neither reply nor capability calls", contractx.ErrSchemaViolation)
		}
		return contractx.RespondDirectly(reply), nil
	}

	for _, call := range calls {
		if _, ok := g.allowedTools[call.Name]; !ok {
			return contractx.Decision{}, fmt.Errorf("%w: capability=%s is not allowed for agent=%s", contractx.ErrSchemaViolation, call.Name, g.agentType)
		}
	}
	return contractx.InvokeCapabilities(calls), nil
}

// Synthesize folds all capability outcomes, including failures, into the
// final reply. A failed call degrades the available information; the model
// is expected to acknowledge it rather than pretend.
func (g *generatorImpl) Synthesize(ctx context.Context, req contractx.SynthesizeRequest) (string, error) {
	input, err := marshalPayload(map[string]any{
		"mode":         "synthesize",
		"user_message": req.UserMessage,
		"history":      req.History,
		"facts":        req.Facts,
		"recent_order": req.RecentOrder,
		"routing":      req.Routing,
		"results":      req.Results,
	})
	if err != nil {
		return "", err
	}

	out, err := g.synthRunner.Invoke(ctx, map[string]any{"input": input})
	if err != nil {
		return "", fmt.Errorf("%w: synthesize invoke for agent=%s: %v", contractx.ErrGeneration, g.agentType, err)
	}

	reply := strings.TrimSpace(out.Reply)
	if reply == "" {
		return "", fmt.Errorf("%w: synthesized reply is empty", contractx.ErrSchemaViolation)
	}
	return reply, nil
}

func marshalPayload(payload map[string]any) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%w: marshal generation payload: %v", contractx.ErrValidation, err)
	}
	return string(raw), nil
}

func toCapabilityCalls(toolCalls []schema.ToolCall) ([]contractx.CapabilityCall, error) {
	if len(toolCalls) == 0 {
		return nil, nil
	}
	calls := make([]contractx.CapabilityCall, 0, len(toolCalls))
	for _, call := range toolCalls {
		name := strings.TrimSpace(call.Function.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: tool call name is empty", contractx.ErrSchemaViolation)
		}

		args := map[string]any{}
		if raw := strings.TrimSpace(call.Function.Arguments); raw != "" {
			if err := json.Unmarshal([]byte(raw), &args); err != nil {
				return nil, fmt.Errorf("%w: invalid args for capability=%s: %v", contractx.ErrSchemaViolation, name, err)
			}
		}

		calls = append(calls, contractx.CapabilityCall{Name: name, Args: args})
	}
	return calls, nil
}

func capabilityTools(agentType contractx.AgentType) []*schema.ToolInfo {
	memoryTools := []*schema.ToolInfo{
		{
			Name: capability.NameMemoryGet,
			Desc: "Read remembered customer facts, optionally by key.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"key": {Type: schema.String, Desc: "Fact key to look up", Required: false},
			}),
		},
		{
			Name: capability.NameMemorySet,
			Desc: "Store a customer fact worth remembering.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"key":   {Type: schema.String, Desc: "Fact key", Required: true},
				"value": {Type: schema.String, Desc: "Fact value", Required: true},
			}),
		},
	}

	switch agentType {
	case contractx.AgentTypeTransactional:
		return append([]*schema.ToolInfo{
			{
				Name: capability.NameCatalogSearch,
				Desc: "Search the product catalog by natural language query.",
				ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
					"query":    {Type: schema.String, Desc: "Search query", Required: true},
					"limit":    {Type: schema.Integer, Desc: "Maximum results", Required: false},
					"category": {Type: schema.String, Desc: "Category filter", Required: false},
				}),
			},
			{
				Name: capability.NameOrderLookup,
				Desc: "Look up an order by id, or the customer's latest order.",
				ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
					"order_id": {Type: schema.String, Desc: "Order id", Required: false},
				}),
			},
			{
				Name: capability.NameOrderCreate,
				Desc: "Create an order for the customer.",
				ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
					"items": {Type: schema.Array, Desc: "Product ids to order", Required: true, ElemInfo: &schema.ParameterInfo{Type: schema.String}},
					"total": {Type: schema.Number, Desc: "Order total", Required: false},
				}),
			},
		}, memoryTools...)
	case contractx.AgentTypeAssistance:
		return append([]*schema.ToolInfo{
			{
				Name: capability.NameOrderLookup,
				Desc: "Look up an order by id, or the customer's latest order.",
				ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
					"order_id": {Type: schema.String, Desc: "Order id", Required: false},
				}),
			},
			{
				Name: capability.NameKnowledgeSearch,
				Desc: "Search FAQ and policy articles.",
				ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
					"query": {Type: schema.String, Desc: "Search query", Required: true},
					"limit": {Type: schema.Integer, Desc: "Maximum results", Required: false},
				}),
			},
		}, memoryTools...)
	default:
		return nil
	}
}
