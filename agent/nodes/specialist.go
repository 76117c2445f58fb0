package turnnode

import (
	"context"
	"encoding/json"
	"fmt"

	contractx "github.com/shoptalk-ai/shoptalk/agent/contract"
)

const resultSummaryLimit = 240

// RunSpecialist drives one specialist generator through the decide, execute
// and synthesize phases. Capability failures are already folded into the
// results by the gateway and flow to synthesis as-is; only generation itself
// failing propagates as an error and fails the turn.
func RunSpecialist(ctx context.Context, in *GraphState, gen contractx.Generator, gateway contractx.CapabilityGateway, agent contractx.AgentType) (*GraphState, error) {
	req := contractx.GenerateRequest{
		UserMessage: in.Content,
		History:     in.History,
		Facts:       in.Facts,
		RecentOrder: in.RecentOrder,
		Routing:     in.Routing,
	}

	decision, err := gen.Decide(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%s decide: %w", agent, err)
	}
	in.Decision = decision

	if decision.Kind == contractx.DecisionRespond {
		in.Reply = decision.Reply
		in.trace(string(agent), "responded directly")
		return in, nil
	}

	results := gateway.Execute(ctx, agent, in.CustomerID, decision.Calls)
	in.Results = results
	for i, call := range decision.Calls {
		rec := contractx.ToolCallRecord{Name: call.Name, Args: call.Args}
		if i < len(results) {
			rec.Success = results[i].Success
			rec.ResultSummary = summarizeResult(results[i])
		}
		in.ToolCalls = append(in.ToolCalls, rec)
	}

	reply, err := gen.Synthesize(ctx, contractx.SynthesizeRequest{
		GenerateRequest: req,
		Results:         results,
	})
	if err != nil {
		return nil, fmt.Errorf("%s synthesize: %w", agent, err)
	}
	in.Reply = reply
	in.trace(string(agent), fmt.Sprintf("synthesized from %d capability results", len(results)))
	return in, nil
}

func summarizeResult(res contractx.CapabilityResult) string {
	if !res.Success {
		return "error: " + res.Error
	}
	raw, err := json.Marshal(res.Result)
	if err != nil {
		return fmt.Sprintf("%v", res.Result)
	}
	s := string(raw)
	if len(s) > resultSummaryLimit {
		s = s[:resultSummaryLimit] + "..."
	}
	return s
}
