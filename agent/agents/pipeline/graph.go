package pipeline

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"

	contractx "github.com/shoptalk-ai/shoptalk/agent/contract"
	turnnode "github.com/shoptalk-ai/shoptalk/agent/nodes"
)

const (
	nodeTransactional = "transactional_specialist"
	nodeAssistance    = "assistance_specialist"
)

func (p *Pipeline) compileTurnGraph(ctx context.Context) (compose.Runnable[turnnode.GraphInput, turnnode.GraphOutput], error) {
	graph := compose.NewGraph[turnnode.GraphInput, turnnode.GraphOutput]()

	if err := graph.AddLambdaNode("validate_request",
		compose.InvokableLambda(func(ctx context.Context, in turnnode.GraphInput) (*turnnode.GraphState, error) {
			return turnnode.ValidateRequest(in, p.now)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node validate_request: %w", err)
	}

	if err := graph.AddLambdaNode("load_memory",
		compose.InvokableLambda(func(ctx context.Context, in *turnnode.GraphState) (*turnnode.GraphState, error) {
			return turnnode.LoadMemory(ctx, in, p.memory, p.orders)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node load_memory: %w", err)
	}

	if err := graph.AddLambdaNode("route",
		compose.InvokableLambda(func(ctx context.Context, in *turnnode.GraphState) (*turnnode.GraphState, error) {
			return turnnode.Route(in, p.router, p.cfg.RecentOrderWindow)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node route: %w", err)
	}

	if err := graph.AddLambdaNode(nodeTransactional,
		compose.InvokableLambda(func(ctx context.Context, in *turnnode.GraphState) (*turnnode.GraphState, error) {
			return turnnode.RunSpecialist(ctx, in, p.models.Transactional(), p.gateway, contractx.AgentTypeTransactional)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node %s: %w", nodeTransactional, err)
	}

	if err := graph.AddLambdaNode(nodeAssistance,
		compose.InvokableLambda(func(ctx context.Context, in *turnnode.GraphState) (*turnnode.GraphState, error) {
			return turnnode.RunSpecialist(ctx, in, p.models.Assistance(), p.gateway, contractx.AgentTypeAssistance)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node %s: %w", nodeAssistance, err)
	}

	if err := graph.AddLambdaNode("persist_memory",
		compose.InvokableLambda(func(ctx context.Context, in *turnnode.GraphState) (*turnnode.GraphState, error) {
			return turnnode.PersistMemory(ctx, in, p.models.Extractor(), p.memory)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node persist_memory: %w", err)
	}

	if err := graph.AddLambdaNode("finalize_reply",
		compose.InvokableLambda(func(ctx context.Context, in *turnnode.GraphState) (turnnode.GraphOutput, error) {
			return turnnode.FinalizeReply(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node finalize_reply: %w", err)
	}

	branch := compose.NewGraphBranch(
		func(ctx context.Context, in *turnnode.GraphState) (string, error) {
			if in.Routing.Agent == contractx.AgentTypeTransactional {
				return nodeTransactional, nil
			}
			return nodeAssistance, nil
		},
		map[string]bool{nodeTransactional: true, nodeAssistance: true},
	)
	if err := graph.AddBranch("route", branch); err != nil {
		return nil, fmt.Errorf("add branch route: %w", err)
	}

	edges := [][2]string{
		{compose.START, "validate_request"},
		{"validate_request", "load_memory"},
		{"load_memory", "route"},
		{nodeTransactional, "persist_memory"},
		{nodeAssistance, "persist_memory"},
		{"persist_memory", "finalize_reply"},
		{"finalize_reply", compose.END},
	}

	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("pipeline.turn"))
	if err != nil {
		return nil, fmt.Errorf("compile turn graph: %w", err)
	}
	return runner, nil
}
