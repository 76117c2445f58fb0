// Package turnnode holds the per-node logic of the turn state machine. Each
// node takes the shared GraphState, does one stage of work, and hands the
// state forward; the pipeline package wires them into a compiled graph.
package turnnode

import (
	"errors"
	"strings"
	"time"

	contractx "github.com/shoptalk-ai/shoptalk/agent/contract"
)

var (
	ErrInvalidCustomer = errors.New("customer id is empty")
	ErrInvalidContent  = errors.New("message content is empty")
)

// GraphInput is the aggregated message handed over by the inbound queue,
// plus the short history the pipeline keeps per customer.
type GraphInput struct {
	TurnID     string
	CustomerID string
	Channel    string
	Content    string
	MultiPart  bool
	ReceivedAt time.Time
	History    []contractx.Message
}

// GraphOutput is everything the pipeline emits per turn.
type GraphOutput struct {
	Reply     string
	Routing   contractx.RoutingDecision
	ToolCalls []contractx.ToolCallRecord
	Trace     []contractx.TraceEntry
}

// GraphState is the full working set of one turn. Owned exclusively by the
// running graph; discarded after the output is emitted.
type GraphState struct {
	TurnID     string
	CustomerID string
	Channel    string
	Content    string
	MultiPart  bool
	Now        time.Time
	History    []contractx.Message

	Facts       []contractx.Fact
	RecentOrder *contractx.OrderSnapshot

	Routing  contractx.RoutingDecision
	Decision contractx.Decision
	Results  []contractx.CapabilityResult

	Reply     string
	ToolCalls []contractx.ToolCallRecord
	Trace     []contractx.TraceEntry
}

func (s *GraphState) trace(node, rationale string) {
	s.Trace = append(s.Trace, contractx.TraceEntry{
		Node:      node,
		Rationale: rationale,
		Timestamp: time.Now().UTC(),
	})
}

func ValidateRequest(in GraphInput, nowFn func() time.Time) (*GraphState, error) {
	customerID := strings.TrimSpace(in.CustomerID)
	if customerID == "" {
		return nil, ErrInvalidCustomer
	}
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, ErrInvalidContent
	}

	st := &GraphState{
		TurnID:     in.TurnID,
		CustomerID: customerID,
		Channel:    strings.TrimSpace(in.Channel),
		Content:    content,
		MultiPart:  in.MultiPart,
		Now:        nowFn().UTC(),
		History:    in.History,
	}
	st.trace("validate", "request accepted")
	return st, nil
}
