package contract

import "time"

type AgentType string

const (
	AgentTypeTransactional AgentType = "transactional"
	AgentTypeAssistance    AgentType = "assistance"
)

// Message is one entry of per-customer conversation history.
type Message struct {
	Role      string    `json:"role"` // "customer" | "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// RoutingDecision is produced once per turn by the intent router.
type RoutingDecision struct {
	Agent             AgentType `json:"agent"`
	Confidence        float64   `json:"confidence"`
	MatchedPatternIDs []string  `json:"matched_pattern_ids,omitempty"`
	Rationale         string    `json:"rationale,omitempty"`
}

// Fact is one long-term memory entry for a customer.
type Fact struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	Source    string    `json:"source"` // "explicit" | "inferred"
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// OrderSnapshot is the most recent order for a customer, loaded at turn start.
type OrderSnapshot struct {
	OrderID  string    `json:"order_id"`
	Status   string    `json:"status"`
	Items    []string  `json:"items,omitempty"`
	Total    float64   `json:"total,omitempty"`
	PlacedAt time.Time `json:"placed_at"`
}

// CapabilityCall is one requested external operation. Calls in a batch are
// independent of each other and run concurrently.
type CapabilityCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// CapabilityResult is the recorded outcome of a single capability call. A
// failed call never fails the turn; it degrades the synthesis input.
type CapabilityResult struct {
	Name    string `json:"name"`
	Result  any    `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
	Success bool   `json:"success"`
}

// ToolCallRecord is the per-call observability record emitted with the turn.
type ToolCallRecord struct {
	Name          string         `json:"name"`
	Args          map[string]any `json:"args,omitempty"`
	ResultSummary string         `json:"result_summary,omitempty"`
	Success       bool           `json:"success"`
}

// TraceEntry is one reasoning-trace step.
type TraceEntry struct {
	Node      string    `json:"node"`
	Rationale string    `json:"rationale"`
	Timestamp time.Time `json:"timestamp"`
}

type DecisionKind string

const (
	DecisionRespond DecisionKind = "respond_directly"
	DecisionInvoke  DecisionKind = "invoke_capabilities"
)

// Decision is the generation capability's strictly typed first-pass output:
// either a direct reply or a batch of capability calls to execute.
type Decision struct {
	Kind  DecisionKind     `json:"kind"`
	Reply string           `json:"reply,omitempty"`
	Calls []CapabilityCall `json:"calls,omitempty"`
}

func RespondDirectly(reply string) Decision {
	return Decision{Kind: DecisionRespond, Reply: reply}
}

func InvokeCapabilities(calls []CapabilityCall) Decision {
	return Decision{Kind: DecisionInvoke, Calls: calls}
}

// GenerateRequest is the turn context handed to a specialist generator.
type GenerateRequest struct {
	UserMessage string          `json:"user_message"`
	History     []Message       `json:"history,omitempty"`
	Facts       []Fact          `json:"facts,omitempty"`
	RecentOrder *OrderSnapshot  `json:"recent_order,omitempty"`
	Routing     RoutingDecision `json:"routing"`
}

// SynthesizeRequest carries all capability outcomes (including failures) back
// to the generator for the final reply.
type SynthesizeRequest struct {
	GenerateRequest
	Results []CapabilityResult `json:"results"`
}

// ExtractRequest asks the extractor which facts from this turn are worth
// keeping.
type ExtractRequest struct {
	UserMessage string `json:"user_message"`
	Reply       string `json:"reply"`
	Facts       []Fact `json:"facts,omitempty"`
}

// TurnRecord is the per-turn observability output.
type TurnRecord struct {
	TurnID      string           `json:"turn_id"`
	CustomerID  string           `json:"customer_id"`
	Channel     string           `json:"channel"`
	Reply       string           `json:"reply"`
	Routing     RoutingDecision  `json:"routing"`
	ToolCalls   []ToolCallRecord `json:"tool_calls,omitempty"`
	Trace       []TraceEntry     `json:"trace,omitempty"`
	Failed      bool             `json:"failed"`
	StartedAt   time.Time        `json:"started_at"`
	CompletedAt time.Time        `json:"completed_at"`
}
