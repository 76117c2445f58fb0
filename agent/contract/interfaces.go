package contract

import "context"

// Generator is the opaque generation capability behind one specialist branch.
// Decide returns a strictly typed decision; Synthesize folds capability
// outcomes (including failures) into the final reply.
type Generator interface {
	Decide(ctx context.Context, req GenerateRequest) (Decision, error)
	Synthesize(ctx context.Context, req SynthesizeRequest) (string, error)
}

// FactExtractor identifies facts worth remembering from a completed turn.
type FactExtractor interface {
	Extract(ctx context.Context, req ExtractRequest) ([]Fact, error)
}

// Registry hands out the specialist generators and the extractor.
type Registry interface {
	Transactional() Generator
	Assistance() Generator
	Extractor() FactExtractor
}

// CapabilityGateway executes a batch of independent capability calls
// concurrently. It never returns an error for individual call failures;
// each outcome is recorded in its CapabilityResult.
type CapabilityGateway interface {
	Execute(ctx context.Context, agent AgentType, customerID string, calls []CapabilityCall) []CapabilityResult
}

// MemoryStore persists long-term facts per customer.
type MemoryStore interface {
	LoadFacts(ctx context.Context, customerID string) ([]Fact, error)
	SaveFacts(ctx context.Context, customerID string, facts []Fact) error
}

// OrderReader loads the most recent order snapshot for a customer.
// Returns (nil, nil) when the customer has no orders.
type OrderReader interface {
	RecentOrder(ctx context.Context, customerID string) (*OrderSnapshot, error)
}

// Sink receives the per-turn observability record.
type Sink interface {
	Record(ctx context.Context, rec TurnRecord)
}
