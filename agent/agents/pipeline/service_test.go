package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	contractx "github.com/shoptalk-ai/shoptalk/agent/contract"
	queuex "github.com/shoptalk-ai/shoptalk/agent/queue"
	routerx "github.com/shoptalk-ai/shoptalk/agent/router"
)

type fakeGenerator struct {
	decision  contractx.Decision
	decideErr error
	reply     string
	synthErr  error
	block     bool

	mu         sync.Mutex
	decides    int
	synths     int
	lastSynth  contractx.SynthesizeRequest
	lastDecide contractx.GenerateRequest
}

func (f *fakeGenerator) Decide(ctx context.Context, req contractx.GenerateRequest) (contractx.Decision, error) {
	f.mu.Lock()
	f.decides++
	f.lastDecide = req
	f.mu.Unlock()
	if f.block {
		<-ctx.Done()
		return contractx.Decision{}, fmt.Errorf("%w: %v", contractx.ErrGeneration, ctx.Err())
	}
	if f.decideErr != nil {
		return contractx.Decision{}, f.decideErr
	}
	return f.decision, nil
}

func (f *fakeGenerator) Synthesize(ctx context.Context, req contractx.SynthesizeRequest) (string, error) {
	f.mu.Lock()
	f.synths++
	f.lastSynth = req
	f.mu.Unlock()
	if f.synthErr != nil {
		return "", f.synthErr
	}
	return f.reply, nil
}

type fakeExtractor struct {
	facts []contractx.Fact
	err   error

	mu    sync.Mutex
	calls int
}

func (f *fakeExtractor) Extract(ctx context.Context, req contractx.ExtractRequest) ([]contractx.Fact, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.facts, nil
}

func (f *fakeExtractor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeRegistry struct {
	tx *fakeGenerator
	as *fakeGenerator
	ex *fakeExtractor
}

func (f *fakeRegistry) Transactional() contractx.Generator { return f.tx }
func (f *fakeRegistry) Assistance() contractx.Generator    { return f.as }
func (f *fakeRegistry) Extractor() contractx.FactExtractor { return f.ex }

type fakeGateway struct {
	results []contractx.CapabilityResult

	mu      sync.Mutex
	batches [][]contractx.CapabilityCall
}

func (f *fakeGateway) Execute(ctx context.Context, agent contractx.AgentType, customerID string, calls []contractx.CapabilityCall) []contractx.CapabilityResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, calls)
	if f.results != nil {
		return f.results
	}
	out := make([]contractx.CapabilityResult, len(calls))
	for i, call := range calls {
		out[i] = contractx.CapabilityResult{Name: call.Name, Result: map[string]any{"ok": true}, Success: true}
	}
	return out
}

type fakeMemory struct {
	facts   []contractx.Fact
	loadErr error

	mu    sync.Mutex
	saved []contractx.Fact
}

func (f *fakeMemory) LoadFacts(ctx context.Context, customerID string) ([]contractx.Fact, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.facts, nil
}

func (f *fakeMemory) SaveFacts(ctx context.Context, customerID string, facts []contractx.Fact) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, facts...)
	return nil
}

func (f *fakeMemory) savedFacts() []contractx.Fact {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]contractx.Fact, len(f.saved))
	copy(out, f.saved)
	return out
}

type fakeOrderReader struct {
	snapshot *contractx.OrderSnapshot
	err      error
}

func (f *fakeOrderReader) RecentOrder(ctx context.Context, customerID string) (*contractx.OrderSnapshot, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.snapshot, nil
}

type captureSink struct {
	mu   sync.Mutex
	recs []contractx.TurnRecord
}

func (s *captureSink) Record(_ context.Context, rec contractx.TurnRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = append(s.recs, rec)
}

func (s *captureSink) records() []contractx.TurnRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]contractx.TurnRecord, len(s.recs))
	copy(out, s.recs)
	return out
}

type testDeps struct {
	queue   *queuex.Queue
	reg     *fakeRegistry
	gateway *fakeGateway
	memory  *fakeMemory
	orders  *fakeOrderReader
	sink    *captureSink
}

func newTestPipeline(t *testing.T, deps *testDeps, cfg Config) *Pipeline {
	t.Helper()
	if deps.queue == nil {
		deps.queue = queuex.New(queuex.Config{})
	}
	if deps.reg == nil {
		deps.reg = &fakeRegistry{
			tx: &fakeGenerator{decision: contractx.RespondDirectly("tx reply")},
			as: &fakeGenerator{decision: contractx.RespondDirectly("as reply")},
			ex: &fakeExtractor{},
		}
	}
	if deps.gateway == nil {
		deps.gateway = &fakeGateway{}
	}
	if deps.memory == nil {
		deps.memory = &fakeMemory{}
	}
	if deps.orders == nil {
		deps.orders = &fakeOrderReader{}
	}
	if deps.sink == nil {
		deps.sink = &captureSink{}
	}

	p, err := New(deps.queue, routerx.New(routerx.Config{}), deps.reg, deps.gateway, deps.memory, deps.orders, deps.sink, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func testMessage(customerID, content string) *queuex.QueuedMessage {
	return &queuex.QueuedMessage{
		ID:         "turn-1",
		CustomerID: customerID,
		Channel:    "chat",
		Content:    content,
		ReceivedAt: time.Now(),
	}
}

func TestHandleTurnDirectReply(t *testing.T) {
	t.Parallel()

	deps := &testDeps{}
	p := newTestPipeline(t, deps, Config{})

	rec := p.HandleTurn(context.Background(), testMessage("c1", "Show me hoodies"))

	if rec.Failed {
		t.Fatalf("turn failed: %+v", rec)
	}
	if rec.Reply != "tx reply" {
		t.Fatalf("reply %q, want the transactional specialist's", rec.Reply)
	}
	if rec.Routing.Agent != contractx.AgentTypeTransactional {
		t.Fatalf("routed to %s", rec.Routing.Agent)
	}
	if len(rec.Trace) == 0 {
		t.Fatal("no trace entries recorded")
	}
}

func TestRoutingBranchSelectsSpecialist(t *testing.T) {
	t.Parallel()

	deps := &testDeps{}
	p := newTestPipeline(t, deps, Config{})

	rec := p.HandleTurn(context.Background(), testMessage("c1", "Where is my order?"))
	if rec.Reply != "as reply" {
		t.Fatalf("reply %q, want the assistance specialist's", rec.Reply)
	}
	if rec.Routing.Agent != contractx.AgentTypeAssistance {
		t.Fatalf("routed to %s, want assistance", rec.Routing.Agent)
	}
	if deps.reg.tx.decides != 0 {
		t.Fatal("transactional specialist was invoked on an assistance turn")
	}
}

func TestHandleTurnWithCapabilities(t *testing.T) {
	t.Parallel()

	deps := &testDeps{
		reg: &fakeRegistry{
			tx: &fakeGenerator{
				decision: contractx.InvokeCapabilities([]contractx.CapabilityCall{
					{Name: "catalog.search", Args: map[string]any{"query": "hoodie"}},
				}),
				reply: "Here are two hoodies you might like.",
			},
			as: &fakeGenerator{decision: contractx.RespondDirectly("as reply")},
			ex: &fakeExtractor{facts: []contractx.Fact{{Key: "interest", Value: "hoodies", Source: "inferred"}}},
		},
	}
	p := newTestPipeline(t, deps, Config{})

	rec := p.HandleTurn(context.Background(), testMessage("c1", "Show me hoodies"))

	if rec.Failed {
		t.Fatalf("turn failed: %+v", rec)
	}
	if rec.Reply != "Here are two hoodies you might like." {
		t.Fatalf("reply %q", rec.Reply)
	}
	if len(rec.ToolCalls) != 1 || rec.ToolCalls[0].Name != "catalog.search" || !rec.ToolCalls[0].Success {
		t.Fatalf("tool calls %+v", rec.ToolCalls)
	}
	if len(deps.gateway.batches) != 1 {
		t.Fatalf("gateway executed %d batches, want 1", len(deps.gateway.batches))
	}
	if deps.reg.tx.synths != 1 {
		t.Fatalf("synthesize called %d times, want 1", deps.reg.tx.synths)
	}
	saved := deps.memory.savedFacts()
	if len(saved) != 1 || saved[0].Key != "interest" {
		t.Fatalf("saved facts %v", saved)
	}
}

func TestCapabilityFailureDoesNotFailTurn(t *testing.T) {
	t.Parallel()

	deps := &testDeps{
		reg: &fakeRegistry{
			as: &fakeGenerator{
				decision: contractx.InvokeCapabilities([]contractx.CapabilityCall{
					{Name: "order.lookup", Args: map[string]any{"order_id": "ord-9"}},
				}),
				reply: "I couldn't pull up that order just now, but I can help another way.",
			},
			tx: &fakeGenerator{decision: contractx.RespondDirectly("tx reply")},
			ex: &fakeExtractor{},
		},
		gateway: &fakeGateway{results: []contractx.CapabilityResult{
			{Name: "order.lookup", Error: "transient upstream failure: connection reset", Success: false},
		}},
	}
	p := newTestPipeline(t, deps, Config{})

	rec := p.HandleTurn(context.Background(), testMessage("c1", "Where is my order?"))

	if rec.Failed {
		t.Fatal("capability failure must not fail the turn")
	}
	if len(rec.ToolCalls) != 1 || rec.ToolCalls[0].Success {
		t.Fatalf("tool calls %+v, want one recorded failure", rec.ToolCalls)
	}
	// The failure reached synthesis so the reply can acknowledge it.
	synth := deps.reg.as.lastSynth
	if len(synth.Results) != 1 || synth.Results[0].Success {
		t.Fatalf("synthesis saw %+v", synth.Results)
	}
}

func TestGenerationFailureYieldsApologyAndSkipsPersist(t *testing.T) {
	t.Parallel()

	ex := &fakeExtractor{facts: []contractx.Fact{{Key: "x", Value: "y"}}}
	deps := &testDeps{
		reg: &fakeRegistry{
			tx: &fakeGenerator{decideErr: fmt.Errorf("%w: model unavailable", contractx.ErrGeneration)},
			as: &fakeGenerator{decision: contractx.RespondDirectly("as reply")},
			ex: ex,
		},
	}
	p := newTestPipeline(t, deps, Config{})

	rec := p.HandleTurn(context.Background(), testMessage("c1", "Show me hoodies"))

	if !rec.Failed {
		t.Fatal("generation failure must mark the turn failed")
	}
	if rec.Reply != defaultApology {
		t.Fatalf("reply %q, want the apology", rec.Reply)
	}
	if ex.callCount() != 0 {
		t.Fatal("memory persistence ran on a failed turn")
	}
	if len(deps.memory.savedFacts()) != 0 {
		t.Fatal("facts saved on a failed turn")
	}
}

func TestTurnTimeoutYieldsApology(t *testing.T) {
	t.Parallel()

	deps := &testDeps{
		reg: &fakeRegistry{
			tx: &fakeGenerator{block: true},
			as: &fakeGenerator{decision: contractx.RespondDirectly("as reply")},
			ex: &fakeExtractor{},
		},
	}
	p := newTestPipeline(t, deps, Config{TurnTimeout: 50 * time.Millisecond})

	start := time.Now()
	rec := p.HandleTurn(context.Background(), testMessage("c1", "Show me hoodies"))

	if !rec.Failed {
		t.Fatal("timed-out turn not marked failed")
	}
	if rec.Reply != defaultApology {
		t.Fatalf("reply %q, want the apology", rec.Reply)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("turn took %v, deadline not enforced", elapsed)
	}
}

func TestHandleTurnReleasesProcessingFlag(t *testing.T) {
	t.Parallel()

	q := queuex.New(queuex.Config{})
	deps := &testDeps{queue: q}
	p := newTestPipeline(t, deps, Config{})

	q.Enqueue(queuex.InboundMessage{CustomerID: "c1", Text: "urgent, where is my package"})
	ready := q.DequeueReady()
	if len(ready) != 1 {
		t.Fatalf("got %d ready, want 1", len(ready))
	}
	if !q.Processing("c1") {
		t.Fatal("customer not marked processing")
	}

	p.HandleTurn(context.Background(), ready[0])

	if q.Processing("c1") {
		t.Fatal("processing flag not released after turn")
	}
}

func TestHandleTurnKeepsHistoryAcrossTurns(t *testing.T) {
	t.Parallel()

	deps := &testDeps{}
	p := newTestPipeline(t, deps, Config{})

	p.HandleTurn(context.Background(), testMessage("c1", "Show me hoodies"))
	p.HandleTurn(context.Background(), testMessage("c1", "Show me sneakers too"))

	req := deps.reg.tx.lastDecide
	if len(req.History) != 2 {
		t.Fatalf("second turn saw %d history messages, want 2", len(req.History))
	}
	if req.History[0].Role != "customer" || req.History[1].Role != "assistant" {
		t.Fatalf("history roles %s,%s", req.History[0].Role, req.History[1].Role)
	}
}

func TestMemoryLoadFailureDoesNotFailTurn(t *testing.T) {
	t.Parallel()

	deps := &testDeps{
		memory: &fakeMemory{loadErr: errors.New("db down")},
		orders: &fakeOrderReader{err: errors.New("db down")},
	}
	p := newTestPipeline(t, deps, Config{})

	rec := p.HandleTurn(context.Background(), testMessage("c1", "Show me hoodies"))
	if rec.Failed {
		t.Fatal("memory load failure must not fail the turn")
	}
	if rec.Reply != "tx reply" {
		t.Fatalf("reply %q", rec.Reply)
	}
}

func TestRunDrainsQueueAndEmitsRecords(t *testing.T) {
	t.Parallel()

	q := queuex.New(queuex.Config{})
	deps := &testDeps{queue: q}
	p := newTestPipeline(t, deps, Config{PollInterval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = p.Run(ctx)
	}()

	// Urgent bypasses the debounce delay, so the next poll picks it up.
	res := p.Enqueue(queuex.InboundMessage{CustomerID: "c1", Text: "urgent: show me hoodies"})
	if res.Status != queuex.StatusAccepted {
		t.Fatalf("enqueue: %s", res.Status)
	}

	deadline := time.After(3 * time.Second)
	for len(deps.sink.records()) == 0 {
		select {
		case <-deadline:
			t.Fatal("no turn record emitted")
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()
	<-done

	recs := deps.sink.records()
	if recs[0].CustomerID != "c1" || recs[0].Failed {
		t.Fatalf("record %+v", recs[0])
	}
	if q.Processing("c1") {
		t.Fatal("processing flag left set after Run turn")
	}
}
