// Package pipeline owns the end-to-end message flow: it drains the inbound
// queue, runs one compiled turn graph per aggregated message, and emits a
// TurnRecord for every turn, failed ones included.
package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog/log"

	contractx "github.com/shoptalk-ai/shoptalk/agent/contract"
	turnnode "github.com/shoptalk-ai/shoptalk/agent/nodes"
	queuex "github.com/shoptalk-ai/shoptalk/agent/queue"
	routerx "github.com/shoptalk-ai/shoptalk/agent/router"
)

const defaultApology = "Sorry, something went wrong on our side. Please send your message again in a moment."

type Config struct {
	PollInterval       time.Duration `split_words:"true" default:"250ms"`
	TurnTimeout        time.Duration `split_words:"true" default:"45s"`
	MaxConcurrentTurns int           `split_words:"true" default:"8"`
	RecentOrderWindow  time.Duration `split_words:"true" default:"720h"`
	HistoryLimit       int           `split_words:"true" default:"12"`
	ApologyReply       string        `split_words:"true"`
}

type Pipeline struct {
	queue   *queuex.Queue
	router  *routerx.Router
	models  contractx.Registry
	gateway contractx.CapabilityGateway
	memory  contractx.MemoryStore
	orders  contractx.OrderReader
	sink    contractx.Sink

	graphRunner compose.Runnable[turnnode.GraphInput, turnnode.GraphOutput]
	sem         chan struct{}

	histMu  sync.Mutex
	history map[string][]contractx.Message

	cfg Config
	now func() time.Time
}

type Option func(*Pipeline)

// WithClock overrides the time source for tests.
func WithClock(fn func() time.Time) Option {
	return func(p *Pipeline) { p.now = fn }
}

func New(
	queue *queuex.Queue,
	router *routerx.Router,
	models contractx.Registry,
	gateway contractx.CapabilityGateway,
	memory contractx.MemoryStore,
	orders contractx.OrderReader,
	sink contractx.Sink,
	cfg Config,
	opts ...Option,
) (*Pipeline, error) {
	if queue == nil {
		return nil, errors.New("inbound queue is required")
	}
	if router == nil {
		return nil, errors.New("router is required")
	}
	if models == nil {
		return nil, errors.New("model registry is required")
	}
	if gateway == nil {
		return nil, errors.New("capability gateway is required")
	}
	if memory == nil {
		return nil, errors.New("memory store is required")
	}
	if orders == nil {
		return nil, errors.New("order reader is required")
	}
	if sink == nil {
		sink = LogSink{}
	}

	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 250 * time.Millisecond
	}
	if cfg.TurnTimeout <= 0 {
		cfg.TurnTimeout = 45 * time.Second
	}
	if cfg.MaxConcurrentTurns <= 0 {
		cfg.MaxConcurrentTurns = 8
	}
	if cfg.RecentOrderWindow <= 0 {
		cfg.RecentOrderWindow = 30 * 24 * time.Hour
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 12
	}
	if cfg.ApologyReply == "" {
		cfg.ApologyReply = defaultApology
	}

	p := &Pipeline{
		queue:   queue,
		router:  router,
		models:  models,
		gateway: gateway,
		memory:  memory,
		orders:  orders,
		sink:    sink,
		sem:     make(chan struct{}, cfg.MaxConcurrentTurns),
		history: make(map[string][]contractx.Message),
		cfg:     cfg,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}

	runner, err := p.compileTurnGraph(context.Background())
	if err != nil {
		return nil, err
	}
	p.graphRunner = runner

	return p, nil
}

// Enqueue admits one raw inbound message. Exposed so the ingress layer does
// not need to hold the queue directly.
func (p *Pipeline) Enqueue(in queuex.InboundMessage) queuex.AdmitResult {
	return p.queue.Enqueue(in)
}

// Run polls the queue until the context is cancelled. Turns for different
// customers run in parallel up to MaxConcurrentTurns; the queue's processing
// flag keeps each customer on at most one in-flight turn.
func (p *Pipeline) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	var wg sync.WaitGroup
	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return ctx.Err()
		case <-ticker.C:
			for _, msg := range p.queue.DequeueReady() {
				select {
				case p.sem <- struct{}{}:
				case <-ctx.Done():
					p.queue.Release(msg.CustomerID)
					wg.Wait()
					return ctx.Err()
				}
				wg.Add(1)
				go func(m *queuex.QueuedMessage) {
					defer wg.Done()
					defer func() { <-p.sem }()
					rec := p.HandleTurn(ctx, m)
					p.sink.Record(ctx, rec)
				}(msg)
			}
		}
	}
}

// HandleTurn runs one aggregated message through the turn graph under the
// per-turn deadline. Any graph error, generation failure and timeout
// included, resolves to an apology reply and a failed record; the customer
// always hears back. The processing flag is released no matter how the turn
// ends.
func (p *Pipeline) HandleTurn(ctx context.Context, msg *queuex.QueuedMessage) contractx.TurnRecord {
	defer p.queue.Release(msg.CustomerID)

	started := p.now().UTC()
	turnCtx, cancel := context.WithTimeout(ctx, p.cfg.TurnTimeout)
	defer cancel()

	out, err := p.graphRunner.Invoke(turnCtx, turnnode.GraphInput{
		TurnID:     msg.ID,
		CustomerID: msg.CustomerID,
		Channel:    msg.Channel,
		Content:    msg.Content,
		MultiPart:  msg.MultiPart,
		ReceivedAt: msg.ReceivedAt,
		History:    p.recentHistory(msg.CustomerID),
	})

	rec := contractx.TurnRecord{
		TurnID:     msg.ID,
		CustomerID: msg.CustomerID,
		Channel:    msg.Channel,
		StartedAt:  started,
	}
	if err != nil {
		log.Error().Err(err).
			Str("turn_id", msg.ID).
			Str("customer_id", msg.CustomerID).
			Msg("turn failed")
		rec.Failed = true
		rec.Reply = p.cfg.ApologyReply
	} else {
		rec.Reply = out.Reply
		rec.Routing = out.Routing
		rec.ToolCalls = out.ToolCalls
		rec.Trace = out.Trace
	}
	rec.CompletedAt = p.now().UTC()

	p.appendHistory(msg.CustomerID, msg.Content, rec.Reply)
	return rec
}

func (p *Pipeline) recentHistory(customerID string) []contractx.Message {
	p.histMu.Lock()
	defer p.histMu.Unlock()
	msgs := p.history[customerID]
	out := make([]contractx.Message, len(msgs))
	copy(out, msgs)
	return out
}

func (p *Pipeline) appendHistory(customerID, userText, reply string) {
	now := p.now().UTC()
	p.histMu.Lock()
	defer p.histMu.Unlock()
	msgs := append(p.history[customerID],
		contractx.Message{Role: "customer", Content: userText, Timestamp: now},
		contractx.Message{Role: "assistant", Content: reply, Timestamp: now},
	)
	if len(msgs) > p.cfg.HistoryLimit {
		msgs = msgs[len(msgs)-p.cfg.HistoryLimit:]
	}
	p.history[customerID] = msgs
}

// LogSink writes turn records to the structured log. Used when no other sink
// is wired.
type LogSink struct{}

func (LogSink) Record(_ context.Context, rec contractx.TurnRecord) {
	log.Info().
		Str("turn_id", rec.TurnID).
		Str("customer_id", rec.CustomerID).
		Str("channel", rec.Channel).
		Str("agent", string(rec.Routing.Agent)).
		Float64("confidence", rec.Routing.Confidence).
		Int("tool_calls", len(rec.ToolCalls)).
		Bool("failed", rec.Failed).
		Dur("duration", rec.CompletedAt.Sub(rec.StartedAt)).
		Msg("turn completed")
}
