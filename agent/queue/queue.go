// Package queue admits inbound customer messages ahead of the turn pipeline.
// It debounces rapid follow-ups into one aggregated message per customer,
// drops duplicates, applies per-customer and global depth bounds, and owns
// the per-customer processing flag that serializes turns.
package queue

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type AdmitStatus string

const (
	StatusAccepted  AdmitStatus = "accepted"
	StatusDuplicate AdmitStatus = "duplicate"
	StatusRejected  AdmitStatus = "rejected"
)

// AdmitResult is the enqueue outcome returned to the ingestion boundary.
// StatusRejected is the backpressure signal; the queue never retries
// internally.
type AdmitResult struct {
	Status    AdmitStatus
	MessageID string
	Reason    string
}

type Priority int

const (
	PriorityNormal Priority = 0
	PriorityUrgent Priority = 1
)

// InboundMessage is the normalized event delivered by the ingestion layer.
type InboundMessage struct {
	CustomerID string
	Channel    string
	Text       string
	ReceivedAt time.Time
}

// QueuedMessage is the aggregated unit handed to a turn. Owned by the queue
// until returned from DequeueReady; mutated only under the queue lock.
type QueuedMessage struct {
	ID                 string
	CustomerID         string
	Channel            string
	Content            string
	ReceivedAt         time.Time
	Priority           Priority
	DebounceDeadline   time.Time
	BurstGroupID       string
	AggregatedContents []string
	MultiPart          bool
}

type Config struct {
	DebounceWindow time.Duration `split_words:"true" default:"2s"`
	BurstWindow    time.Duration `split_words:"true" default:"5s"`
	DuplicateTTL   time.Duration `split_words:"true" default:"5m"`
	MaxPerCustomer int           `split_words:"true" default:"8"`
	MaxPending     int           `split_words:"true" default:"512"`
	SweepInterval  time.Duration `split_words:"true" default:"30s"`
}

// Urgency markers bypass the debounce delay and escalate priority.
var urgentPattern = regexp.MustCompile(`(?i)\b(urgent|asap|emergency|right now|urgente|emergencia|dringend|sofort)\b|ด่วน|ด่วนมาก`)

type pendingEntry struct {
	msg           *QueuedMessage
	burstBoundary time.Time
}

type dupEntry struct {
	firstSeenAt time.Time
	expiresAt   time.Time
}

type Queue struct {
	cfg Config

	mu         sync.Mutex
	pending    map[string]*pendingEntry
	processing map[string]struct{}
	dupes      map[string]dupEntry
	depth      int
	lastSweep  time.Time

	now func() time.Time
}

type Option func(*Queue)

// WithClock overrides the time source. Tests use this to drive the debounce
// and TTL logic deterministically.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) {
		if now != nil {
			q.now = now
		}
	}
}

func New(cfg Config, opts ...Option) *Queue {
	if cfg.DebounceWindow <= 0 {
		cfg.DebounceWindow = 2 * time.Second
	}
	if cfg.BurstWindow <= 0 {
		cfg.BurstWindow = 5 * time.Second
	}
	if cfg.DuplicateTTL <= 0 {
		cfg.DuplicateTTL = 5 * time.Minute
	}
	if cfg.MaxPerCustomer <= 0 {
		cfg.MaxPerCustomer = 8
	}
	if cfg.MaxPending <= 0 {
		cfg.MaxPending = 512
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 30 * time.Second
	}

	q := &Queue{
		cfg:        cfg,
		pending:    make(map[string]*pendingEntry),
		processing: make(map[string]struct{}),
		dupes:      make(map[string]dupEntry),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue admits a message. Duplicate content within the TTL is dropped
// silently; a full queue is reported to the caller, not retried.
func (q *Queue) Enqueue(in InboundMessage) AdmitResult {
	customerID := strings.TrimSpace(in.CustomerID)
	text := strings.TrimSpace(in.Text)
	if customerID == "" || text == "" {
		return AdmitResult{Status: StatusRejected, Reason: "customer id and text are required"}
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	q.maybeSweepLocked(now)

	hash := contentHash(customerID, normalizeContent(text))
	if entry, ok := q.dupes[hash]; ok && now.Before(entry.expiresAt) {
		return AdmitResult{Status: StatusDuplicate, Reason: "identical content within duplicate TTL"}
	}

	pending := q.pending[customerID]
	if pending != nil && len(pending.msg.AggregatedContents) >= q.cfg.MaxPerCustomer {
		return AdmitResult{Status: StatusRejected, Reason: "per-customer queue depth exceeded"}
	}
	if pending == nil && q.depth >= q.cfg.MaxPending {
		return AdmitResult{Status: StatusRejected, Reason: "global queue depth exceeded"}
	}

	q.dupes[hash] = dupEntry{firstSeenAt: now, expiresAt: now.Add(q.cfg.DuplicateTTL)}

	urgent := urgentPattern.MatchString(text)

	if pending != nil && now.Before(pending.burstBoundary) {
		msg := pending.msg
		msg.AggregatedContents = append(msg.AggregatedContents, text)
		msg.DebounceDeadline = now.Add(q.cfg.DebounceWindow)
		if urgent {
			msg.Priority = PriorityUrgent
			msg.DebounceDeadline = now
		}
		q.depth++
		return AdmitResult{Status: StatusAccepted, MessageID: msg.ID}
	}

	if pending != nil {
		// Burst boundary passed but the entry was not dequeued yet (the
		// customer is still processing, or the deadline has not elapsed).
		// Ride along without resetting the debounce deadline so the burst
		// cannot extend forever.
		msg := pending.msg
		msg.AggregatedContents = append(msg.AggregatedContents, text)
		if urgent {
			msg.Priority = PriorityUrgent
			msg.DebounceDeadline = now
		}
		q.depth++
		return AdmitResult{Status: StatusAccepted, MessageID: msg.ID}
	}

	receivedAt := in.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = now
	}

	msg := &QueuedMessage{
		ID:                 uuid.NewString(),
		CustomerID:         customerID,
		Channel:            strings.TrimSpace(in.Channel),
		ReceivedAt:         receivedAt,
		Priority:           PriorityNormal,
		DebounceDeadline:   now.Add(q.cfg.DebounceWindow),
		BurstGroupID:       uuid.NewString(),
		AggregatedContents: []string{text},
	}
	if urgent {
		msg.Priority = PriorityUrgent
		msg.DebounceDeadline = now
	}

	q.pending[customerID] = &pendingEntry{
		msg:           msg,
		burstBoundary: now.Add(q.cfg.BurstWindow),
	}
	q.depth++
	return AdmitResult{Status: StatusAccepted, MessageID: msg.ID}
}

// DequeueReady returns one aggregated message per customer whose debounce
// deadline has elapsed and who is not currently processing, and atomically
// marks those customers as processing. Urgent messages sort first.
func (q *Queue) DequeueReady() []*QueuedMessage {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	q.maybeSweepLocked(now)

	var ready []*QueuedMessage
	for customerID, entry := range q.pending {
		if _, busy := q.processing[customerID]; busy {
			continue
		}
		if now.Before(entry.msg.DebounceDeadline) {
			continue
		}

		msg := entry.msg
		msg.Content = strings.Join(msg.AggregatedContents, " ")
		msg.MultiPart = len(msg.AggregatedContents) > 1

		delete(q.pending, customerID)
		q.processing[customerID] = struct{}{}
		q.depth -= len(msg.AggregatedContents)
		ready = append(ready, msg)
	}

	sort.Slice(ready, func(i, j int) bool {
		if ready[i].Priority != ready[j].Priority {
			return ready[i].Priority > ready[j].Priority
		}
		return ready[i].ReceivedAt.Before(ready[j].ReceivedAt)
	})
	return ready
}

// Release clears the processing flag after a turn completes (or fails).
func (q *Queue) Release(customerID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.processing, customerID)
}

// Processing reports whether a turn is active for the customer.
func (q *Queue) Processing(customerID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, busy := q.processing[customerID]
	return busy
}

// Depth returns the number of admitted messages not yet dequeued.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.depth
}

// Sweep removes expired duplicate hashes and stale burst groups. Called
// opportunistically from Enqueue/DequeueReady; exported for tests.
func (q *Queue) Sweep() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.sweepLocked(q.now())
}

func (q *Queue) maybeSweepLocked(now time.Time) {
	if now.Sub(q.lastSweep) < q.cfg.SweepInterval {
		return
	}
	q.sweepLocked(now)
}

func (q *Queue) sweepLocked(now time.Time) int {
	q.lastSweep = now

	removed := 0
	for hash, entry := range q.dupes {
		if !now.Before(entry.expiresAt) {
			delete(q.dupes, hash)
			removed++
		}
	}

	// A burst group whose boundary passed this long ago without being
	// dequeued is stuck. Drop it so the customer is not wedged.
	staleCutoff := q.cfg.BurstWindow + q.cfg.DebounceWindow
	for customerID, entry := range q.pending {
		if now.Sub(entry.burstBoundary) <= staleCutoff {
			continue
		}
		if _, busy := q.processing[customerID]; busy {
			continue
		}
		log.Warn().
			Str("customer_id", customerID).
			Str("burst_group_id", entry.msg.BurstGroupID).
			Time("burst_boundary", entry.burstBoundary).
			Msg("dropping stale burst group")
		q.depth -= len(entry.msg.AggregatedContents)
		delete(q.pending, customerID)
		removed++
	}
	return removed
}

func normalizeContent(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

func contentHash(customerID, normalized string) string {
	sum := sha256.Sum256([]byte(customerID + "\x00" + normalized))
	return hex.EncodeToString(sum[:])
}
