package turnnode

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	contractx "github.com/shoptalk-ai/shoptalk/agent/contract"
)

// LoadMemory reads long-term facts and the latest order snapshot in
// parallel. Either read failing leaves the turn on defaults; the specialist
// answers without that context rather than the customer seeing an error.
func LoadMemory(ctx context.Context, in *GraphState, memory contractx.MemoryStore, orders contractx.OrderReader) (*GraphState, error) {
	var (
		wg      sync.WaitGroup
		facts   []contractx.Fact
		order   *contractx.OrderSnapshot
		factErr error
		ordErr  error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		facts, factErr = memory.LoadFacts(ctx, in.CustomerID)
	}()
	go func() {
		defer wg.Done()
		order, ordErr = orders.RecentOrder(ctx, in.CustomerID)
	}()
	wg.Wait()

	if factErr != nil {
		log.Warn().Err(factErr).Str("customer_id", in.CustomerID).Msg("load facts failed, continuing without memory")
		facts = nil
	}
	if ordErr != nil {
		log.Warn().Err(ordErr).Str("customer_id", in.CustomerID).Msg("load recent order failed, continuing without it")
		order = nil
	}

	in.Facts = facts
	in.RecentOrder = order
	in.trace("load_memory", fmt.Sprintf("facts=%d recent_order=%t", len(facts), order != nil))
	return in, nil
}
