package turnnode

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/shoptalk-ai/shoptalk/agent/contract"
	routerx "github.com/shoptalk-ai/shoptalk/agent/router"
)

// Route classifies the turn content with the deterministic router. The
// recent-order signal for the fallback chain comes from the snapshot loaded
// in the previous node; an order older than the window does not count.
// A router panic must never take the turn down, so the node recovers and
// falls back to the assistance specialist.
func Route(in *GraphState, r *routerx.Router, recentOrderWindow time.Duration) (out *GraphState, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Interface("panic", rec).Str("customer_id", in.CustomerID).Msg("router panicked, defaulting to assistance")
			in.Routing = contractx.RoutingDecision{
				Agent:      contractx.AgentTypeAssistance,
				Confidence: 0,
				Rationale:  "router failure, assistance default",
			}
			in.trace("route", in.Routing.Rationale)
			out, err = in, nil
		}
	}()

	hasRecentOrder := in.RecentOrder != nil &&
		in.Now.Sub(in.RecentOrder.PlacedAt) <= recentOrderWindow

	in.Routing = r.Classify(in.Content, routerx.History{
		Messages:       in.History,
		HasRecentOrder: hasRecentOrder,
	})
	in.trace("route", fmt.Sprintf("agent=%s confidence=%.2f %s", in.Routing.Agent, in.Routing.Confidence, in.Routing.Rationale))
	return in, nil
}
