package turnnode

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/shoptalk-ai/shoptalk/agent/contract"
)

// PersistMemory runs the fact extractor over the finished exchange and saves
// whatever it found. Extraction and the write are both best-effort: losing a
// memory update never fails a turn that already has a reply.
func PersistMemory(ctx context.Context, in *GraphState, extractor contractx.FactExtractor, memory contractx.MemoryStore) (*GraphState, error) {
	facts, err := extractor.Extract(ctx, contractx.ExtractRequest{
		UserMessage: in.Content,
		Reply:       in.Reply,
		Facts:       in.Facts,
	})
	if err != nil {
		log.Warn().Err(err).Str("customer_id", in.CustomerID).Msg("fact extraction failed, skipping memory update")
		in.trace("persist_memory", "extraction failed, nothing saved")
		return in, nil
	}
	if len(facts) == 0 {
		in.trace("persist_memory", "no new facts")
		return in, nil
	}

	if err := memory.SaveFacts(ctx, in.CustomerID, facts); err != nil {
		log.Warn().Err(err).Str("customer_id", in.CustomerID).Int("facts", len(facts)).Msg("saving facts failed")
		in.trace("persist_memory", "save failed")
		return in, nil
	}
	in.trace("persist_memory", fmt.Sprintf("saved %d facts", len(facts)))
	return in, nil
}

// FinalizeReply seals the turn into the graph output. An empty reply at this
// point is a generation contract violation.
func FinalizeReply(in *GraphState) (GraphOutput, error) {
	if in.Reply == "" {
		return GraphOutput{}, fmt.Errorf("%w: empty reply after synthesis", contractx.ErrGeneration)
	}
	in.trace("finalize", "reply ready")
	return GraphOutput{
		Reply:     in.Reply,
		Routing:   in.Routing,
		ToolCalls: in.ToolCalls,
		Trace:     in.Trace,
	}, nil
}
