// Package capability models the external operations specialists may invoke
// as a closed set of named implementations behind a lookup table, so
// dispatch is exhaustive rather than free-string routing.
package capability

import (
	"context"
	"errors"
	"fmt"
	"strings"

	contractx "github.com/shoptalk-ai/shoptalk/agent/contract"
	"github.com/shoptalk-ai/shoptalk/agent/retrieval"
	storex "github.com/shoptalk-ai/shoptalk/agent/store"
)

const (
	NameCatalogSearch   = "catalog.search"
	NameOrderLookup     = "order.lookup"
	NameOrderCreate     = "order.create"
	NameKnowledgeSearch = "knowledge.search"
	NameMemoryGet       = "memory.get"
	NameMemorySet       = "memory.set"
)

// Capability is one named external operation with a JSON args/result
// contract. Idempotent capabilities are read-only and safe to retry once on
// transient failure.
type Capability interface {
	Name() string
	Idempotent() bool
	Invoke(ctx context.Context, customerID string, args map[string]any) (any, error)
}

// OrderStore is the slice of the relational store the order capabilities
// need.
type OrderStore interface {
	LookupOrder(ctx context.Context, orderID string) (*contractx.OrderSnapshot, error)
	RecentOrder(ctx context.Context, customerID string) (*contractx.OrderSnapshot, error)
	CreateOrder(ctx context.Context, customerID string, items []string, total float64) (*contractx.OrderSnapshot, error)
}

// KnowledgeStore is the article-search slice of the relational store.
type KnowledgeStore interface {
	SearchKnowledge(ctx context.Context, terms []string, limit int) ([]storex.KnowledgeArticle, error)
}

// Searcher is the retrieval-engine contract the catalog capability uses.
type Searcher interface {
	Search(ctx context.Context, query string, limit int, filters map[string]any) ([]retrieval.Candidate, error)
}

func stringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func intArg(args map[string]any, key string, fallback int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return fallback
	}
}

func stringSliceArg(args map[string]any, key string) []string {
	raw, ok := args[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}

type catalogSearch struct {
	engine Searcher
}

func (catalogSearch) Name() string     { return NameCatalogSearch }
func (catalogSearch) Idempotent() bool { return true }

func (c catalogSearch) Invoke(ctx context.Context, _ string, args map[string]any) (any, error) {
	query := stringArg(args, "query")
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", contractx.ErrValidation)
	}

	filters := map[string]any{}
	if category := stringArg(args, "category"); category != "" {
		filters["category"] = category
	}
	if inStock, ok := args["in_stock"].(bool); ok {
		filters["in_stock"] = inStock
	}

	candidates, err := c.engine.Search(ctx, query, intArg(args, "limit", 5), filters)
	if err != nil {
		return nil, err
	}
	return map[string]any{"candidates": candidates}, nil
}

type orderLookup struct {
	orders OrderStore
}

func (orderLookup) Name() string     { return NameOrderLookup }
func (orderLookup) Idempotent() bool { return true }

func (c orderLookup) Invoke(ctx context.Context, customerID string, args map[string]any) (any, error) {
	var (
		snapshot *contractx.OrderSnapshot
		err      error
	)
	if orderID := stringArg(args, "order_id"); orderID != "" {
		snapshot, err = c.orders.LookupOrder(ctx, orderID)
	} else {
		snapshot, err = c.orders.RecentOrder(ctx, customerID)
	}
	if err != nil {
		return nil, err
	}
	if snapshot == nil {
		return map[string]any{"found": false}, nil
	}
	return map[string]any{"found": true, "order": snapshot}, nil
}

type orderCreate struct {
	orders OrderStore
}

func (orderCreate) Name() string     { return NameOrderCreate }
func (orderCreate) Idempotent() bool { return false }

func (c orderCreate) Invoke(ctx context.Context, customerID string, args map[string]any) (any, error) {
	items := stringSliceArg(args, "items")
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: items are required", contractx.ErrValidation)
	}
	total := 0.0
	if v, ok := args["total"].(float64); ok {
		total = v
	}

	snapshot, err := c.orders.CreateOrder(ctx, customerID, items, total)
	if err != nil {
		return nil, err
	}
	return map[string]any{"order": snapshot}, nil
}

type knowledgeSearch struct {
	articles KnowledgeStore
}

func (knowledgeSearch) Name() string     { return NameKnowledgeSearch }
func (knowledgeSearch) Idempotent() bool { return true }

func (c knowledgeSearch) Invoke(ctx context.Context, _ string, args map[string]any) (any, error) {
	query := stringArg(args, "query")
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", contractx.ErrValidation)
	}

	articles, err := c.articles.SearchKnowledge(ctx, retrieval.ExpandQuery(query), intArg(args, "limit", 3))
	if err != nil {
		return nil, err
	}
	return map[string]any{"articles": articles}, nil
}

type memoryGet struct {
	memory contractx.MemoryStore
}

func (memoryGet) Name() string     { return NameMemoryGet }
func (memoryGet) Idempotent() bool { return true }

func (c memoryGet) Invoke(ctx context.Context, customerID string, args map[string]any) (any, error) {
	facts, err := c.memory.LoadFacts(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if key := stringArg(args, "key"); key != "" {
		for _, fact := range facts {
			if fact.Key == key {
				return map[string]any{"facts": []contractx.Fact{fact}}, nil
			}
		}
		return map[string]any{"facts": []contractx.Fact{}}, nil
	}
	return map[string]any{"facts": facts}, nil
}

type memorySet struct {
	memory contractx.MemoryStore
}

func (memorySet) Name() string     { return NameMemorySet }
func (memorySet) Idempotent() bool { return false }

func (c memorySet) Invoke(ctx context.Context, customerID string, args map[string]any) (any, error) {
	key := stringArg(args, "key")
	value := stringArg(args, "value")
	if key == "" || value == "" {
		return nil, fmt.Errorf("%w: key and value are required", contractx.ErrValidation)
	}

	fact := contractx.Fact{Key: key, Value: value, Source: "explicit"}
	if err := c.memory.SaveFacts(ctx, customerID, []contractx.Fact{fact}); err != nil {
		return nil, err
	}
	return map[string]any{"saved": true}, nil
}

var errMissingDependency = errors.New("capability dependency is missing")
