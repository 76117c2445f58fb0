// Package store is the relational side of the core: product catalog with
// weighted full-text search, order snapshots, and long-term customer facts,
// all on Postgres via bun.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	contractx "github.com/shoptalk-ai/shoptalk/agent/contract"
	"github.com/shoptalk-ai/shoptalk/agent/retrieval"
)

type Config struct {
	DSN          string `split_words:"true" required:"true"`
	MaxOpenConns int    `split_words:"true" default:"8"`
}

type Store struct {
	db *bun.DB
}

func New(cfg Config) (*Store, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("store: dsn is required")
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	if cfg.MaxOpenConns > 0 {
		sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	return &Store{db: bun.NewDB(sqldb, pgdialect.New())}, nil
}

// NewWithDB wraps an existing bun.DB. Used by tests.
func NewWithDB(db *bun.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	return s.db.Close()
}

var tsTokenPattern = regexp.MustCompile(`[^\p{L}\p{N}-]+`)

// tsQueryFrom ORs the sanitized terms, so any expanded synonym can match.
func tsQueryFrom(terms []string) string {
	safe := make([]string, 0, len(terms))
	for _, term := range terms {
		term = tsTokenPattern.ReplaceAllString(strings.ToLower(term), " ")
		for _, tok := range strings.Fields(term) {
			safe = append(safe, tok)
		}
	}
	return strings.Join(safe, " | ")
}

const productRankExpr = `ts_rank(` +
	`setweight(to_tsvector('simple', p.name), 'A') || ` +
	`setweight(to_tsvector('simple', coalesce(p.description, '')), 'B') || ` +
	`setweight(to_tsvector('simple', coalesce(p.category, '') || ' ' || array_to_string(p.tags, ' ')), 'C'), ` +
	`to_tsquery('simple', ?))`

const productMatchExpr = `(` +
	`setweight(to_tsvector('simple', p.name), 'A') || ` +
	`setweight(to_tsvector('simple', coalesce(p.description, '')), 'B') || ` +
	`setweight(to_tsvector('simple', coalesce(p.category, '') || ' ' || array_to_string(p.tags, ' ')), 'C')` +
	`) @@ to_tsquery('simple', ?)`

// SearchLexical implements retrieval.LexicalSearcher over the product
// catalog. Weighting is name > description > tags/category.
func (s *Store) SearchLexical(ctx context.Context, terms []string, limit int, filters map[string]any) ([]retrieval.LexicalHit, error) {
	tsQuery := tsQueryFrom(terms)
	if tsQuery == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}

	q := s.db.NewSelect().
		Model((*Product)(nil)).
		ColumnExpr("p.*").
		ColumnExpr(productRankExpr+" AS rank", tsQuery).
		Where(productMatchExpr, tsQuery).
		OrderExpr("rank DESC").
		Limit(limit)

	if category, ok := filters["category"].(string); ok && category != "" {
		q = q.Where("p.category = ?", category)
	}
	if inStock, ok := filters["in_stock"].(bool); ok && inStock {
		q = q.Where("p.in_stock")
	}

	var products []Product
	if err := q.Scan(ctx, &products); err != nil {
		return nil, fmt.Errorf("%w: product full-text search: %v", contractx.ErrTransientUpstream, err)
	}

	hits := make([]retrieval.LexicalHit, 0, len(products))
	for _, p := range products {
		hits = append(hits, retrieval.LexicalHit{
			RecordID:      p.ID,
			Score:         p.Rank,
			MatchedFields: matchedProductFields(p, terms),
		})
	}
	return hits, nil
}

func matchedProductFields(p Product, terms []string) []string {
	var fields []string
	name := strings.ToLower(p.Name)
	desc := strings.ToLower(p.Description)
	meta := strings.ToLower(p.Category + " " + strings.Join(p.Tags, " "))

	contains := func(haystack string) bool {
		for _, term := range terms {
			if term != "" && strings.Contains(haystack, strings.ToLower(term)) {
				return true
			}
		}
		return false
	}

	if contains(name) {
		fields = append(fields, "name")
	}
	if contains(desc) {
		fields = append(fields, "description")
	}
	if contains(meta) {
		fields = append(fields, "tags")
	}
	return fields
}

// Products loads catalog rows by id, preserving no particular order.
func (s *Store) Products(ctx context.Context, ids []string) ([]Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var products []Product
	err := s.db.NewSelect().
		Model(&products).
		Where("p.id IN (?)", bun.In(ids)).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: load products: %v", contractx.ErrTransientUpstream, err)
	}
	return products, nil
}

const knowledgeRankExpr = `ts_rank(` +
	`setweight(to_tsvector('simple', k.title), 'A') || ` +
	`setweight(to_tsvector('simple', coalesce(k.body, '')), 'B') || ` +
	`setweight(to_tsvector('simple', array_to_string(k.tags, ' ')), 'C'), ` +
	`to_tsquery('simple', ?))`

const knowledgeMatchExpr = `(` +
	`setweight(to_tsvector('simple', k.title), 'A') || ` +
	`setweight(to_tsvector('simple', coalesce(k.body, '')), 'B') || ` +
	`setweight(to_tsvector('simple', array_to_string(k.tags, ' ')), 'C')` +
	`) @@ to_tsquery('simple', ?)`

// SearchKnowledge runs weighted full-text search over FAQ/policy articles.
func (s *Store) SearchKnowledge(ctx context.Context, terms []string, limit int) ([]KnowledgeArticle, error) {
	tsQuery := tsQueryFrom(terms)
	if tsQuery == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 5
	}

	var articles []KnowledgeArticle
	err := s.db.NewSelect().
		Model((*KnowledgeArticle)(nil)).
		ColumnExpr("k.*").
		ColumnExpr(knowledgeRankExpr+" AS rank", tsQuery).
		Where(knowledgeMatchExpr, tsQuery).
		OrderExpr("rank DESC").
		Limit(limit).
		Scan(ctx, &articles)
	if err != nil {
		return nil, fmt.Errorf("%w: knowledge full-text search: %v", contractx.ErrTransientUpstream, err)
	}
	return articles, nil
}

// RecentOrder returns the customer's latest order, or (nil, nil) when there
// is none.
func (s *Store) RecentOrder(ctx context.Context, customerID string) (*contractx.OrderSnapshot, error) {
	var order Order
	err := s.db.NewSelect().
		Model(&order).
		Where("o.customer_id = ?", customerID).
		OrderExpr("o.placed_at DESC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load recent order: %v", contractx.ErrTransientUpstream, err)
	}
	return orderSnapshot(order), nil
}

// LookupOrder loads one order by id, or (nil, nil) when not found.
func (s *Store) LookupOrder(ctx context.Context, orderID string) (*contractx.OrderSnapshot, error) {
	var order Order
	err := s.db.NewSelect().
		Model(&order).
		Where("o.id = ?", orderID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: lookup order: %v", contractx.ErrTransientUpstream, err)
	}
	return orderSnapshot(order), nil
}

// CreateOrder inserts a new order for the customer.
func (s *Store) CreateOrder(ctx context.Context, customerID string, items []string, total float64) (*contractx.OrderSnapshot, error) {
	order := Order{
		ID:         uuid.NewString(),
		CustomerID: customerID,
		Status:     "created",
		Items:      items,
		Total:      total,
		PlacedAt:   time.Now().UTC(),
	}
	if _, err := s.db.NewInsert().Model(&order).Exec(ctx); err != nil {
		return nil, fmt.Errorf("%w: create order: %v", contractx.ErrTransientUpstream, err)
	}
	return orderSnapshot(order), nil
}

func orderSnapshot(order Order) *contractx.OrderSnapshot {
	return &contractx.OrderSnapshot{
		OrderID:  order.ID,
		Status:   order.Status,
		Items:    order.Items,
		Total:    order.Total,
		PlacedAt: order.PlacedAt,
	}
}

// LoadFacts implements contract.MemoryStore.
func (s *Store) LoadFacts(ctx context.Context, customerID string) ([]contractx.Fact, error) {
	var rows []FactRow
	err := s.db.NewSelect().
		Model(&rows).
		Where("f.customer_id = ?", customerID).
		OrderExpr("f.updated_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: load facts: %v", contractx.ErrTransientUpstream, err)
	}

	facts := make([]contractx.Fact, 0, len(rows))
	for _, row := range rows {
		facts = append(facts, contractx.Fact{
			Key:       row.Key,
			Value:     row.Value,
			Source:    row.Source,
			UpdatedAt: row.UpdatedAt,
		})
	}
	return facts, nil
}

// SaveFacts upserts facts keyed by (customer_id, key).
func (s *Store) SaveFacts(ctx context.Context, customerID string, facts []contractx.Fact) error {
	if len(facts) == 0 {
		return nil
	}

	now := time.Now().UTC()
	rows := make([]FactRow, 0, len(facts))
	for _, fact := range facts {
		key := strings.TrimSpace(fact.Key)
		value := strings.TrimSpace(fact.Value)
		if key == "" || value == "" {
			continue
		}
		rows = append(rows, FactRow{
			CustomerID: customerID,
			Key:        key,
			Value:      value,
			Source:     fact.Source,
			UpdatedAt:  now,
		})
	}
	if len(rows) == 0 {
		return nil
	}

	_, err := s.db.NewInsert().
		Model(&rows).
		On("CONFLICT (customer_id, key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("source = EXCLUDED.source").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("%w: save facts: %v", contractx.ErrTransientUpstream, err)
	}
	return nil
}
