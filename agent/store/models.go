package store

import (
	"time"

	"github.com/uptrace/bun"
)

type Product struct {
	bun.BaseModel `bun:"table:products,alias:p"`

	ID          string   `bun:"id,pk"`
	Name        string   `bun:"name,notnull"`
	Description string   `bun:"description"`
	Category    string   `bun:"category"`
	Tags        []string `bun:"tags,array"`
	Price       float64  `bun:"price"`
	InStock     bool     `bun:"in_stock"`

	Rank float64 `bun:"rank,scanonly"`
}

type Order struct {
	bun.BaseModel `bun:"table:orders,alias:o"`

	ID         string    `bun:"id,pk"`
	CustomerID string    `bun:"customer_id,notnull"`
	Status     string    `bun:"status,notnull"`
	Items      []string  `bun:"items,array"`
	Total      float64   `bun:"total"`
	PlacedAt   time.Time `bun:"placed_at,notnull"`
}

type FactRow struct {
	bun.BaseModel `bun:"table:customer_facts,alias:f"`

	CustomerID string    `bun:"customer_id,pk"`
	Key        string    `bun:"key,pk"`
	Value      string    `bun:"value,notnull"`
	Source     string    `bun:"source"`
	UpdatedAt  time.Time `bun:"updated_at,notnull"`
}

type KnowledgeArticle struct {
	bun.BaseModel `bun:"table:knowledge_articles,alias:k"`

	ID    string   `bun:"id,pk"`
	Title string   `bun:"title,notnull"`
	Body  string   `bun:"body"`
	Tags  []string `bun:"tags,array"`

	Rank float64 `bun:"rank,scanonly"`
}
