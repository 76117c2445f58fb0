// Package retrieval implements the hybrid catalog/knowledge search the
// specialists depend on: semantic similarity and lexical full-text scoring
// fused into one ranking, with cross-lingual query expansion.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/shoptalk-ai/shoptalk/pkg/embedding"
	"github.com/shoptalk-ai/shoptalk/pkg/vectordb"
)

// Candidate is one ranked retrieval result. Produced per call, never
// persisted.
type Candidate struct {
	RecordID         string   `json:"record_id"`
	SemanticScore    float64  `json:"semantic_score"`
	LexicalScore     float64  `json:"lexical_score"`
	CombinedScore    float64  `json:"combined_score"`
	MatchedFields    []string `json:"matched_fields,omitempty"`
	Strategies       []string `json:"strategies,omitempty"`
	DetectedLanguage string   `json:"detected_language"`
}

const (
	StrategySemantic = "semantic"
	StrategyLexical  = "lexical"
)

// LexicalHit is one full-text match from the structured store.
type LexicalHit struct {
	RecordID      string
	Score         float64
	MatchedFields []string
}

// LexicalSearcher is the weighted full-text interface the relational store
// implements (name > description > tags/category).
type LexicalSearcher interface {
	SearchLexical(ctx context.Context, terms []string, limit int, filters map[string]any) ([]LexicalHit, error)
}

type Config struct {
	SemanticWeight float64 `split_words:"true" default:"0.6"`
	LexicalWeight  float64 `split_words:"true" default:"0.4"`
	MinScore       float64 `split_words:"true" default:"0.05"`
	CorpusLanguage string  `split_words:"true" default:"en"`
	CandidateLimit int     `split_words:"true" default:"25"`
}

type Engine struct {
	cfg      Config
	embedder embedding.Embedder
	index    vectordb.Index
	lexical  LexicalSearcher
}

func NewEngine(cfg Config, embedder embedding.Embedder, index vectordb.Index, lexical LexicalSearcher) (*Engine, error) {
	if lexical == nil {
		return nil, errors.New("retrieval: lexical searcher is required")
	}
	if cfg.SemanticWeight <= 0 && cfg.LexicalWeight <= 0 {
		cfg.SemanticWeight, cfg.LexicalWeight = 0.6, 0.4
	}
	if cfg.CandidateLimit <= 0 {
		cfg.CandidateLimit = 25
	}
	if strings.TrimSpace(cfg.CorpusLanguage) == "" {
		cfg.CorpusLanguage = LangEnglish
	}
	return &Engine{
		cfg:      cfg,
		embedder: embedder,
		index:    index,
		lexical:  lexical,
	}, nil
}

// Search runs the hybrid pipeline: detect language, expand cross-lingual
// synonyms, dispatch semantic and lexical branches concurrently, normalize
// and fuse scores, rank. A dead semantic backend degrades to lexical-only
// rather than failing the call.
func (e *Engine) Search(ctx context.Context, query string, limit int, filters map[string]any) ([]Candidate, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("retrieval: query is empty")
	}
	if limit <= 0 {
		limit = 10
	}

	lang := DetectLanguage(query)
	terms := strings.Fields(strings.ToLower(query))
	if lang != e.cfg.CorpusLanguage {
		terms = ExpandQuery(query)
	}

	// A single-token query gives full-text search nothing to rank; literal
	// mismatch would produce zero recall, so only the semantic branch runs.
	runLexical := len(strings.Fields(query)) >= 2 || len(terms) > len(strings.Fields(query))

	var (
		wg          sync.WaitGroup
		semHits     []vectordb.Point
		semErr      error
		lexHits     []LexicalHit
		lexErr      error
		fetch       = e.cfg.CandidateLimit
		semanticOff = e.embedder == nil || e.index == nil
	)
	if fetch < limit {
		fetch = limit
	}

	if !semanticOff {
		wg.Add(1)
		go func() {
			defer wg.Done()
			semHits, semErr = e.searchSemantic(ctx, query, fetch, filters)
		}()
	}
	if runLexical {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lexHits, lexErr = e.lexical.SearchLexical(ctx, terms, fetch, filters)
		}()
	}
	wg.Wait()

	if semErr != nil {
		log.Warn().Err(semErr).Str("query", query).Msg("semantic search unavailable, degrading to lexical-only")
		semHits = nil
	}
	if lexErr != nil {
		if (semanticOff || semErr != nil) && runLexical {
			return nil, fmt.Errorf("retrieval: both branches failed: %w", lexErr)
		}
		log.Warn().Err(lexErr).Str("query", query).Msg("lexical search failed, using semantic results only")
		lexHits = nil
	}

	candidates := e.fuse(semHits, lexHits, lang)
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

func (e *Engine) searchSemantic(ctx context.Context, query string, limit int, filters map[string]any) ([]vectordb.Point, error) {
	vector, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	points, err := e.index.SimilaritySearch(ctx, vector, limit, filters)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	return points, nil
}

func (e *Engine) fuse(semHits []vectordb.Point, lexHits []LexicalHit, lang string) []Candidate {
	semNorm := normalizePointScores(semHits)
	lexNorm := normalizeLexicalScores(lexHits)

	byID := make(map[string]*Candidate, len(semHits)+len(lexHits))

	for i, hit := range semHits {
		byID[hit.ID] = &Candidate{
			RecordID:         hit.ID,
			SemanticScore:    semNorm[i],
			Strategies:       []string{StrategySemantic},
			DetectedLanguage: lang,
		}
	}

	for i, hit := range lexHits {
		if c, ok := byID[hit.RecordID]; ok {
			c.LexicalScore = lexNorm[i]
			c.MatchedFields = hit.MatchedFields
			c.Strategies = append(c.Strategies, StrategyLexical)
			continue
		}
		byID[hit.RecordID] = &Candidate{
			RecordID:         hit.RecordID,
			LexicalScore:     lexNorm[i],
			MatchedFields:    hit.MatchedFields,
			Strategies:       []string{StrategyLexical},
			DetectedLanguage: lang,
		}
	}

	out := make([]Candidate, 0, len(byID))
	for _, c := range byID {
		c.CombinedScore = e.cfg.SemanticWeight*c.SemanticScore + e.cfg.LexicalWeight*c.LexicalScore
		if c.CombinedScore < e.cfg.MinScore {
			continue
		}
		out = append(out, *c)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CombinedScore != out[j].CombinedScore {
			return out[i].CombinedScore > out[j].CombinedScore
		}
		return out[i].RecordID < out[j].RecordID
	})
	return out
}

func normalizePointScores(hits []vectordb.Point) []float64 {
	scores := make([]float64, len(hits))
	for i, h := range hits {
		scores[i] = h.Score
	}
	return minMaxNormalize(scores)
}

func normalizeLexicalScores(hits []LexicalHit) []float64 {
	scores := make([]float64, len(hits))
	for i, h := range hits {
		scores[i] = h.Score
	}
	return minMaxNormalize(scores)
}

// minMaxNormalize maps scores onto [0,1]. A degenerate set (all equal) maps
// to 1.0 so a lone strong hit is not zeroed out.
func minMaxNormalize(scores []float64) []float64 {
	if len(scores) == 0 {
		return scores
	}
	lo, hi := scores[0], scores[0]
	for _, s := range scores[1:] {
		if s < lo {
			lo = s
		}
		if s > hi {
			hi = s
		}
	}
	out := make([]float64, len(scores))
	if hi == lo {
		for i := range out {
			out[i] = 1.0
		}
		return out
	}
	for i, s := range scores {
		out[i] = (s - lo) / (hi - lo)
	}
	return out
}
