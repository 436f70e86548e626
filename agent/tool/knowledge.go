package tool

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	einotool "github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"
	"github.com/openai/openai-go"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

//go:embed knowledge/policies.yaml
var policiesYAML []byte

const (
	defaultLookupLimit    = 3
	defaultEmbeddingModel = "text-embedding-3-small"
)

type PolicyEntry struct {
	Topic   string `yaml:"topic" json:"topic"`
	Content string `yaml:"content" json:"content"`
}

type PolicyMatch struct {
	PolicyEntry
	Score float64 `json:"score"`
}

// Embedder turns texts into vectors, one per input, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

type OpenAIEmbedder struct {
	client *openai.Client
	model  string
}

func NewOpenAIEmbedder(client *openai.Client, model string) *OpenAIEmbedder {
	if strings.TrimSpace(model) == "" {
		model = defaultEmbeddingModel
	}
	return &OpenAIEmbedder{client: client, model: strings.TrimSpace(model)}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if e == nil || e.client == nil {
		return nil, errors.New("embedder client is nil")
	}
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}

	out := make([][]float64, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(out) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	for i, v := range out {
		if len(v) == 0 {
			return nil, fmt.Errorf("missing embedding for input %d", i)
		}
	}
	return out, nil
}

func LoadPolicies() ([]PolicyEntry, error) {
	return ParsePolicies(policiesYAML)
}

func ParsePolicies(raw []byte) ([]PolicyEntry, error) {
	var entries []PolicyEntry
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse policies: %w", err)
	}
	for i, e := range entries {
		if strings.TrimSpace(e.Topic) == "" || strings.TrimSpace(e.Content) == "" {
			return nil, fmt.Errorf("policy %d: topic and content are required", i)
		}
	}
	return entries, nil
}

// KnowledgeBase ranks policy entries by cosine similarity once Index has run.
// Without an embedder, or before indexing, it falls back to keyword overlap.
type KnowledgeBase struct {
	embedder Embedder
	entries  []PolicyEntry

	mu      sync.RWMutex
	vectors [][]float64
}

func NewKnowledgeBase(embedder Embedder, entries []PolicyEntry) *KnowledgeBase {
	return &KnowledgeBase{embedder: embedder, entries: entries}
}

func (kb *KnowledgeBase) Index(ctx context.Context) error {
	if kb.embedder == nil || len(kb.entries) == 0 {
		return nil
	}

	texts := make([]string, len(kb.entries))
	for i, e := range kb.entries {
		texts[i] = e.Topic + ": " + e.Content
	}
	vectors, err := kb.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("index knowledge base: %w", err)
	}
	if len(vectors) != len(texts) {
		return fmt.Errorf("index knowledge base: got %d vectors for %d entries", len(vectors), len(texts))
	}

	kb.mu.Lock()
	kb.vectors = vectors
	kb.mu.Unlock()
	return nil
}

func (kb *KnowledgeBase) indexed() [][]float64 {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return kb.vectors
}

func (kb *KnowledgeBase) Search(ctx context.Context, query string, limit int) ([]PolicyMatch, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("query is empty")
	}
	if limit <= 0 {
		limit = defaultLookupLimit
	}

	vectors := kb.indexed()
	var matches []PolicyMatch
	if kb.embedder != nil && len(vectors) == len(kb.entries) && len(vectors) > 0 {
		qv, err := kb.embedder.Embed(ctx, []string{query})
		if err != nil {
			return nil, err
		}
		if len(qv) != 1 {
			return nil, fmt.Errorf("got %d query vectors", len(qv))
		}
		for i, e := range kb.entries {
			matches = append(matches, PolicyMatch{PolicyEntry: e, Score: cosine(qv[0], vectors[i])})
		}
	} else {
		terms := strings.Fields(strings.ToLower(query))
		for _, e := range kb.entries {
			if score := keywordScore(terms, e); score > 0 {
				matches = append(matches, PolicyMatch{PolicyEntry: e, Score: score})
			}
		}
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	return truncate(matches, limit), nil
}

func cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func keywordScore(terms []string, e PolicyEntry) float64 {
	text := strings.ToLower(e.Topic + " " + e.Content)
	var hits float64
	for _, t := range terms {
		if len(t) < 3 {
			continue
		}
		if strings.Contains(text, t) {
			hits++
		}
	}
	return hits
}

type PolicyLookupInput struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

type PolicyLookupOutput struct {
	Matches []PolicyMatch `json:"matches"`
	Error   string        `json:"error,omitempty"`
}

func newPolicyLookup(kb *KnowledgeBase) einotool.InvokableTool {
	info := &schema.ToolInfo{
		Name: ToolPolicyLookup,
		Desc: "Look up company policies on cancellations, refunds, changes, baggage, payments and insurance.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {Type: schema.String, Desc: "The customer's question in plain words", Required: true},
			"limit": {Type: schema.Integer, Desc: "Maximum number of policy excerpts"},
		}),
	}
	return utils.NewTool[PolicyLookupInput, PolicyLookupOutput](info, func(ctx context.Context, in PolicyLookupInput) (PolicyLookupOutput, error) {
		matches, err := kb.Search(ctx, in.Query, in.Limit)
		if err != nil {
			log.Warn().Err(err).Str("tool", ToolPolicyLookup).Msg("policy lookup failed")
			return PolicyLookupOutput{Matches: []PolicyMatch{}, Error: "policy lookup failed: " + err.Error()}, nil
		}
		return PolicyLookupOutput{Matches: nonNil(matches)}, nil
	})
}
