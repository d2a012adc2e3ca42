// Package llm wraps the Gemini SDK for the three model-backed operations the
// pipeline needs: embedding generation feeding the nearest-neighbour index,
// single-label relevance classification, and the structured-JSON enrichment
// call that turns a selected cluster into a Story.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"google.golang.org/genai"

	"newsradar/internal/annindex"
	"newsradar/internal/core"
	"newsradar/internal/relevance"
)

const (
	// DefaultModel is the generation model used for Story enrichment.
	DefaultModel = "gemini-2.0-flash"
	// DefaultEmbeddingModel produces the vectors fed into the ANN Index.
	DefaultEmbeddingModel = "gemini-embedding-001"
	// DefaultEmbeddingDimensions is the Matryoshka-truncated output width.
	DefaultEmbeddingDimensions = int32(768)
)

// Client is the enrichment + embedding adapter used by the ingestion worker
// and the ranking job.
type Client struct {
	gClient        *genai.Client
	model          string
	embeddingModel string
	embeddingDims  int32
	maxTokens      int32
	temperature    float32
	timeout        time.Duration
}

// Options configures a Client beyond the package defaults.
type Options struct {
	Model          string
	EmbeddingModel string
	EmbeddingDims  int32
	MaxTokens      int32
	Temperature    float32
	Timeout        time.Duration
}

// NewClient creates a Gemini-backed client. apiKey is required; all other
// fields in opts fall back to package defaults when zero.
func NewClient(ctx context.Context, apiKey string, opts Options) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("llm: api key is required")
	}

	gClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("llm: create client: %w", err)
	}

	c := &Client{
		gClient:        gClient,
		model:          firstNonEmpty(opts.Model, DefaultModel),
		embeddingModel: firstNonEmpty(opts.EmbeddingModel, DefaultEmbeddingModel),
		embeddingDims:  opts.EmbeddingDims,
		maxTokens:      opts.MaxTokens,
		temperature:    opts.Temperature,
		timeout:        opts.Timeout,
	}
	if c.embeddingDims <= 0 {
		c.embeddingDims = DefaultEmbeddingDimensions
	}
	if c.timeout <= 0 {
		c.timeout = 30 * time.Second
	}
	return c, nil
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// Embed satisfies annindex.Embedder: it produces a unit-normalised
// embedding, matching the cosine-similarity contract of the ANN Index.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: truncateForEmbedding(text)}},
		Role:  "user",
	}}

	dims := c.embeddingDims
	resp, err := c.gClient.Models.EmbedContent(ctx, c.embeddingModel, contents, &genai.EmbedContentConfig{
		OutputDimensionality: &dims,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: embed: %v", core.ErrModelFailure, err)
	}
	if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, fmt.Errorf("%w: embed: no embedding returned", core.ErrModelFailure)
	}

	return annindex.Normalize(resp.Embeddings[0].Values), nil
}

func truncateForEmbedding(text string) string {
	const maxChars = 8000
	if len(text) > maxChars {
		return text[:maxChars]
	}
	return text
}

// enrichmentSchema is the structured response shape requested from the
// model: headline, why-now, up to 10 entities, a timeline, a draft, and a
// telegram-style variant.
var enrichmentSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"headline": {Type: genai.TypeString},
		"why_now":  {Type: genai.TypeString},
		"entities": {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
		"timeline": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"timestamp": {Type: genai.TypeString},
					"summary":   {Type: genai.TypeString},
				},
				Required: []string{"timestamp", "summary"},
			},
		},
		"draft":    {Type: genai.TypeString},
		"telegram": {Type: genai.TypeString},
	},
	Required: []string{"headline", "why_now", "entities", "draft", "telegram"},
}

// enrichmentResponse is the parsed shape of enrichmentSchema's JSON output.
type enrichmentResponse struct {
	Headline string   `json:"headline"`
	WhyNow   string   `json:"why_now"`
	Entities []string `json:"entities"`
	Timeline []struct {
		Timestamp string `json:"timestamp"`
		Summary   string `json:"summary"`
	} `json:"timeline"`
	Draft    string `json:"draft"`
	Telegram string `json:"telegram"`
}

// Enrich requests the structured Story fields for a prompt built from a
// cluster's articles. It returns core.ErrModelFailure on any
// failure to generate or parse, leaving fallback construction to the caller.
func (c *Client) Enrich(ctx context.Context, prompt string) (core.Story, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: prompt}},
		Role:  "user",
	}}

	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   enrichmentSchema,
	}
	if c.maxTokens > 0 {
		config.MaxOutputTokens = c.maxTokens
	}
	if c.temperature > 0 {
		temp := c.temperature
		config.Temperature = &temp
	}

	resp, err := c.gClient.Models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		return core.Story{}, fmt.Errorf("%w: enrich: %v", core.ErrModelFailure, err)
	}
	text := resp.Text()
	if text == "" {
		return core.Story{}, fmt.Errorf("%w: enrich: empty response", core.ErrModelFailure)
	}

	var parsed enrichmentResponse
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return core.Story{}, fmt.Errorf("%w: enrich: parse response: %v", core.ErrModelFailure, err)
	}

	story := core.Story{
		Headline: parsed.Headline,
		WhyNow:   parsed.WhyNow,
		Entities: capEntities(parsed.Entities, 10),
		Draft:    parsed.Draft,
		Telegram: parsed.Telegram,
	}
	for _, t := range parsed.Timeline {
		ts, err := time.Parse(time.RFC3339, t.Timestamp)
		if err != nil {
			ts = time.Now().UTC()
		}
		story.Timeline = append(story.Timeline, core.TimelineEvent{Timestamp: ts, Description: t.Summary})
	}
	return story, nil
}

func capEntities(entities []string, max int) []string {
	if len(entities) <= max {
		return entities
	}
	return entities[:max]
}

// Close is a no-op: the client holds no resources that need releasing.
func (c *Client) Close() {}

// relevanceCategories are the categories the learned classifier assigns a
// single label from.
var relevanceCategories = []string{
	"economy", "stock", "finance", "business", "technology",
	"politics", "sports", "entertainment", "science", "other",
}

const classifyPromptTemplate = `Classify this article into exactly one of the following categories: %s.

Title: %s
Content: %s

Respond with EXACTLY this format:
CATEGORY: [one of the categories above]
CONFIDENCE: [0.0-1.0]`

// Classify implements relevance.LearnedClassifier: a single-label
// classification over relevanceCategories.
func (c *Client) Classify(ctx context.Context, article relevance.Scorable) (relevance.Label, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	prompt := fmt.Sprintf(classifyPromptTemplate, strings.Join(relevanceCategories, ", "), article.GetTitle(), article.GetContent())

	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: prompt}},
		Role:  "user",
	}}
	resp, err := c.gClient.Models.GenerateContent(ctx, c.model, contents, nil)
	if err != nil {
		return relevance.Label{}, fmt.Errorf("%w: classify: %v", core.ErrModelFailure, err)
	}
	text := resp.Text()
	if text == "" {
		return relevance.Label{}, fmt.Errorf("%w: classify: empty response", core.ErrModelFailure)
	}

	return parseClassifyResponse(text), nil
}

func parseClassifyResponse(text string) relevance.Label {
	var category string
	var confidence float64
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "CATEGORY:"):
			category = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(line, "CATEGORY:")))
		case strings.HasPrefix(line, "CONFIDENCE:"):
			if v, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimPrefix(line, "CONFIDENCE:")), 64); err == nil {
				confidence = v
			}
		}
	}
	if confidence < 0 {
		confidence = 0
	} else if confidence > 1 {
		confidence = 1
	}
	return relevance.Label{Category: category, Confidence: confidence}
}
