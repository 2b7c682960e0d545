package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"pbjrag/internal/logging"
)

// TaskTypeAuto selects a task type per text from its content.
const TaskTypeAuto = "AUTO"

var genaiTaskTypes = map[string]bool{
	"SEMANTIC_SIMILARITY":  true,
	"CLASSIFICATION":       true,
	"CLUSTERING":           true,
	"RETRIEVAL_DOCUMENT":   true,
	"RETRIEVAL_QUERY":      true,
	"CODE_RETRIEVAL_QUERY": true,
	"QUESTION_ANSWERING":   true,
	"FACT_VERIFICATION":    true,
}

// =============================================================================
// GOOGLE GENAI EMBEDDING ENGINE
// =============================================================================

// GenAIEngine generates embeddings using Google's Gemini API.
type GenAIEngine struct {
	client   *genai.Client
	model    string
	taskType string
	dims     int32
}

// NewGenAIEngine creates a new GenAI embedding engine. Unknown task types
// fall back to SEMANTIC_SIMILARITY; dims <= 0 keeps the model default.
func NewGenAIEngine(apiKey, model, taskType string, dims int) (*GenAIEngine, error) {
	if apiKey == "" {
		return nil, errors.New("GenAI API key is required")
	}
	if model == "" {
		model = "gemini-embedding-001"
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GenAIEngine{
		client:   client,
		model:    model,
		taskType: normalizeTaskType(taskType),
		dims:     int32(dims),
	}, nil
}

func normalizeTaskType(taskType string) string {
	t := strings.ToUpper(strings.TrimSpace(taskType))
	if t == TaskTypeAuto || genaiTaskTypes[t] {
		return t
	}
	if t != "" {
		logging.EmbeddingWarn("unknown GenAI task type %q, using SEMANTIC_SIMILARITY", taskType)
	}
	return "SEMANTIC_SIMILARITY"
}

func (e *GenAIEngine) config(task string) *genai.EmbedContentConfig {
	cfg := &genai.EmbedContentConfig{TaskType: task}
	if e.dims > 0 {
		dims := e.dims
		cfg.OutputDimensionality = &dims
	}
	return cfg
}

func (e *GenAIEngine) embed(ctx context.Context, texts []string, task string) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	result, err := e.client.Models.EmbedContent(ctx, e.model, contents, e.config(task))
	if err != nil {
		return nil, fmt.Errorf("GenAI embed failed: %w", err)
	}
	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("GenAI returned %d embeddings for %d texts", len(result.Embeddings), len(texts))
	}

	out := make([][]float32, len(texts))
	for i, emb := range result.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, fmt.Errorf("text %d: %w", i, ErrEmptyEmbedding)
		}
		out[i] = emb.Values
	}
	return out, nil
}

func (e *GenAIEngine) documentTask(text string) string {
	if e.taskType != TaskTypeAuto {
		return e.taskType
	}
	return GetOptimalTaskType(text, nil, false)
}

// Embed generates an embedding for a single text.
func (e *GenAIEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := e.embed(ctx, []string{text}, e.documentTask(text))
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedQuery embeds a search query. With automatic task selection the query
// gets a retrieval task type matched to its content.
func (e *GenAIEngine) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	task := e.taskType
	if task == TaskTypeAuto {
		task = GetOptimalTaskType(text, nil, true)
	}
	out, err := e.embed(ctx, []string{text}, task)
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch embeds texts with native batching, one request per task type.
func (e *GenAIEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	groups := make(map[string][]int)
	var order []string
	for i, text := range texts {
		task := e.documentTask(text)
		if _, ok := groups[task]; !ok {
			order = append(order, task)
		}
		groups[task] = append(groups[task], i)
	}

	embeddings := make([][]float32, len(texts))
	for _, task := range order {
		idx := groups[task]
		batch := make([]string, len(idx))
		for j, i := range idx {
			batch[j] = texts[i]
		}
		out, err := e.embed(ctx, batch, task)
		if err != nil {
			return nil, fmt.Errorf("GenAI batch embed (%s) failed: %w", task, err)
		}
		for j, i := range idx {
			embeddings[i] = out[j]
		}
	}
	return embeddings, nil
}

// Dimensions returns the requested output size, 768 by default.
func (e *GenAIEngine) Dimensions() int {
	if e.dims > 0 {
		return int(e.dims)
	}
	return 768
}

// Name returns the engine name.
func (e *GenAIEngine) Name() string {
	return fmt.Sprintf("genai:%s", e.model)
}
