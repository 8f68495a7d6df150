package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"closetapi/config"
	"closetapi/logging"
	"closetapi/models"
	"closetapi/recommendation"

	gobreaker "github.com/sony/gobreaker/v2"
	"google.golang.org/genai"
)

// LLMModelName is the Gemini model used for a call.
type LLMModelName int32

const (
	Pro25 LLMModelName = iota
	Flash25
	FlashLite25
	Flash20
	Embedding001
)

// The Stringer interface for LLMModelName.
func (t LLMModelName) String() string {
	switch t {
	case Pro25:
		return "gemini-2.5-pro"
	case Flash25:
		return "gemini-2.5-flash"
	case FlashLite25:
		return "gemini-2.5-flash-lite"
	case Flash20:
		return "gemini-2.0-flash"
	case Embedding001:
		return "gemini-embedding-001"
	default:
		return "gemini-2.0-flash"
	}
}

func floatPointer(f float32) *float32 {
	return &f
}

func Int32Pointer(i int32) *int32 {
	return &i
}

// Embedding task types understood by the embedding model.
const (
	TaskRetrievalQuery    = "RETRIEVAL_QUERY"
	TaskRetrievalDocument = "RETRIEVAL_DOCUMENT"
)

const occasionInstruction = `You classify what a person is dressing for. Read the user's text (Korean or English) and pick exactly one occasion label from the allowed list. Use "Daily" when nothing specific is mentioned and "Other" only when the occasion is clear but fits no label. Return JSON with "label" and "confidence" between 0 and 1.`

// contentModels is the part of genai.Models the service calls.
type contentModels interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// GeminiService wraps one genai client for occasion inference and embeddings.
// Inference and embeddings trip separate breakers: slow inference must not
// take retrieval down with it.
type GeminiService struct {
	models           contentModels
	inferenceModel   string
	embeddingModel   string
	dims             int32
	inferenceBreaker *gobreaker.CircuitBreaker[any]
	embeddingBreaker *gobreaker.CircuitBreaker[any]
	logger           *logging.Logger
}

func NewGeminiService(ctx context.Context, cfg config.GeminiConfig, logger *logging.Logger) (*GeminiService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: api key is not set")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return newGeminiService(client.Models, cfg, logger), nil
}

func newGeminiService(models contentModels, cfg config.GeminiConfig, logger *logging.Logger) *GeminiService {
	if logger == nil {
		logger = logging.Nop()
	}
	inferenceModel := cfg.InferenceModel
	if inferenceModel == "" {
		inferenceModel = FlashLite25.String()
	}
	embeddingModel := cfg.EmbeddingModel
	if embeddingModel == "" {
		embeddingModel = Embedding001.String()
	}
	return &GeminiService{
		models:           models,
		inferenceModel:   inferenceModel,
		embeddingModel:   embeddingModel,
		dims:             cfg.EmbeddingDims,
		inferenceBreaker: newBreaker("gemini_inference", cfg.BreakerFailures, cfg.BreakerTimeout, logger),
		embeddingBreaker: newBreaker("gemini_embedding", cfg.BreakerFailures, cfg.BreakerTimeout, logger),
		logger:           logger,
	}
}

type occasionResponse struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

func occasionSchema() *genai.Schema {
	labels := make([]string, len(models.AllTPOs))
	for i, tpo := range models.AllTPOs {
		labels[i] = string(tpo)
	}
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"label":      {Type: genai.TypeString, Enum: labels},
			"confidence": {Type: genai.TypeNumber},
		},
		Required: []string{"label", "confidence"},
	}
}

// InferOccasion returns the model's label as-is; validating it against the
// TPO set is the resolver's job.
func (s *GeminiService) InferOccasion(ctx context.Context, text string) (*recommendation.OccasionGuess, error) {
	out, err := s.inferenceBreaker.Execute(func() (any, error) {
		result, err := s.models.GenerateContent(ctx, s.inferenceModel, genai.Text(text), &genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   occasionSchema(),
			CandidateCount:   1,
			MaxOutputTokens:  256,
			Temperature:      floatPointer(0),
			ThinkingConfig:   &genai.ThinkingConfig{ThinkingBudget: Int32Pointer(0)},
			SystemInstruction: &genai.Content{
				Parts: []*genai.Part{{Text: occasionInstruction}},
			},
		})
		if err != nil {
			return nil, err
		}
		return firstCandidateText(result)
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: infer occasion: %w", err)
	}
	var parsed occasionResponse
	if err := json.Unmarshal([]byte(out.(string)), &parsed); err != nil {
		return nil, fmt.Errorf("gemini: decode occasion %q: %w", out, err)
	}
	s.logger.Debug("occasion inferred", "label", parsed.Label, "confidence", parsed.Confidence)
	return &recommendation.OccasionGuess{Label: parsed.Label, Confidence: parsed.Confidence}, nil
}

// Embed embeds a search probe.
func (s *GeminiService) Embed(ctx context.Context, text string) ([]float32, error) {
	return s.embed(ctx, text, TaskRetrievalQuery)
}

// EmbedDocument embeds a wardrobe item text for indexing.
func (s *GeminiService) EmbedDocument(ctx context.Context, text string) ([]float32, error) {
	return s.embed(ctx, text, TaskRetrievalDocument)
}

func (s *GeminiService) embed(ctx context.Context, text, taskType string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("gemini: nothing to embed")
	}
	out, err := s.embeddingBreaker.Execute(func() (any, error) {
		result, err := s.models.EmbedContent(ctx, s.embeddingModel, genai.Text(text), &genai.EmbedContentConfig{
			TaskType:             taskType,
			OutputDimensionality: Int32Pointer(s.dims),
		})
		if err != nil {
			return nil, err
		}
		if result == nil || len(result.Embeddings) == 0 || len(result.Embeddings[0].Values) == 0 {
			return nil, fmt.Errorf("empty embedding response")
		}
		return result.Embeddings[0].Values, nil
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: embed: %w", err)
	}
	values := out.([]float32)
	if s.dims > 0 && len(values) != int(s.dims) {
		return nil, fmt.Errorf("gemini: embedding has %d dimensions, want %d", len(values), s.dims)
	}
	return values, nil
}

// firstCandidateText rejects blocked responses and returns the answer text
// without thought parts.
func firstCandidateText(result *genai.GenerateContentResponse) (string, error) {
	if result == nil {
		return "", fmt.Errorf("empty response")
	}
	if result.PromptFeedback != nil && result.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("prompt blocked: %s %s", result.PromptFeedback.BlockReason, result.PromptFeedback.BlockReasonMessage)
	}
	for _, c := range result.Candidates {
		for _, rating := range c.SafetyRatings {
			if rating.Blocked {
				return "", fmt.Errorf("content blocked by safety setting: %s", rating.Category)
			}
		}
	}
	text := strings.TrimSpace(result.Text())
	if text == "" {
		return "", fmt.Errorf("response has no text")
	}
	return text, nil
}
