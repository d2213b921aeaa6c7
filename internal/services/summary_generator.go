package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/skintrack/server/internal/checkin"
	"github.com/skintrack/server/internal/models"
)

const summarySystemPrompt = `You write short, encouraging notes for someone tracking their skin.
Summarise how today's check-in went in two or three sentences, using only the answers given.
Do not diagnose, do not recommend products or treatments, and do not mention being an AI.`

// contentGenerator is the slice of the genai client the generator calls
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiSummaryGenerator produces check-in summaries with the Gemini API
type GeminiSummaryGenerator struct {
	models          contentGenerator
	model           string
	maxOutputTokens int32
	maxChars        int
}

var _ checkin.SummaryGenerator = (*GeminiSummaryGenerator)(nil)

// NewGeminiSummaryGenerator creates a generator backed by a genai client
func NewGeminiSummaryGenerator(ctx context.Context, apiKey, model string, maxOutputTokens, maxChars int) (*GeminiSummaryGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return newSummaryGenerator(client.Models, model, maxOutputTokens, maxChars), nil
}

func newSummaryGenerator(m contentGenerator, model string, maxOutputTokens, maxChars int) *GeminiSummaryGenerator {
	return &GeminiSummaryGenerator{
		models:          m,
		model:           model,
		maxOutputTokens: int32(maxOutputTokens),
		maxChars:        maxChars,
	}
}

// GenerateSummary asks the model once for a summary of the check-in
func (g *GeminiSummaryGenerator) GenerateSummary(ctx context.Context, sc models.SummaryContext) (string, error) {
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(summarySystemPrompt, genai.RoleUser),
		Temperature:       genai.Ptr[float32](0.4),
	}
	if g.maxOutputTokens > 0 {
		config.MaxOutputTokens = g.maxOutputTokens
	}

	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(BuildSummaryPrompt(sc)), config)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	if resp == nil {
		return "", errors.New("no response from model")
	}

	return truncateSummary(strings.TrimSpace(resp.Text()), g.maxChars), nil
}

// BuildSummaryPrompt renders the check-in context as the user prompt
func BuildSummaryPrompt(sc models.SummaryContext) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Check-in date: %s\n", sc.CheckInDate)
	fmt.Fprintf(&b, "Test: %s\n", sc.TestName)
	if sc.TestDescription != "" {
		fmt.Fprintf(&b, "Test description: %s\n", sc.TestDescription)
	}

	var profile []string
	if sc.Profile.SkinType != "" {
		profile = append(profile, "skin type "+sc.Profile.SkinType)
	}
	if sc.Profile.AgeRange != "" {
		profile = append(profile, "age range "+sc.Profile.AgeRange)
	}
	if len(sc.Profile.Concerns) > 0 {
		profile = append(profile, "concerns "+strings.Join(sc.Profile.Concerns, ", "))
	}
	if len(profile) > 0 {
		fmt.Fprintf(&b, "Profile: %s\n", strings.Join(profile, "; "))
	}

	b.WriteString("\nAnswers:\n")
	for _, qa := range sc.Answers {
		fmt.Fprintf(&b, "- %s: %s\n", qa.Question, formatAnswer(qa))
	}

	return b.String()
}

func formatAnswer(qa models.QAPair) string {
	switch v := qa.Answer.(type) {
	case bool:
		if v {
			return "yes"
		}
		return "no"
	case []string:
		return strings.Join(v, ", ")
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, fmt.Sprint(item))
		}
		return strings.Join(parts, ", ")
	case float64:
		if qa.QuestionType == models.QuestionScale {
			return fmt.Sprintf("%g out of 10", v)
		}
		return fmt.Sprintf("%g", v)
	}
	return fmt.Sprint(qa.Answer)
}

// truncateSummary cuts at the last sentence end that fits, or the last space
func truncateSummary(s string, maxChars int) string {
	if maxChars <= 0 || len([]rune(s)) <= maxChars {
		return s
	}

	cut := string([]rune(s)[:maxChars])
	if i := strings.LastIndexAny(cut, ".!?"); i > maxChars/2 {
		return cut[:i+1]
	}
	if i := strings.LastIndex(cut, " "); i > 0 {
		return strings.TrimSpace(cut[:i]) + "…"
	}
	return cut
}
