package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jotbill/jotbill-server/src/logger"
	"github.com/jotbill/jotbill-server/src/models"
	"google.golang.org/genai"
)

// NewParser picks the parser implementation from configuration. Parsing
// is an optional capability: without a key the null parser is injected
// and callers see ErrParserUnavailable, never a nil check.
func NewParser(provider, apiKey, model, baseURL string, timeout time.Duration) Parser {
	if apiKey == "" {
		return &nullParser{}
	}
	switch strings.ToLower(provider) {
	case "gemini":
		return &geminiParser{apiKey: apiKey, model: model}
	case "deepseek", "openai", "custom":
		return &openAIParser{
			httpClient: &http.Client{Timeout: timeout},
			baseURL:    strings.TrimSuffix(baseURL, "/"),
			apiKey:     apiKey,
			model:      model,
		}
	default:
		logger.L.Warn("Unknown AI provider, natural language parsing disabled", "provider", provider)
		return &nullParser{}
	}
}

func parsePrompt(text, locale string) string {
	today := time.Now().Format("2006-01-02")
	return fmt.Sprintf(`You are a bookkeeping assistant. Extract one financial transaction from the user's text.
Today is %s. Respond in locale %q for the category and description.
Rules:
- amount is a non-negative number in the transaction's currency.
- type is EXPENSE, INCOME or TRANSFER.
- date is YYYY-MM-DD; resolve relative dates against today.
- accountName is the payment method mentioned, if any (e.g. 支付宝, 微信, cash).
Text: %s`, today, locale, text)
}

// decodeParseResult parses and checks the model's JSON answer. Anything
// the schema did not force (bad enum, negative amount) is rejected here.
func decodeParseResult(raw []byte) (models.ParseResult, error) {
	var result models.ParseResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return result, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}
	if result.Amount.IsNegative() {
		return result, fmt.Errorf("%w: negative amount", ErrParsingFailed)
	}
	return result, nil
}

// ---- null ----

type nullParser struct{}

func (*nullParser) Available() bool { return false }

func (*nullParser) ParseText(context.Context, string, string) (models.ParseResult, error) {
	return models.ParseResult{}, ErrParserUnavailable
}

// ---- Gemini ----

type geminiParser struct {
	apiKey string
	model  string
}

var geminiParseSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"amount":      {Type: genai.TypeNumber, Description: "Transaction amount, non-negative."},
		"currency":    {Type: genai.TypeString, Description: "ISO currency code, e.g. CNY."},
		"category":    {Type: genai.TypeString, Description: "Best-guess category name."},
		"date":        {Type: genai.TypeString, Description: "Transaction date, YYYY-MM-DD."},
		"description": {Type: genai.TypeString},
		"merchant":    {Type: genai.TypeString},
		"type":        {Type: genai.TypeString, Enum: []string{"EXPENSE", "INCOME", "TRANSFER"}},
		"accountName": {Type: genai.TypeString, Description: "Payment method hint, may be empty."},
	},
	Required: []string{"amount", "type", "description"},
}

func (p *geminiParser) Available() bool { return true }

func (p *geminiParser) ParseText(ctx context.Context, text, locale string) (models.ParseResult, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: p.apiKey})
	if err != nil {
		return models.ParseResult{}, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}
	resp, err := client.Models.GenerateContent(ctx, p.model,
		genai.Text(parsePrompt(text, locale)),
		&genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   geminiParseSchema,
		})
	if err != nil {
		return models.ParseResult{}, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}
	answer := resp.Text()
	if answer == "" {
		return models.ParseResult{}, fmt.Errorf("%w: empty model response", ErrParsingFailed)
	}
	return decodeParseResult([]byte(answer))
}

// ---- OpenAI-compatible chat completions (DeepSeek, custom endpoints) ----

type openAIParser struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

type chatCompletionRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	ResponseFormat *respFormat   `json:"response_format,omitempty"`
	Temperature    float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type respFormat struct {
	Type string `json:"type"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (p *openAIParser) Available() bool { return true }

func (p *openAIParser) ParseText(ctx context.Context, text, locale string) (models.ParseResult, error) {
	payload := chatCompletionRequest{
		Model: p.model,
		Messages: []chatMessage{
			{Role: "system", Content: "Answer with a single JSON object and nothing else. Keys: amount (number), currency, category, date, description, merchant, type (EXPENSE|INCOME|TRANSFER), accountName."},
			{Role: "user", Content: parsePrompt(text, locale)},
		},
		ResponseFormat: &respFormat{Type: "json_object"},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return models.ParseResult{}, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return models.ParseResult{}, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return models.ParseResult{}, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return models.ParseResult{}, fmt.Errorf("%w: completion endpoint returned status %d", ErrParsingFailed, resp.StatusCode)
	}
	var completion chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return models.ParseResult{}, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}
	if len(completion.Choices) == 0 {
		return models.ParseResult{}, fmt.Errorf("%w: no completion choices", ErrParsingFailed)
	}
	answer := extractJSONObject(completion.Choices[0].Message.Content)
	if answer == "" {
		return models.ParseResult{}, fmt.Errorf("%w: no JSON object in completion", ErrParsingFailed)
	}
	return decodeParseResult([]byte(answer))
}

// extractJSONObject tolerates models that wrap the JSON in code fences
// or prose by slicing from the first { to the last }.
func extractJSONObject(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}
