package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/plana-bot/plana/src/llm/core"
	"github.com/plana-bot/plana/src/webclient"
)

func init() {
	core.RegisterProvider("gemini", newClient)
}

const (
	defaultEndpoint = "https://generativelanguage.googleapis.com/v1beta"

	chatTimeout    = 120 * time.Second
	lowloadTimeout = 60 * time.Second
)

type client struct {
	apiKey         string
	endpoint       string
	systemPrompt   string
	primaryModel   string
	secondaryModel string
	lowloadModel   string
	httpClient     *http.Client
	lowloadClient  *http.Client
}

func newClient(cfg core.FactoryConfig) (core.Provider, error) {
	if cfg.GeminiKey == "" {
		return nil, fmt.Errorf("gemini: API key not configured")
	}
	if cfg.PrimaryModel == "" {
		return nil, fmt.Errorf("gemini: primary model not configured")
	}

	return &client{
		apiKey:         cfg.GeminiKey,
		endpoint:       defaultEndpoint,
		systemPrompt:   cfg.SystemPrompt,
		primaryModel:   cfg.PrimaryModel,
		secondaryModel: cfg.SecondaryModel,
		lowloadModel:   cfg.LowloadModel,
		httpClient:     webclient.NewDefault(chatTimeout),
		lowloadClient:  webclient.NewDefault(lowloadTimeout),
	}, nil
}

func (c *client) Name() string {
	return "gemini"
}

func (c *client) ModelName(kind core.ModelKind) string {
	switch kind {
	case core.ModelPrimary:
		return c.primaryModel
	case core.ModelSecondary:
		return c.secondaryModel
	case core.ModelLowload:
		return c.lowloadModel
	}
	return ""
}

func (c *client) Generate(ctx context.Context, model string, req core.Request) (core.Result, error) {
	if model == "" {
		return core.Result{}, fmt.Errorf("gemini: empty model name")
	}

	payload := generateRequest{
		SystemInstruction: c.buildSystemInstruction(req.Summary),
		Contents:          buildContents(req),
	}

	status, body, err := c.post(ctx, c.httpClient, model, payload)
	if err != nil {
		log.Printf("gemini: request failed (%s): %v", model, err)
		return core.ErrorResult(model, core.KindUnavailable, err.Error()), nil
	}
	if status != http.StatusOK {
		kind, detail := mapHTTPError(status, body)
		log.Printf("gemini: API error (%s): status %d: %s", model, status, core.TruncateDetail(detail))
		return core.ErrorResult(model, kind, detail), nil
	}

	var resp generateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return core.Result{}, fmt.Errorf("gemini: decode response: %w", err)
	}
	return c.interpret(model, resp), nil
}

// interpret normalizes a decoded 200 response: prompt feedback first, then
// finish reason, then the extracted text.
func (c *client) interpret(model string, resp generateResponse) core.Result {
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		detail := "prompt blocked due to reason: " + resp.PromptFeedback.BlockReason
		log.Printf("gemini: %s (%s)", detail, model)
		return core.ErrorResult(model, core.KindBlockedPrompt, detail)
	}
	if len(resp.Candidates) == 0 {
		return core.ErrorResult(model, core.KindUnknown, "no candidates in response")
	}

	candidate := resp.Candidates[0]
	text := candidate.text()

	switch candidate.FinishReason {
	case "", "STOP", "FINISH_REASON_UNSPECIFIED":
		if text == "" {
			return core.ErrorResult(model, core.KindUnknown, "no text content received")
		}
		return core.Result{Model: model, Text: text}
	case "MAX_TOKENS":
		detail := "output exceeded the maximum token limit"
		log.Printf("gemini: response truncated (%s)", model)
		if text != "" {
			// Keep the partial answer; append the notice so the user knows
			// it was cut short.
			notice := core.ErrorResult(model, core.KindInvalidArgument, detail).Text
			return core.Result{Model: model, Text: text + "\n\n..." + notice}
		}
		return core.ErrorResult(model, core.KindInvalidArgument, detail)
	case "SAFETY":
		detail := "response blocked by safety filter"
		if categories := candidate.blockedCategories(); categories != "" {
			detail += ". categories: " + categories
		}
		log.Printf("gemini: %s (%s)", detail, model)
		if text != "" {
			notice := core.ErrorResult(model, core.KindBlockedResponse, detail).Text
			return core.Result{Model: model, Text: text + "\n\n..." + notice}
		}
		return core.ErrorResult(model, core.KindBlockedResponse, detail)
	default:
		detail := "stopped due to reason: " + candidate.FinishReason
		log.Printf("gemini: %s (%s)", detail, model)
		return core.ErrorResult(model, core.KindUnknown, detail)
	}
}

func (c *client) GenerateLowload(ctx context.Context, prompt string) (string, bool) {
	if c.lowloadModel == "" || prompt == "" {
		return "", false
	}

	payload := generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}},
	}

	status, body, err := c.post(ctx, c.lowloadClient, c.lowloadModel, payload)
	if err != nil {
		log.Printf("gemini: lowload request failed (%s): %v", c.lowloadModel, err)
		return "", false
	}
	if status != http.StatusOK {
		_, detail := mapHTTPError(status, body)
		log.Printf("gemini: lowload API error (%s): status %d: %s", c.lowloadModel, status, core.TruncateDetail(detail))
		return "", false
	}

	var resp generateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		log.Printf("gemini: lowload decode failed (%s): %v", c.lowloadModel, err)
		return "", false
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", false
	}
	if len(resp.Candidates) == 0 {
		return "", false
	}

	text := strings.TrimSpace(resp.Candidates[0].text())
	if text == "" {
		return "", false
	}
	return text, true
}

func (c *client) buildSystemInstruction(summary string) *content {
	instruction := c.systemPrompt
	if summary != "" {
		if instruction != "" {
			instruction += "\n\n"
		}
		instruction += core.SummaryMarker + "\n" + summary
	}
	if instruction == "" {
		return nil
	}
	return &content{Parts: []part{{Text: instruction}}}
}

func buildContents(req core.Request) []content {
	contents := make([]content, 0, len(req.History)+1)
	for _, turn := range req.History {
		contents = append(contents, content{
			Role:  string(turn.Role),
			Parts: buildParts(turn.Parts),
		})
	}
	contents = append(contents, content{Role: "user", Parts: buildParts(req.Parts)})
	return contents
}

func buildParts(parts []core.ContentPart) []part {
	out := make([]part, 0, len(parts))
	for _, p := range parts {
		switch {
		case p.IsBlob():
			out = append(out, part{InlineData: &inlineData{MIMEType: p.Blob.MIMEType, Data: p.Blob.Data}})
		case p.IsText():
			out = append(out, part{Text: p.Text})
		}
	}
	return out
}

func (c *client) post(ctx context.Context, httpClient *http.Client, model string, payload generateRequest) (int, []byte, error) {
	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.endpoint, model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(bodyBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

func mapHTTPError(status int, body []byte) (core.ErrorKind, string) {
	var apiErr apiError
	detail := fmt.Sprintf("status %d", status)
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		detail = apiErr.Error.Message
	}

	switch apiErr.Error.Status {
	case "RESOURCE_EXHAUSTED":
		return core.KindRateLimit, detail
	case "INVALID_ARGUMENT", "FAILED_PRECONDITION", "NOT_FOUND":
		return core.KindInvalidArgument, detail
	case "PERMISSION_DENIED", "UNAUTHENTICATED":
		return core.KindUnavailable, detail
	case "UNAVAILABLE", "INTERNAL", "DEADLINE_EXCEEDED":
		return core.KindUnavailable, detail
	}

	switch {
	case status == http.StatusTooManyRequests:
		return core.KindRateLimit, detail
	case status == http.StatusBadRequest || status == http.StatusNotFound:
		return core.KindInvalidArgument, detail
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return core.KindUnavailable, detail
	case status >= 500:
		return core.KindUnavailable, detail
	}
	return core.KindUnknown, detail
}

type generateRequest struct {
	SystemInstruction *content  `json:"system_instruction,omitempty"`
	Contents          []content `json:"contents"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MIMEType string `json:"mime_type"`
	Data     []byte `json:"data"`
}

type generateResponse struct {
	Candidates     []candidate     `json:"candidates"`
	PromptFeedback *promptFeedback `json:"promptFeedback"`
}

type candidate struct {
	Content       *content       `json:"content"`
	FinishReason  string         `json:"finishReason"`
	SafetyRatings []safetyRating `json:"safetyRatings"`
}

func (c candidate) text() string {
	if c.Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range c.Content.Parts {
		b.WriteString(p.Text)
	}
	return b.String()
}

func (c candidate) blockedCategories() string {
	var categories []string
	for _, rating := range c.SafetyRatings {
		if rating.Blocked {
			categories = append(categories, rating.Category)
		}
	}
	return strings.Join(categories, ", ")
}

type safetyRating struct {
	Category string `json:"category"`
	Blocked  bool   `json:"blocked"`
}

type promptFeedback struct {
	BlockReason string `json:"blockReason"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}
