package mistral

import (
	"bytes"
	"context"
	"encoding/base64"
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
	core.RegisterProvider("mistral", newClient)
}

const (
	defaultEndpoint = "https://api.mistral.ai/v1"

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
	if cfg.MistralKey == "" {
		return nil, fmt.Errorf("mistral: API key not configured")
	}
	if cfg.PrimaryModel == "" {
		return nil, fmt.Errorf("mistral: primary model not configured")
	}

	endpoint := strings.TrimRight(cfg.MistralBase, "/")
	if endpoint == "" {
		endpoint = defaultEndpoint
	}

	return &client{
		apiKey:         cfg.MistralKey,
		endpoint:       endpoint,
		systemPrompt:   cfg.SystemPrompt,
		primaryModel:   cfg.PrimaryModel,
		secondaryModel: cfg.SecondaryModel,
		lowloadModel:   cfg.LowloadModel,
		httpClient:     webclient.NewDefault(chatTimeout),
		lowloadClient:  webclient.NewDefault(lowloadTimeout),
	}, nil
}

func (c *client) Name() string {
	return "mistral"
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

// supportsVision is a name-based capability check; only the pixtral family
// accepts image content.
func supportsVision(model string) bool {
	return strings.Contains(strings.ToLower(model), "pixtral")
}

func (c *client) Generate(ctx context.Context, model string, req core.Request) (core.Result, error) {
	if model == "" {
		return core.Result{}, fmt.Errorf("mistral: empty model name")
	}

	payload := chatRequest{
		Model:    model,
		Messages: c.buildMessages(model, req),
	}

	status, body, err := c.post(ctx, c.httpClient, payload)
	if err != nil {
		log.Printf("mistral: request failed (%s): %v", model, err)
		return core.ErrorResult(model, core.KindUnavailable, err.Error()), nil
	}
	if status != http.StatusOK {
		kind, detail := mapHTTPError(status, body)
		log.Printf("mistral: API error (%s): status %d: %s", model, status, core.TruncateDetail(detail))
		return core.ErrorResult(model, kind, detail), nil
	}

	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return core.Result{}, fmt.Errorf("mistral: decode response: %w", err)
	}
	return interpret(model, resp), nil
}

func interpret(model string, resp chatResponse) core.Result {
	if len(resp.Choices) == 0 {
		return core.ErrorResult(model, core.KindUnknown, "empty response from API")
	}

	choice := resp.Choices[0]
	text := choice.Message.Content

	switch choice.FinishReason {
	case "stop", "":
		if text == "" {
			return core.ErrorResult(model, core.KindUnknown, "empty response from API")
		}
		return core.Result{Model: model, Text: text}
	case "length":
		detail := "output exceeded the maximum token limit"
		log.Printf("mistral: response truncated (%s)", model)
		if text != "" {
			notice := core.ErrorResult(model, core.KindInvalidArgument, detail).Text
			return core.Result{Model: model, Text: text + "\n\n..." + notice}
		}
		return core.ErrorResult(model, core.KindInvalidArgument, detail)
	case "tool_calls":
		log.Printf("mistral: tool call requested but not handled (%s)", model)
		return core.Result{Model: model, Text: text + "\n\n(tool call detected but not processed)"}
	default:
		detail := "finished with reason: " + choice.FinishReason
		log.Printf("mistral: %s (%s)", detail, model)
		return core.ErrorResult(model, core.KindUnknown, detail)
	}
}

func (c *client) GenerateLowload(ctx context.Context, prompt string) (string, bool) {
	if c.lowloadModel == "" || prompt == "" {
		return "", false
	}

	payload := chatRequest{
		Model:    c.lowloadModel,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	}

	status, body, err := c.post(ctx, c.lowloadClient, payload)
	if err != nil {
		log.Printf("mistral: lowload request failed (%s): %v", c.lowloadModel, err)
		return "", false
	}
	if status != http.StatusOK {
		_, detail := mapHTTPError(status, body)
		log.Printf("mistral: lowload API error (%s): status %d: %s", c.lowloadModel, status, core.TruncateDetail(detail))
		return "", false
	}

	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		log.Printf("mistral: lowload decode failed (%s): %v", c.lowloadModel, err)
		return "", false
	}
	if len(resp.Choices) == 0 {
		return "", false
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", false
	}
	return text, true
}

// buildMessages translates the assembled bundle into the chat-completions
// shape: system prompt first, summary folded into it, history as plain text
// with model mapped to assistant, and the new content last. Images ride as
// data URLs and are dropped when the target model has no vision support.
func (c *client) buildMessages(model string, req core.Request) []chatMessage {
	var messages []chatMessage

	if c.systemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: c.systemPrompt})
	}
	if req.Summary != "" {
		block := core.SummaryMarker + "\n" + req.Summary
		if len(messages) > 0 && messages[0].Role == "system" {
			messages[0].Content = messages[0].Content.(string) + "\n\n" + block
		} else {
			messages = append(messages, chatMessage{Role: "user", Content: block})
		}
	}

	for _, turn := range req.History {
		role := "user"
		if turn.Role == core.RoleModel {
			role = "assistant"
		}
		text := turn.JoinedText()
		if text == "" {
			continue
		}
		messages = append(messages, chatMessage{Role: role, Content: text})
	}

	var textParts []string
	var imageItems []contentItem
	for _, p := range req.Parts {
		switch {
		case p.IsText():
			textParts = append(textParts, p.Text)
		case p.IsBlob():
			if !supportsVision(model) {
				log.Printf("mistral: model %s does not support images, dropping %s attachment", model, p.Blob.MIMEType)
				continue
			}
			url := fmt.Sprintf("data:%s;base64,%s", p.Blob.MIMEType, base64.StdEncoding.EncodeToString(p.Blob.Data))
			imageItems = append(imageItems, contentItem{Type: "image_url", ImageURL: &imageURL{URL: url}})
		}
	}

	var current []contentItem
	if len(textParts) > 0 {
		current = append(current, contentItem{Type: "text", Text: strings.Join(textParts, "\n")})
	}
	current = append(current, imageItems...)

	if len(current) > 0 {
		messages = append(messages, chatMessage{Role: "user", Content: current})
	}
	return messages
}

func (c *client) post(ctx context.Context, httpClient *http.Client, payload chatRequest) (int, []byte, error) {
	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/chat/completions", bytes.NewBuffer(bodyBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

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
	detail := fmt.Sprintf("status %d", status)
	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil {
		if msg := apiErr.message(); msg != "" {
			detail = msg
		}
	}

	switch {
	case status == http.StatusTooManyRequests:
		return core.KindRateLimit, detail
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return core.KindInvalidArgument, detail
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return core.KindUnavailable, detail
	case status >= 500:
		return core.KindUnavailable, detail
	}
	return core.KindUnknown, detail
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

// chatMessage content is either a plain string or a []contentItem for
// multimodal user messages.
type chatMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type contentItem struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []choice `json:"choices"`
}

type choice struct {
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	FinishReason string `json:"finish_reason"`
}

type apiError struct {
	Message string `json:"message"`
	Error   struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (e apiError) message() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Error.Message
}
