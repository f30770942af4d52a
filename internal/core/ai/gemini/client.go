package gemini

import (
	"context"
	"fmt"
	"time"

	"todays-meal/internal/core/ai/provider"

	"google.golang.org/genai"
)

// Client Gemini API 客戶端
type Client struct {
	cfg    provider.Config
	client *genai.Client
}

// NewClient 建立 Gemini 客戶端，於程序啟動時建立一次並注入
func NewClient(ctx context.Context, cfg provider.Config) (*Client, error) {
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &Client{cfg: cfg, client: client}, nil
}

// Generate 生成回應
func (c *Client) Generate(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	content := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := genai.Role(genai.RoleUser)
		if m.Role == provider.RoleAssistant {
			role = genai.RoleModel
		}
		content = append(content, genai.NewContentFromText(m.Content, role))
	}

	gc := &genai.GenerateContentConfig{}
	if req.System != "" {
		gc.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = c.cfg.Temperature
	}
	if temperature > 0 {
		gc.Temperature = genai.Ptr(float32(temperature))
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.cfg.MaxTokens
	}
	if maxTokens > 0 {
		gc.MaxOutputTokens = int32(maxTokens)
	}

	res, err := c.client.Models.GenerateContent(ctx, c.cfg.Model, content, gc)
	if err != nil {
		return nil, fmt.Errorf("gemini: calling GenerateContent: %w", err)
	}

	text := res.Text()
	if text == "" {
		return nil, fmt.Errorf("gemini: empty response from model %s", c.cfg.Model)
	}

	resp := &provider.Response{Content: text}
	if um := res.UsageMetadata; um != nil {
		resp.Usage = provider.Usage{
			PromptTokens:     int(um.PromptTokenCount),
			CompletionTokens: int(um.CandidatesTokenCount),
			TotalTokens:      int(um.TotalTokenCount),
		}
	}
	return resp, nil
}

// GetModel 獲取模型名稱
func (c *Client) GetModel() string {
	return c.cfg.Model
}

// GetTimeout 獲取請求超時時間
func (c *Client) GetTimeout() time.Duration {
	return c.cfg.Timeout
}

// Close genai 客戶端無需釋放資源
func (c *Client) Close() error {
	return nil
}
