package ai

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// Gemini completes through the Gemini Developer API.
type Gemini struct {
	client *genai.Client
}

// NewGemini creates a Gemini client. An empty baseURL keeps the public endpoint.
func NewGemini(ctx context.Context, apiKey, baseURL string) (*Gemini, error) {
	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Gemini{client: client}, nil
}

func (g *Gemini) Complete(ctx context.Context, req Request) (string, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(req.Params.Temperature),
		MaxOutputTokens: req.Params.MaxOutputTokens,
	}
	if req.SystemInstruction != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.SystemInstruction, genai.RoleUser)
	}
	if req.Params.TopP > 0 {
		cfg.TopP = genai.Ptr(req.Params.TopP)
	}
	if req.Params.TopK > 0 {
		cfg.TopK = genai.Ptr(req.Params.TopK)
	}

	contents := []*genai.Content{genai.NewContentFromText(req.UserContent, genai.RoleUser)}
	resp, err := g.client.Models.GenerateContent(ctx, req.Params.Model, contents, cfg)
	if err != nil {
		return "", failed("gemini", err)
	}

	text := strings.TrimSpace(firstCandidateText(resp))
	if text == "" {
		return "", failed("gemini", errEmpty)
	}
	return text, nil
}

// firstCandidateText joins the non-thought text parts of the first candidate.
func firstCandidateText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	c := resp.Candidates[0]
	if c == nil || c.Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range c.Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		sb.WriteString(part.Text)
	}
	return sb.String()
}
