package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/triage-bot/internal/config"
	"github.com/spec-kit/triage-bot/internal/domain"
)

// ErrEmptyResponse is returned when the service answers without candidates.
var ErrEmptyResponse = errors.New("text generation service returned no candidates")

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Client wraps the generative text service's REST API.
type Client struct {
	cfg        config.GeminiConfig
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient builds the client with the configured timeout.
func NewClient(cfg config.GeminiConfig, logger *zap.Logger) *Client {
	return &Client{
		cfg:        cfg,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout()},
		logger:     logger,
	}
}

type promptPart struct {
	Text string `json:"text"`
}

type promptContent struct {
	Parts []promptPart `json:"parts"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type generateRequest struct {
	Contents         []promptContent  `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content promptContent `json:"content"`
	} `json:"candidates"`
}

// GenerateComment asks the service to draft a triage comment from the ticket,
// its assessment and any duplicate context. Callers must treat failures as
// recoverable; FallbackComment always succeeds.
func (c *Client) GenerateComment(ctx context.Context, ticket *domain.Ticket, assessment *domain.QualityAssessment, duplicates []domain.DuplicateCandidate) (string, error) {
	prompt := buildPrompt(ticket, assessment, duplicates)

	req := generateRequest{
		Contents: []promptContent{{Parts: []promptPart{{Text: prompt}}}},
		GenerationConfig: generationConfig{
			Temperature:     c.cfg.Temperature,
			MaxOutputTokens: c.cfg.MaxOutputTokens,
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		c.baseURL, c.cfg.Model, c.cfg.APIKey)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("text generation request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("text generation service status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var parsed generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode generation response: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", ErrEmptyResponse
	}

	comment := strings.TrimSpace(parsed.Candidates[0].Content.Parts[0].Text)
	if comment == "" {
		return "", ErrEmptyResponse
	}
	c.logger.Info("generated comment", zap.String("ticket", ticket.Key), zap.Int("length", len(comment)))
	return comment, nil
}

func buildPrompt(ticket *domain.Ticket, assessment *domain.QualityAssessment, duplicates []domain.DuplicateCandidate) string {
	var b strings.Builder
	b.WriteString("You are a support triage assistant. Draft a professional, courteous comment for the reporter of this ticket.\n\n")
	fmt.Fprintf(&b, "Ticket %s (%s, priority %s)\nSummary: %s\nDescription: %s\n\n",
		ticket.Key, ticket.IssueType, ticket.Priority, ticket.Summary, ticket.Description)
	fmt.Fprintf(&b, "Quality level: %s (score %d/100)\n", assessment.OverallQuality, assessment.Score)
	if len(assessment.IssuesFound) > 0 {
		b.WriteString("Missing information:\n")
		for _, issue := range assessment.IssuesFound {
			fmt.Fprintf(&b, "- %s\n", issue)
		}
	}
	if len(duplicates) > 0 {
		b.WriteString("\nPossibly related tickets:\n")
		for _, d := range duplicates {
			fmt.Fprintf(&b, "- %s: %s (%s)\n", d.Key, d.Summary, d.Status)
		}
	}
	b.WriteString("\nThank the reporter, list any information still needed as bullet points, mention related tickets if relevant, and explain the next step.")
	return b.String()
}

// FallbackComment builds a deterministic template comment from the quality
// level and issue list. It never fails.
func FallbackComment(assessment *domain.QualityAssessment) string {
	var b strings.Builder

	switch assessment.OverallQuality {
	case domain.QualityHigh:
		b.WriteString("Thank you for submitting this well-detailed ticket. ")
		b.WriteString("Your ticket contains all the necessary information for our team to investigate. We'll begin working on this shortly. ")
		b.WriteString("We'll keep you updated on our progress.")
	case domain.QualityMedium:
		b.WriteString("Thank you for submitting this ticket. ")
		b.WriteString("To help us investigate this issue more effectively, could you please provide the following additional information:\n\n")
		for _, issue := range assessment.IssuesFound {
			fmt.Fprintf(&b, "- %s\n", issue)
		}
		b.WriteString("\nOnce we have this information, we'll be able to proceed with the investigation.")
	default:
		b.WriteString("Thank you for submitting this ticket. ")
		b.WriteString("To properly investigate this issue, we need some additional information. Please provide:\n\n")
		for _, issue := range assessment.IssuesFound {
			fmt.Fprintf(&b, "- %s\n", issue)
		}
		b.WriteString("\nPlease update this ticket with the requested information so we can assist you effectively.")
	}

	return b.String()
}
