package gemini

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/triage-bot/internal/config"
	"github.com/spec-kit/triage-bot/internal/domain"
)

func TestFallbackComment(t *testing.T) {
	tests := []struct {
		name     string
		level    domain.QualityLevel
		issues   []string
		contains []string
		excludes []string
	}{
		{
			name:     "high quality thanks the reporter",
			level:    domain.QualityHigh,
			contains: []string{"well-detailed", "begin working"},
			excludes: []string{"- "},
		},
		{
			name:     "medium quality lists the issues",
			level:    domain.QualityMedium,
			issues:   []string{"Affected version is not specified"},
			contains: []string{"additional information", "- Affected version is not specified"},
		},
		{
			name:     "low quality asks for updates",
			level:    domain.QualityLow,
			issues:   []string{"Summary is too short (minimum 10 characters required)"},
			contains: []string{"Please update this ticket", "- Summary is too short"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			comment := FallbackComment(&domain.QualityAssessment{
				OverallQuality: tt.level,
				IssuesFound:    tt.issues,
			})
			for _, want := range tt.contains {
				assert.Contains(t, comment, want)
			}
			for _, unwanted := range tt.excludes {
				assert.NotContains(t, comment, unwanted)
			}
		})
	}
}

func TestFallbackCommentIsDeterministic(t *testing.T) {
	assessment := &domain.QualityAssessment{
		OverallQuality: domain.QualityMedium,
		IssuesFound:    []string{"a", "b"},
	}
	assert.Equal(t, FallbackComment(assessment), FallbackComment(assessment))
}

func TestGenerateCommentParsesResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		fmt.Fprint(w, `{"candidates": [{"content": {"parts": [{"text": "Thanks for the detailed report."}]}}]}`)
	}))
	defer server.Close()

	client := NewClient(config.GeminiConfig{
		APIKey:         "key",
		Model:          "gemini-pro",
		TimeoutSeconds: 5,
	}, zap.NewNop())
	client.baseURL = server.URL

	comment, err := client.GenerateComment(context.Background(), &domain.Ticket{Key: "SUP-1"},
		&domain.QualityAssessment{OverallQuality: domain.QualityHigh}, nil)

	require.NoError(t, err)
	assert.Equal(t, "Thanks for the detailed report.", comment)
}

func TestGenerateCommentEmptyResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"candidates": []}`)
	}))
	defer server.Close()

	client := NewClient(config.GeminiConfig{APIKey: "key", Model: "gemini-pro", TimeoutSeconds: 5}, zap.NewNop())
	client.baseURL = server.URL

	_, err := client.GenerateComment(context.Background(), &domain.Ticket{Key: "SUP-1"},
		&domain.QualityAssessment{OverallQuality: domain.QualityHigh}, nil)

	assert.ErrorIs(t, err, ErrEmptyResponse)
}
