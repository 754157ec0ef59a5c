package jira

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/triage-bot/internal/config"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"not found", ErrNotFound, false},
		{"wrapped not found", fmt.Errorf("ingestion: %w", ErrNotFound), false},
		{"server error", &APIError{Message: "boom", StatusCode: 500}, true},
		{"bad gateway", &APIError{Message: "boom", StatusCode: 502}, true},
		{"rate limited", &APIError{Message: "slow down", StatusCode: 429}, true},
		{"client error", &APIError{Message: "bad request", StatusCode: 400}, false},
		{"forbidden", &APIError{Message: "nope", StatusCode: 403}, false},
		{"no status means network", &APIError{Message: "dial refused"}, true},
		{"plain error", errors.New("connection reset"), true},
		{"wrapped api error", fmt.Errorf("ingestion: %w", &APIError{Message: "x", StatusCode: 422}), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func testServerClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(config.JiraConfig{
		BaseURL:        server.URL,
		Username:       "bot@example.com",
		APIToken:       "token",
		TimeoutSeconds: 5,
	}, zap.NewNop())
	return client, server
}

func TestGetTicketParsesFields(t *testing.T) {
	client, _ := testServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/api/2/issue/SUP-1", r.URL.Path)
		user, _, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "bot@example.com", user)

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"id": "10001",
			"key": "SUP-1",
			"fields": {
				"summary": "Checkout broken",
				"description": "It fails",
				"issuetype": {"name": "Bug"},
				"priority": {"name": "P2"},
				"status": {"name": "Open"},
				"reporter": {"accountId": "abc", "displayName": "Jane"},
				"project": {"key": "SUP"},
				"attachment": [{}, {}],
				"created": "2024-03-01T10:00:00.000+0000"
			}
		}`)
	})

	ticket, err := client.GetTicket(context.Background(), "SUP-1")

	require.NoError(t, err)
	assert.Equal(t, "SUP-1", ticket.Key)
	assert.Equal(t, "Checkout broken", ticket.Summary)
	assert.Equal(t, "Bug", ticket.IssueType)
	assert.Equal(t, "P2", string(ticket.Priority))
	assert.Equal(t, "Open", ticket.Status)
	assert.Equal(t, "Jane", ticket.Reporter.DisplayName)
	assert.Equal(t, "SUP", ticket.ProjectKey)
	assert.Equal(t, 2, ticket.AttachmentCount)
	assert.False(t, ticket.Created.IsZero())
}

func TestGetTicketMapsCustomFields(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"id": "10002",
			"key": "SUP-2",
			"fields": {
				"summary": "Payment declined",
				"issuetype": {"name": "Bug"},
				"customfield_10050": "1. add item 2. pay",
				"customfield_10051": {"value": "v2.3.1"},
				"customfield_10052": [{"value": "checkout down"}, {"value": "refunds blocked"}]
			}
		}`)
	}))
	t.Cleanup(server.Close)

	client := NewClient(config.JiraConfig{
		BaseURL:              server.URL,
		Username:             "bot@example.com",
		APIToken:             "token",
		TimeoutSeconds:       5,
		StepsField:           "customfield_10050",
		AffectedVersionField: "customfield_10051",
		CustomerImpactField:  "customfield_10052",
	}, zap.NewNop())

	ticket, err := client.GetTicket(context.Background(), "SUP-2")

	require.NoError(t, err)
	assert.Equal(t, "1. add item 2. pay", ticket.StepsToRepro)
	assert.Equal(t, "v2.3.1", ticket.AffectedVersion)
	assert.Equal(t, "checkout down, refunds blocked", ticket.CustomerImpact)
}

func TestGetTicketUnmappedCustomFieldsStayEmpty(t *testing.T) {
	client, _ := testServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"id": "10003",
			"key": "SUP-3",
			"fields": {
				"summary": "No mappings configured",
				"customfield_10050": "steps nobody asked for"
			}
		}`)
	})

	ticket, err := client.GetTicket(context.Background(), "SUP-3")

	require.NoError(t, err)
	assert.Empty(t, ticket.StepsToRepro)
	assert.Empty(t, ticket.AffectedVersion)
	assert.Empty(t, ticket.CustomerImpact)
}

func TestGetTicketNotFound(t *testing.T) {
	client, _ := testServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.GetTicket(context.Background(), "SUP-404")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, IsTransient(err))
}

func TestGetTicketServerErrorIsTransient(t *testing.T) {
	client, _ := testServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.GetTicket(context.Background(), "SUP-1")

	require.Error(t, err)
	assert.True(t, IsTransient(err))
}

func TestAddComment(t *testing.T) {
	client, _ := testServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/rest/api/2/issue/SUP-1/comment", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "thanks for reporting", body["body"])

		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id": "20001"}`)
	})

	id, err := client.AddComment(context.Background(), "SUP-1", "thanks for reporting")

	require.NoError(t, err)
	assert.Equal(t, "20001", id)
}

func TestListTransitions(t *testing.T) {
	client, _ := testServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/api/2/issue/SUP-1/transitions", r.URL.Path)
		fmt.Fprint(w, `{"transitions": [
			{"id": "11", "name": "Investigate", "to": {"name": "Under Investigation"}},
			{"id": "21", "name": "Close", "to": {"name": "Closed"}}
		]}`)
	})

	transitions, err := client.ListTransitions(context.Background(), "SUP-1")

	require.NoError(t, err)
	require.Len(t, transitions, 2)
	assert.Equal(t, "11", transitions[0].ID)
	assert.Equal(t, "Under Investigation", transitions[0].TargetStatus)
}

func TestSearchTickets(t *testing.T) {
	client, _ := testServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/api/2/search", r.URL.Path)
		assert.Equal(t, `project = "SUP"`, r.URL.Query().Get("jql"))
		assert.Equal(t, "10", r.URL.Query().Get("maxResults"))

		fmt.Fprint(w, `{"issues": [
			{"key": "SUP-2", "fields": {"summary": "Other", "status": {"name": "Open"}}}
		]}`)
	})

	tickets, err := client.SearchTickets(context.Background(), `project = "SUP"`, 10)

	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, "SUP-2", tickets[0].Key)
}
