package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/triage-bot/internal/config"
	"github.com/spec-kit/triage-bot/internal/domain"
)

// APIError carries the ticket store's HTTP status so callers can classify
// failures as transient or permanent.
type APIError struct {
	Message    string
	StatusCode int
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s (status %d)", e.Message, e.StatusCode)
	}
	return e.Message
}

// ErrNotFound is returned when the ticket does not exist.
var ErrNotFound = errors.New("ticket not found")

// IsTransient reports whether the error is worth retrying: network failures
// and 5xx responses are, 4xx responses are not.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotFound) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 0 || apiErr.StatusCode >= 500 || apiErr.StatusCode == http.StatusTooManyRequests
	}
	// Undecorated errors come from the transport layer.
	return true
}

// Client is a thin HTTP wrapper over the ticket store's REST API.
type Client struct {
	cfg        config.JiraConfig
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient builds the client with the configured timeout.
func NewClient(cfg config.JiraConfig, logger *zap.Logger) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout()},
		logger:     logger,
	}
}

type issueFields struct {
	Summary     string `json:"summary"`
	Description string `json:"description"`
	IssueType   struct {
		Name string `json:"name"`
	} `json:"issuetype"`
	Priority struct {
		Name string `json:"name"`
	} `json:"priority"`
	Status struct {
		Name string `json:"name"`
	} `json:"status"`
	Reporter struct {
		AccountID    string `json:"accountId"`
		DisplayName  string `json:"displayName"`
		EmailAddress string `json:"emailAddress"`
	} `json:"reporter"`
	Project struct {
		Key string `json:"key"`
	} `json:"project"`
	Attachment []json.RawMessage `json:"attachment"`
	Created    string            `json:"created"`
	Updated    string            `json:"updated"`
}

type issuePayload struct {
	ID     string          `json:"id"`
	Key    string          `json:"key"`
	Fields json.RawMessage `json:"fields"`
}

// GetTicket fetches a read-only ticket snapshot.
func (c *Client) GetTicket(ctx context.Context, key string) (*domain.Ticket, error) {
	var payload issuePayload
	endpoint := fmt.Sprintf("%s/rest/api/2/issue/%s", c.cfg.BaseURL, url.PathEscape(key))
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, &payload); err != nil {
		return nil, err
	}
	return c.ticketFromPayload(&payload), nil
}

// AddComment posts a comment to the ticket and returns the comment id.
func (c *Client) AddComment(ctx context.Context, key, body string) (string, error) {
	endpoint := fmt.Sprintf("%s/rest/api/2/issue/%s/comment", c.cfg.BaseURL, url.PathEscape(key))
	req := map[string]string{"body": body}
	var resp struct {
		ID string `json:"id"`
	}
	if err := c.doJSON(ctx, http.MethodPost, endpoint, req, &resp); err != nil {
		return "", err
	}
	c.logger.Info("comment posted", zap.String("ticket", key), zap.String("comment_id", resp.ID))
	return resp.ID, nil
}

// ListTransitions returns the transitions currently available on the ticket.
func (c *Client) ListTransitions(ctx context.Context, key string) ([]domain.Transition, error) {
	endpoint := fmt.Sprintf("%s/rest/api/2/issue/%s/transitions", c.cfg.BaseURL, url.PathEscape(key))
	var resp struct {
		Transitions []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
			To   struct {
				Name string `json:"name"`
			} `json:"to"`
		} `json:"transitions"`
	}
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return nil, err
	}
	transitions := make([]domain.Transition, 0, len(resp.Transitions))
	for _, t := range resp.Transitions {
		transitions = append(transitions, domain.Transition{
			ID:           t.ID,
			Name:         t.Name,
			TargetStatus: t.To.Name,
		})
	}
	return transitions, nil
}

// ExecuteTransition moves the ticket through the identified transition.
func (c *Client) ExecuteTransition(ctx context.Context, key, transitionID string) error {
	endpoint := fmt.Sprintf("%s/rest/api/2/issue/%s/transitions", c.cfg.BaseURL, url.PathEscape(key))
	req := map[string]any{"transition": map[string]string{"id": transitionID}}
	return c.doJSON(ctx, http.MethodPost, endpoint, req, nil)
}

// SearchTickets runs a JQL query and returns matching snapshots.
func (c *Client) SearchTickets(ctx context.Context, jql string, maxResults int) ([]domain.Ticket, error) {
	endpoint := fmt.Sprintf("%s/rest/api/2/search?jql=%s&maxResults=%s",
		c.cfg.BaseURL, url.QueryEscape(jql), strconv.Itoa(maxResults))
	var resp struct {
		Issues []issuePayload `json:"issues"`
	}
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return nil, err
	}
	tickets := make([]domain.Ticket, 0, len(resp.Issues))
	for i := range resp.Issues {
		tickets = append(tickets, *c.ticketFromPayload(&resp.Issues[i]))
	}
	return tickets, nil
}

func (c *Client) doJSON(ctx context.Context, method, endpoint string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.cfg.Username, c.cfg.APIToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &APIError{Message: fmt.Sprintf("%s %s: %v", method, endpoint, err)}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s %s: %w", method, endpoint, ErrNotFound)
	case resp.StatusCode >= 300:
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &APIError{
			Message:    fmt.Sprintf("%s %s: %s", method, endpoint, strings.TrimSpace(string(data))),
			StatusCode: resp.StatusCode,
		}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &APIError{Message: fmt.Sprintf("decode %s response: %v", endpoint, err), StatusCode: resp.StatusCode}
	}
	return nil
}

func (c *Client) ticketFromPayload(p *issuePayload) *domain.Ticket {
	var fields issueFields
	_ = json.Unmarshal(p.Fields, &fields)

	// Custom fields live under instance-specific IDs, so the typed
	// struct cannot carry them. Decode the field map a second time and
	// look the configured IDs up by name.
	var raw map[string]json.RawMessage
	_ = json.Unmarshal(p.Fields, &raw)

	created, _ := time.Parse("2006-01-02T15:04:05.000-0700", fields.Created)
	updated, _ := time.Parse("2006-01-02T15:04:05.000-0700", fields.Updated)
	return &domain.Ticket{
		Key:         p.Key,
		ID:          p.ID,
		Summary:     fields.Summary,
		Description: fields.Description,
		IssueType:   fields.IssueType.Name,
		Priority:    domain.TicketPriority(fields.Priority.Name),
		Status:      fields.Status.Name,
		Reporter: domain.Reporter{
			AccountID:   fields.Reporter.AccountID,
			DisplayName: fields.Reporter.DisplayName,
			Email:       fields.Reporter.EmailAddress,
		},
		StepsToRepro:    customFieldString(raw, c.cfg.StepsField),
		AffectedVersion: customFieldString(raw, c.cfg.AffectedVersionField),
		CustomerImpact:  customFieldString(raw, c.cfg.CustomerImpactField),
		AttachmentCount: len(fields.Attachment),
		ProjectKey:      fields.Project.Key,
		Created:         created,
		Updated:         updated,
	}
}

// customFieldString extracts the configured field's value as text. The
// ticket store renders custom fields as a plain string, a select object
// with a "value" or "name" key, or an array of such objects.
func customFieldString(raw map[string]json.RawMessage, field string) string {
	if field == "" {
		return ""
	}
	data, ok := raw[field]
	if !ok {
		return ""
	}
	return rawFieldText(data)
}

func rawFieldText(data json.RawMessage) string {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return s
	}
	var obj struct {
		Value string `json:"value"`
		Name  string `json:"name"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		if obj.Value != "" {
			return obj.Value
		}
		if obj.Name != "" {
			return obj.Name
		}
	}
	var list []json.RawMessage
	if err := json.Unmarshal(data, &list); err == nil && len(list) > 0 {
		parts := make([]string, 0, len(list))
		for _, item := range list {
			if text := rawFieldText(item); text != "" {
				parts = append(parts, text)
			}
		}
		return strings.Join(parts, ", ")
	}
	return ""
}
