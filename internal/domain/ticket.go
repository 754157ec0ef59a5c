package domain

import (
	"strings"
	"time"
)

// TicketPriority enumerates the external system's priority levels.
type TicketPriority string

const (
	TicketPriorityBlocker TicketPriority = "Blocker"
	TicketPriorityP1      TicketPriority = "P1"
	TicketPriorityP2      TicketPriority = "P2"
	TicketPriorityP3      TicketPriority = "P3"
	TicketPriorityP4      TicketPriority = "P4"
)

// Reporter identifies the person who filed the ticket.
type Reporter struct {
	AccountID   string `json:"account_id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email,omitempty"`
}

// Ticket is a read-only snapshot fetched from the external ticket store.
// It is never mutated locally; changes flow back through comments and
// transitions only.
type Ticket struct {
	Key             string         `json:"key"`
	ID              string         `json:"id"`
	Summary         string         `json:"summary"`
	Description     string         `json:"description"`
	IssueType       string         `json:"issue_type"`
	Priority        TicketPriority `json:"priority"`
	Status          string         `json:"status"`
	Reporter        Reporter       `json:"reporter"`
	StepsToRepro    string         `json:"steps_to_reproduce,omitempty"`
	AffectedVersion string         `json:"affected_version,omitempty"`
	CustomerImpact  string         `json:"customer_impact,omitempty"`
	AttachmentCount int            `json:"attachment_count"`
	ProjectKey      string         `json:"project_key"`
	Created         time.Time      `json:"created"`
	Updated         time.Time      `json:"updated"`
}

// CombinedText returns the lowercased summary plus description, the haystack
// for keyword heuristics.
func (t *Ticket) CombinedText() string {
	return strings.ToLower(strings.TrimSpace(t.Summary + " " + t.Description))
}

// HasAttachments reports whether any attachments are present.
func (t *Ticket) HasAttachments() bool {
	return t.AttachmentCount > 0
}

// IsBugLike reports whether the ticket is a defect report.
func (t *Ticket) IsBugLike() bool {
	switch strings.ToLower(t.IssueType) {
	case "bug", "problem", "unreproducible bug":
		return true
	}
	return false
}

// Transition is one workflow move currently available on a ticket.
type Transition struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	TargetStatus string `json:"target_status"`
}

// DuplicateCandidate is a ranked potential duplicate of a ticket.
type DuplicateCandidate struct {
	Key        string  `json:"key"`
	Summary    string  `json:"summary"`
	Status     string  `json:"status"`
	Similarity float64 `json:"similarity"`
}
