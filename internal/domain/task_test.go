package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPriorityClassWeight(t *testing.T) {
	assert.Equal(t, 9, PriorityHigh.Weight())
	assert.Equal(t, 5, PriorityNormal.Weight())
	assert.Equal(t, 1, PriorityLow.Weight())
}

func TestPriorityClassValid(t *testing.T) {
	assert.True(t, PriorityHigh.Valid())
	assert.True(t, PriorityNormal.Valid())
	assert.True(t, PriorityLow.Valid())
	assert.False(t, PriorityClass("urgent").Valid())
	assert.False(t, PriorityClass("").Valid())
}

func TestTaskStateTerminal(t *testing.T) {
	assert.True(t, TaskStateSucceeded.Terminal())
	assert.True(t, TaskStateFailed.Terminal())
	assert.True(t, TaskStateCancelled.Terminal())
	assert.False(t, TaskStateQueued.Terminal())
	assert.False(t, TaskStateRunning.Terminal())
	assert.False(t, TaskStateRetrying.Terminal())
}

func TestTicketHelpers(t *testing.T) {
	ticket := &Ticket{Summary: "Checkout BROKEN", Description: "Steps below"}
	assert.Equal(t, "checkout broken steps below", ticket.CombinedText())

	assert.True(t, (&Ticket{IssueType: "Bug"}).IsBugLike())
	assert.True(t, (&Ticket{IssueType: "Unreproducible Bug"}).IsBugLike())
	assert.True(t, (&Ticket{IssueType: "problem"}).IsBugLike())
	assert.False(t, (&Ticket{IssueType: "Task"}).IsBugLike())

	assert.True(t, (&Ticket{AttachmentCount: 1}).HasAttachments())
	assert.False(t, (&Ticket{}).HasAttachments())
}

func TestRulePassedDefaultsTrue(t *testing.T) {
	assessment := &QualityAssessment{RuleResults: map[string]bool{"summary_length": false}}

	assert.False(t, assessment.RulePassed("summary_length"))
	assert.True(t, assessment.RulePassed("never_evaluated"))
}
