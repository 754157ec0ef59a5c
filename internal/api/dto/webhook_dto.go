package dto

// JiraWebhookPayload is the subset of the webhook body the bot reads.
type JiraWebhookPayload struct {
	WebhookEvent string            `json:"webhookEvent"`
	Issue        *JiraWebhookIssue `json:"issue"`
}

// JiraWebhookIssue carries the affected issue.
type JiraWebhookIssue struct {
	Key    string            `json:"key"`
	Fields JiraWebhookFields `json:"fields"`
}

// JiraWebhookFields carries the fields used for gating and priority.
type JiraWebhookFields struct {
	IssueType JiraNamedField   `json:"issuetype"`
	Priority  JiraNamedField   `json:"priority"`
	Status    JiraNamedField   `json:"status"`
	Project   JiraProjectField `json:"project"`
}

// JiraNamedField is any {"name": "..."} field.
type JiraNamedField struct {
	Name string `json:"name"`
}

// JiraProjectField identifies the issue's project.
type JiraProjectField struct {
	Key string `json:"key"`
}
