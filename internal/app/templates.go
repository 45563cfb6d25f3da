package app

import (
	"bytes"
	"fmt"
	"html/template"
	texttemplate "text/template"

	"subscription_notifier/internal/domain/calendar"
	"subscription_notifier/internal/domain/notification"
)

// RenderedMessage is the subject and HTML body of a lifecycle email.
type RenderedMessage struct {
	Subject string
	HTML    string
}

type stageTemplate struct {
	subject string
	body    string
}

const layoutHead = `<!DOCTYPE html>
<html>
<head><meta http-equiv="Content-Type" content="text/html; charset=UTF-8" /></head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Helvetica, Arial, sans-serif; font-size: 14px; line-height: 1.6; color: #333;">
<p>Hello {{.TenantName}},</p>
`

const layoutFoot = `<p>Kind regards,<br/>The billing team</p>
</body>
</html>`

// stageTemplates are kept as constants, one per lifecycle stage.
var stageTemplates = map[notification.Stage]stageTemplate{
	notification.StagePreExpiry: {
		subject: "Your subscription ends on {{.CycleEnd}}",
		body: `<p>Your subscription ends in 5 days, on <strong>{{.CycleEnd}}</strong>.</p>
<p>Renew now to keep uninterrupted access to your account.</p>
`,
	},
	notification.StageFinalDay: {
		subject: "Last day before your subscription ends",
		body: `<p>Your subscription ends tomorrow, on <strong>{{.CycleEnd}}</strong>.</p>
<p>Renew today to avoid losing access.</p>
`,
	},
	notification.StageLockout: {
		subject: "Your subscription has ended",
		body: `<p>Your subscription ended today (<strong>{{.CycleEnd}}</strong>) and access to your account is now locked.</p>
<p>Your data is kept and access is restored as soon as you renew.</p>
`,
	},
	notification.StageRetentionReminder: {
		subject: "Your account is still waiting for you",
		body: `<p>Your subscription ended on <strong>{{.CycleEnd}}</strong>. Your data is still available.</p>
<p>Renew to pick up where you left off.</p>
`,
	},
	notification.StageArchivalWarning: {
		subject: "Your data will be archived on {{.ArchivalDate}}",
		body: `<p>Your subscription ended on <strong>{{.CycleEnd}}</strong>.</p>
<p>Without a renewal, your account data will be archived on <strong>{{.ArchivalDate}}</strong>.</p>
`,
	},
}

// Subjects are plain text headers and are not HTML escaped.
type compiledTemplate struct {
	subject *texttemplate.Template
	body    *template.Template
}

// Renderer renders lifecycle emails. Rendering is a pure function of the
// stage, tenant name and cycle end date.
type Renderer struct {
	dateLayout string
	templates  map[notification.Stage]compiledTemplate
}

// NewRenderer parses all stage templates. dateLayout is a time layout used
// for every date shown to the tenant.
func NewRenderer(dateLayout string) (*Renderer, error) {
	r := &Renderer{
		dateLayout: dateLayout,
		templates:  make(map[notification.Stage]compiledTemplate, len(stageTemplates)),
	}
	for stage, st := range stageTemplates {
		subject, err := texttemplate.New(string(stage) + "_subject").Parse(st.subject)
		if err != nil {
			return nil, fmt.Errorf("failed to parse subject template for %s: %w", stage, err)
		}
		body, err := template.New(string(stage)).Parse(layoutHead + st.body + layoutFoot)
		if err != nil {
			return nil, fmt.Errorf("failed to parse body template for %s: %w", stage, err)
		}
		r.templates[stage] = compiledTemplate{subject: subject, body: body}
	}
	return r, nil
}

// TemplateData is what a lifecycle email may show. The archival date is
// derived from CycleEnd and only rendered for the archival warning.
type TemplateData struct {
	TenantName string
	CycleEnd   calendar.Date
}

func (r *Renderer) RenderMessage(stage notification.Stage, td TemplateData) (RenderedMessage, error) {
	tmpl, ok := r.templates[stage]
	if !ok {
		return RenderedMessage{}, fmt.Errorf("no template for stage %s", stage)
	}

	data := map[string]any{
		"TenantName": td.TenantName,
		"CycleEnd":   td.CycleEnd.Format(r.dateLayout),
	}
	if stage == notification.StageArchivalWarning {
		data["ArchivalDate"] = notification.ArchivalDate(td.CycleEnd).Format(r.dateLayout)
	}

	var subject, body bytes.Buffer
	if err := tmpl.subject.Execute(&subject, data); err != nil {
		return RenderedMessage{}, fmt.Errorf("failed to render subject for %s: %w", stage, err)
	}
	if err := tmpl.body.Execute(&body, data); err != nil {
		return RenderedMessage{}, fmt.Errorf("failed to render body for %s: %w", stage, err)
	}
	return RenderedMessage{Subject: subject.String(), HTML: body.String()}, nil
}
