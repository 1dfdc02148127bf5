package notify

import (
	"bytes"
	"fmt"
	htemplate "html/template"
	ttemplate "text/template"
)

var (
	inviteText = ttemplate.Must(ttemplate.New("invite_text").Parse(
		`You have been invited to join {{.OrganizationName}}.

Accept the invitation:
{{.Link}}
`))
	inviteHTML = htemplate.Must(htemplate.New("invite_html").Parse(
		`<p>You have been invited to join <strong>{{.OrganizationName}}</strong>.</p>
<p><a href="{{.Link}}">Accept the invitation</a></p>
`))

	pendingText = ttemplate.Must(ttemplate.New("pending_text").Parse(
		`{{if .UserName}}{{.UserName}} ({{.UserEmail}}){{else}}{{.UserEmail}}{{end}} joined {{.OrganizationName}} through single sign-on.

The membership is waiting for an administrator to confirm it.
`))
	pendingHTML = htemplate.Must(htemplate.New("pending_html").Parse(
		`<p>{{if .UserName}}{{.UserName}} ({{.UserEmail}}){{else}}{{.UserEmail}}{{end}} joined <strong>{{.OrganizationName}}</strong> through single sign-on.</p>
<p>The membership is waiting for an administrator to confirm it.</p>
`))
)

// InviteMessage renders the invitation sent to a newly enrolled user
func InviteMessage(to string, vars InviteVars) (Message, error) {
	text, html, err := render(inviteText, inviteHTML, vars)
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      to,
		Subject: fmt.Sprintf("Join %s", vars.OrganizationName),
		Text:    text,
		HTML:    html,
	}, nil
}

// PendingMessage renders the notice sent to an organization's notification
// address when a membership needs confirmation
func PendingMessage(to string, vars PendingVars) (Message, error) {
	text, html, err := render(pendingText, pendingHTML, vars)
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      to,
		Subject: fmt.Sprintf("%s is waiting for confirmation in %s", vars.UserEmail, vars.OrganizationName),
		Text:    text,
		HTML:    html,
	}, nil
}

func render(t *ttemplate.Template, h *htemplate.Template, vars any) (string, string, error) {
	var text, html bytes.Buffer
	if err := t.Execute(&text, vars); err != nil {
		return "", "", fmt.Errorf("%w: %s: %v", ErrTemplateRender, t.Name(), err)
	}
	if err := h.Execute(&html, vars); err != nil {
		return "", "", fmt.Errorf("%w: %s: %v", ErrTemplateRender, h.Name(), err)
	}
	return text.String(), html.String(), nil
}
