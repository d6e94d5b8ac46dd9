package service

import (
	"bytes"
	"fmt"
	"html/template"
)

var portalMessageTemplate = template.Must(template.New("portal_message").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2>New Client Portal Message</h2>
  <p><strong>From:</strong> {{.SenderCompany}} ({{.SenderEmail}})</p>
  <p><strong>Subject:</strong> {{.Subject}}</p>
  <p><strong>Message:</strong></p>
  <div style="white-space: pre-wrap; line-height: 1.6;">{{.Content}}</div>
  <p style="font-size: 14px;"><strong>Note:</strong> Reply directly to this email to answer the client.</p>
  <p style="font-size: 12px; color: #6b7280;">Sent from the Client Portal</p>
</div>`))

var contactTemplate = template.Must(template.New("contact").Parse(`<h2>New Contact Form Submission</h2>
<h3>Contact Information</h3>
<p><strong>Name:</strong> {{.Name}}</p>
<p><strong>Email:</strong> {{.Email}}</p>
<p><strong>Company:</strong> {{or .Company "Not specified"}}</p>
<p><strong>Role:</strong> {{or .Role "Not specified"}}</p>
<h3>Project Details</h3>
<p><strong>Project Type:</strong> {{or .ProjectType "Not specified"}}</p>
<p><strong>Timeline:</strong> {{or .Timeline "Not specified"}}</p>
<h3>Message</h3>
<div style="white-space: pre-wrap;">{{.Message}}</div>`))

var welcomeTemplate = template.Must(template.New("welcome").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2>Welcome to the Client Portal</h2>
  <p>Your portal account has been created.</p>
  <div style="background: #f3f4f6; padding: 20px; border-radius: 8px; margin: 20px 0;">
    <p><strong>Portal Access Details:</strong></p>
    <p>URL: <a href="{{.PortalURL}}">{{.PortalURL}}</a></p>
    <p>Email: {{.Email}}</p>
    <p>Company: {{.Company}}</p>
  </div>
  <p><strong>Important:</strong> Your password has been shared separately. Please change it after your first login.</p>
</div>`))

type welcomeData struct {
	PortalURL string
	Email     string
	Company   string
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}
