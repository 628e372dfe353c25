package mailer

import (
	"fmt"
	"html"

	"gopkg.in/gomail.v2"
)

// DocumentReady describes a finalized draft for the notification email.
type DocumentReady struct {
	SessionId     string
	CaseReference string
	VersionNumber int
	Origin        string
}

type IEmailService interface {
	SendDocumentReady(toEmail string, doc DocumentReady) error
}

type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

type emailService struct {
	dialer      sender
	senderEmail string
	senderName  string
	frontendURL string
}

// NewEmailService sends from the SMTP account itself under senderName.
func NewEmailService(host string, port int, username, password, senderName, frontendURL string) IEmailService {
	d := gomail.NewDialer(host, port, username, password)

	return &emailService{
		dialer:      d,
		senderEmail: username,
		senderName:  senderName,
		frontendURL: frontendURL,
	}
}

func (s *emailService) SendDocumentReady(toEmail string, doc DocumentReady) error {
	m := s.documentReadyMessage(toEmail, doc)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send document-ready mail to %s: %w", toEmail, err)
	}
	return nil
}

func (s *emailService) documentReadyMessage(toEmail string, doc DocumentReady) *gomail.Message {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.senderEmail, s.senderName)
	m.SetHeader("To", toEmail)
	m.SetHeader("Subject", fmt.Sprintf("Draft ready for case %s", doc.CaseReference))

	link := fmt.Sprintf("%s/sessions/%s", s.frontendURL, doc.SessionId)

	body := fmt.Sprintf(`
		<div style="font-family: Arial, sans-serif; padding: 20px; color: #333;">
			<h2>Your draft is ready</h2>
			<p>Case <strong>%s</strong> now has version %d (%s).</p>
			<a href="%s" style="background-color: #007BFF; color: white; padding: 10px 20px; text-decoration: none; border-radius: 5px; display: inline-block;">Open draft</a>
			<p>Or copy this link:</p>
			<p>%s</p>
		</div>
	`, html.EscapeString(doc.CaseReference), doc.VersionNumber, html.EscapeString(doc.Origin), link, link)

	m.SetBody("text/html", body)
	return m
}
