package mailer

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

type fakeSender struct {
	sent []*gomail.Message
	err  error
}

func (f *fakeSender) DialAndSend(m ...*gomail.Message) error {
	f.sent = append(f.sent, m...)
	return f.err
}

func TestSendDocumentReady(t *testing.T) {
	fs := &fakeSender{}
	svc := &emailService{dialer: fs, senderEmail: "drafts@example.com", frontendURL: "https://app.example.com"}

	err := svc.SendDocumentReady("lawyer@example.com", DocumentReady{
		SessionId:     "s-1",
		CaseReference: "0001234-56.2024.8.12.0001",
		VersionNumber: 1,
		Origin:        "initial",
	})
	require.NoError(t, err)
	require.Len(t, fs.sent, 1)

	m := fs.sent[0]
	assert.Equal(t, []string{"lawyer@example.com"}, m.GetHeader("To"))
	assert.Equal(t, []string{"Draft ready for case 0001234-56.2024.8.12.0001"}, m.GetHeader("Subject"))

	var buf bytes.Buffer
	_, err = m.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "https://app.example.com/sessions/s-1")
}

func TestSendDocumentReady_DialError(t *testing.T) {
	boom := errors.New("smtp down")
	svc := &emailService{dialer: &fakeSender{err: boom}, senderEmail: "drafts@example.com"}

	err := svc.SendDocumentReady("lawyer@example.com", DocumentReady{SessionId: "s-1"})

	assert.ErrorIs(t, err, boom)
}
