package email

import (
	"net/smtp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedMail struct {
	addr string
	from string
	to   []string
	msg  string
}

func newCapturingService() (*EmailService, *[]capturedMail) {
	var sent []capturedMail
	svc := NewEmailService(SMTPServerConfig{Host: "smtp.example.com", Port: 587, Sender: "picks@example.com"})
	svc.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		sent = append(sent, capturedMail{addr: addr, from: from, to: to, msg: string(msg)})
		return nil
	}
	return svc, &sent
}

func TestSendMagicLink(t *testing.T) {
	svc, sent := newCapturingService()

	require.NoError(t, svc.SendMagicLink("fan@example.com", "https://bowls.example.com/auth/callback?token=abc"))
	require.Len(t, *sent, 1)
	mail := (*sent)[0]
	assert.Equal(t, "smtp.example.com:587", mail.addr)
	assert.Equal(t, "picks@example.com", mail.from)
	assert.Equal(t, []string{"fan@example.com"}, mail.to)
	assert.Contains(t, mail.msg, "To: fan@example.com\r\n")
	assert.Contains(t, mail.msg, "https://bowls.example.com/auth/callback?token=abc")
}

func TestSendPoolInvite(t *testing.T) {
	svc, sent := newCapturingService()

	require.NoError(t, svc.SendPoolInvite("aunt@example.com", "Alice", "Family", "https://bowls.example.com/join/K3Q9ZA"))
	require.Len(t, *sent, 1)
	assert.Contains(t, (*sent)[0].msg, "Subject: You've been invited to the 'Family' bowl pool\r\n")
	assert.Contains(t, (*sent)[0].msg, "Alice has invited you")
	assert.Contains(t, (*sent)[0].msg, "/join/K3Q9ZA")
}

func TestRejectsHeaderInjection(t *testing.T) {
	svc, sent := newCapturingService()

	err := svc.SendPoolInvite("victim@example.com\r\nBcc: everyone@example.com", "Alice", "Family", "link")
	assert.Error(t, err)
	err = svc.SendPoolInvite("victim@example.com", "Alice", "Fam\r\nBcc: x@example.com", "link")
	assert.Error(t, err)
	assert.Empty(t, *sent)
}
