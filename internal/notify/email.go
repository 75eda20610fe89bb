package notify

import (
	"bytes"
	"context"
	"fmt"
	htmltemplate "html/template"
	"net/mail"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/wolfman30/appointment-insights/pkg/logging"
)

const (
	defaultFromName = "Appointment Dashboard"
	subjectPrefix   = "[Appointments] "
)

// EmailSender delivers one rendered message. SendGrid, SES and the log stub
// implement it.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// Mailbox is a display name and address pair.
type Mailbox struct {
	Name    string
	Address string
}

func (m Mailbox) String() string {
	return (&mail.Address{Name: m.Name, Address: m.Address}).String()
}

func (m Mailbox) withDefaultName() Mailbox {
	if strings.TrimSpace(m.Name) == "" {
		m.Name = defaultFromName
	}
	return m
}

type EmailMessage struct {
	To      Mailbox
	Subject string
	Text    string
	HTML    string
	Kind    Kind
}

var (
	emailText = texttemplate.Must(texttemplate.New("text").Parse(
		`{{.Body}}

Appointment #{{.AppointmentID}} ({{.Kind}})
{{.When}}
`))

	emailHTML = htmltemplate.Must(htmltemplate.New("html").Parse(
		`<h2 style="margin:0 0 8px">{{.Title}}</h2>
<p>{{.Body}}</p>
<p style="color:#71717a;font-size:12px">Appointment #{{.AppointmentID}} &middot; {{.When}}</p>
`))
)

type emailView struct {
	Notification
	When string
}

// EmailNotifier mails every notification to a fixed operator mailbox.
type EmailNotifier struct {
	sender EmailSender
	to     Mailbox
}

// NewEmailNotifier returns nil when there is no sender or recipient. The
// recipient may carry a display name ("Ops <ops@example.com>").
func NewEmailNotifier(sender EmailSender, to string) *EmailNotifier {
	to = strings.TrimSpace(to)
	if sender == nil || to == "" {
		return nil
	}
	box := Mailbox{Address: to}
	if addr, err := mail.ParseAddress(to); err == nil {
		box = Mailbox{Name: addr.Name, Address: addr.Address}
	}
	return &EmailNotifier{sender: sender, to: box}
}

func (e *EmailNotifier) Notify(ctx context.Context, n Notification) error {
	msg, err := renderEmail(e.to, n)
	if err != nil {
		return err
	}
	return e.sender.Send(ctx, msg)
}

func renderEmail(to Mailbox, n Notification) (EmailMessage, error) {
	view := emailView{Notification: n, When: n.At.Format("January 2, 2006 at 3:04 PM")}
	if n.At.IsZero() {
		view.When = time.Now().Format("January 2, 2006 at 3:04 PM")
	}
	var text, html bytes.Buffer
	if err := emailText.Execute(&text, view); err != nil {
		return EmailMessage{}, fmt.Errorf("notify: render email text: %w", err)
	}
	if err := emailHTML.Execute(&html, view); err != nil {
		return EmailMessage{}, fmt.Errorf("notify: render email html: %w", err)
	}
	return EmailMessage{
		To:      to,
		Subject: subjectPrefix + n.Title,
		Text:    text.String(),
		HTML:    html.String(),
		Kind:    n.Kind,
	}, nil
}

// StubEmailSender logs instead of sending.
type StubEmailSender struct {
	logger *logging.Logger
}

func NewStubEmailSender(logger *logging.Logger) *StubEmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &StubEmailSender{logger: logger}
}

func (s *StubEmailSender) Send(_ context.Context, msg EmailMessage) error {
	s.logger.Info("email not sent, stub provider", "to", msg.To.Address, "subject", msg.Subject, "kind", msg.Kind)
	return nil
}
