package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cancelled() Notification {
	return Notification{
		Kind:          KindCancelled,
		Title:         "Appointment Cancelled",
		Body:          `The "Consult <b>" appointment has been cancelled.`,
		AppointmentID: 42,
		At:            time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
	}
}

type recordingEmail struct {
	msgs []EmailMessage
	err  error
}

func (r *recordingEmail) Send(_ context.Context, msg EmailMessage) error {
	r.msgs = append(r.msgs, msg)
	return r.err
}

func TestNewEmailNotifier(t *testing.T) {
	assert.Nil(t, NewEmailNotifier(nil, "ops@example.com"))
	assert.Nil(t, NewEmailNotifier(&recordingEmail{}, " "))

	n := NewEmailNotifier(&recordingEmail{}, "Front Desk <desk@example.com>")
	require.NotNil(t, n)
	assert.Equal(t, Mailbox{Name: "Front Desk", Address: "desk@example.com"}, n.to)

	n = NewEmailNotifier(&recordingEmail{}, "ops@example.com")
	require.NotNil(t, n)
	assert.Equal(t, Mailbox{Address: "ops@example.com"}, n.to)
}

func TestEmailNotifier_Notify(t *testing.T) {
	rec := &recordingEmail{}
	require.NoError(t, NewEmailNotifier(rec, "ops@example.com").Notify(context.Background(), cancelled()))
	require.Len(t, rec.msgs, 1)

	msg := rec.msgs[0]
	assert.Equal(t, "ops@example.com", msg.To.Address)
	assert.Equal(t, "[Appointments] Appointment Cancelled", msg.Subject)
	assert.Equal(t, KindCancelled, msg.Kind)
	assert.Contains(t, msg.Text, `The "Consult <b>" appointment has been cancelled.`)
	assert.Contains(t, msg.Text, "Appointment #42 (cancelled)")
	assert.Contains(t, msg.Text, "May 1, 2024 at 9:00 AM")
	assert.NotContains(t, msg.HTML, "<b>")
	assert.Contains(t, msg.HTML, "Appointment #42")
}

func TestEmailNotifier_SenderError(t *testing.T) {
	rec := &recordingEmail{err: errors.New("smtp down")}
	err := NewEmailNotifier(rec, "ops@example.com").Notify(context.Background(), cancelled())
	assert.EqualError(t, err, "smtp down")
}

func TestMailboxString(t *testing.T) {
	assert.Equal(t, "<ops@example.com>", Mailbox{Address: "ops@example.com"}.String())
	assert.Equal(t, `"Appointment Dashboard" <dash@example.com>`, Mailbox{Address: "dash@example.com"}.withDefaultName().String())
}

func TestStubEmailSender_Send(t *testing.T) {
	assert.NoError(t, NewStubEmailSender(nil).Send(context.Background(), EmailMessage{To: Mailbox{Address: "ops@example.com"}}))
}

func TestNewSendGridSender(t *testing.T) {
	assert.Nil(t, NewSendGridSender("", Mailbox{Address: "dash@example.com"}, nil))
	assert.Nil(t, NewSendGridSender("SG.key", Mailbox{}, nil))

	sender := NewSendGridSender("SG.key", Mailbox{Address: "dash@example.com"}, nil)
	require.NotNil(t, sender)
	assert.Equal(t, defaultFromName, sender.from.Name)
}

func TestSendGridSender_Send(t *testing.T) {
	var payload struct {
		From struct {
			Email string `json:"email"`
			Name  string `json:"name"`
		} `json:"from"`
		Subject          string `json:"subject"`
		Personalizations []struct {
			To []struct {
				Email string `json:"email"`
			} `json:"to"`
		} `json:"personalizations"`
		Content []struct {
			Type string `json:"type"`
		} `json:"content"`
		Categories []string `json:"categories"`
	}
	status := http.StatusAccepted
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/mail/send", r.URL.Path)
		assert.Equal(t, "Bearer SG.key", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &payload)
		w.WriteHeader(status)
		if status >= 400 {
			_, _ = w.Write([]byte(`{"errors":[{"message":"bad"}]}`))
		}
	}))
	defer srv.Close()

	sender := NewSendGridSender("SG.key", Mailbox{Address: "dash@example.com"}, nil)
	require.NotNil(t, sender)
	sender.client.BaseURL = srv.URL + "/v3/mail/send"

	msg, err := renderEmail(Mailbox{Address: "ops@example.com"}, cancelled())
	require.NoError(t, err)
	require.NoError(t, sender.Send(context.Background(), msg))

	assert.Equal(t, "dash@example.com", payload.From.Email)
	assert.Equal(t, defaultFromName, payload.From.Name)
	assert.Equal(t, msg.Subject, payload.Subject)
	require.Len(t, payload.Personalizations, 1)
	require.Len(t, payload.Personalizations[0].To, 1)
	assert.Equal(t, "ops@example.com", payload.Personalizations[0].To[0].Email)
	require.Len(t, payload.Content, 2)
	assert.Equal(t, "text/plain", payload.Content[0].Type)
	assert.Equal(t, []string{"appointment-dashboard", "cancelled"}, payload.Categories)

	status = http.StatusBadRequest
	assert.Error(t, sender.Send(context.Background(), msg))
}

func TestSendGridSender_NilClient(t *testing.T) {
	err := (&SendGridSender{}).Send(context.Background(), EmailMessage{})
	assert.Error(t, err)
}

type fakeSES struct {
	input *sesv2.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(_ context.Context, params *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSESSender(t *testing.T) {
	assert.Nil(t, NewSESSender(&fakeSES{}, Mailbox{}, nil))
	assert.Nil(t, NewSESSender(nil, Mailbox{Address: "dash@example.com"}, nil))

	api := &fakeSES{}
	sender := NewSESSender(api, Mailbox{Name: "Clinic Dash", Address: "dash@example.com"}, nil)
	require.NotNil(t, sender)

	msg, err := renderEmail(Mailbox{Address: "ops@example.com"}, cancelled())
	require.NoError(t, err)
	require.NoError(t, sender.Send(context.Background(), msg))

	in := api.input
	assert.Equal(t, `"Clinic Dash" <dash@example.com>`, aws.ToString(in.FromEmailAddress))
	assert.Equal(t, []string{"<ops@example.com>"}, in.Destination.ToAddresses)
	assert.Equal(t, msg.Subject, aws.ToString(in.Content.Simple.Subject.Data))
	assert.NotNil(t, in.Content.Simple.Body.Html)
	assert.Equal(t, "UTF-8", aws.ToString(in.Content.Simple.Body.Text.Charset))
	require.Len(t, in.EmailTags, 1)
	assert.Equal(t, "cancelled", aws.ToString(in.EmailTags[0].Value))

	api.err = errors.New("throttled")
	err = sender.Send(context.Background(), EmailMessage{To: Mailbox{Address: "ops@example.com"}})
	assert.ErrorContains(t, err, "throttled")
	assert.Empty(t, api.input.EmailTags)
}
