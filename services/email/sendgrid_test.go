package emailsvc

import (
	"encoding/json"
	"net/http"
	"net/mail"
	"testing"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetops/suivi/core"
)

type recordingLogger struct {
	core.NopLogger
	errors []string
}

func (l *recordingLogger) Error(msg string, _ ...interface{}) {
	l.errors = append(l.errors, msg)
}

type fakeAPI struct {
	statuses []int
	err      error
	requests []rest.Request
}

func (f *fakeAPI) deliver(req rest.Request) (*rest.Response, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	status := f.statuses[0]
	if len(f.statuses) > 1 {
		f.statuses = f.statuses[1:]
	}
	return &rest.Response{StatusCode: status, Body: http.StatusText(status)}, nil
}

func newTestSendgrid(api *fakeAPI, logger core.Logger) *sendgridService {
	conf := core.NewTestConfig()
	conf.SendgridAPIKey = "sg-key"
	svc := newSendgridService(conf, logger, api.deliver)
	svc.backoff = 0
	return svc
}

func resetMessage() core.EmailMessage {
	return core.EmailMessage{
		To:           []mail.Address{{Name: "Marie Curie", Address: "marie@example.com"}},
		Bcc:          []mail.Address{{Address: "audit@example.com"}},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TextContent:  "reset it",
		HTMLContent:  "<p>reset it</p>",
	}
}

func Test_sendgridService_prepare(t *testing.T) {
	svc := newTestSendgrid(&fakeAPI{}, core.NopLogger{})
	m := svc.prepare(resetMessage())

	require.Len(t, m.Personalizations, 1)
	p := m.Personalizations[0]
	assert.Equal(t, "[Suivi Conducteurs] Password Reset", p.Subject)
	if assert.Len(t, p.To, 1) {
		assert.Equal(t, "marie@example.com", p.To[0].Address)
	}
	assert.Empty(t, p.CC)
	assert.Len(t, p.BCC, 1)
	assert.Equal(t, "noreply@localhost", m.From.Address)
	if assert.Len(t, m.Content, 2) {
		assert.Equal(t, "text/plain", m.Content[0].Type)
		assert.Equal(t, "text/html", m.Content[1].Type)
	}
	assert.Equal(t, []string{"password_reset"}, m.Categories)

	plain := resetMessage()
	plain.HTMLContent, plain.TemplateName = "", ""
	m = svc.prepare(plain)
	assert.Len(t, m.Content, 1)
	assert.Empty(t, m.Categories)
}

func Test_sendgridService_send(t *testing.T) {
	tests := []struct {
		name      string
		api       *fakeAPI
		wantErr   string
		wantCalls int
	}{
		{name: "accepted", api: &fakeAPI{statuses: []int{http.StatusAccepted}}, wantCalls: 1},
		{name: "retried then accepted", api: &fakeAPI{statuses: []int{http.StatusTooManyRequests, http.StatusBadGateway, http.StatusAccepted}}, wantCalls: 3},
		{name: "bad request not retried", api: &fakeAPI{statuses: []int{http.StatusBadRequest}}, wantErr: "sending email - status: 400 - body: Bad Request", wantCalls: 1},
		{name: "gives up", api: &fakeAPI{statuses: []int{http.StatusServiceUnavailable}}, wantErr: "sending email - status: 503 - body: Service Unavailable", wantCalls: maxSendAttempts},
		{name: "transport error", api: &fakeAPI{err: errors.New("dial tcp: timeout")}, wantErr: "sending email: dial tcp: timeout", wantCalls: maxSendAttempts},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := &recordingLogger{}
			svc := newTestSendgrid(tt.api, logger)

			err := svc.send(resetMessage())
			assert.Len(t, tt.api.requests, tt.wantCalls)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				assert.Empty(t, logger.errors)
			} else {
				assert.EqualError(t, err, tt.wantErr)
				assert.Equal(t, []string{tt.wantErr}, logger.errors)
			}

			req := tt.api.requests[0]
			assert.Equal(t, rest.Post, req.Method)
			assert.Equal(t, sendgridHost+sendgridEndpoint, req.BaseURL)
			assert.Equal(t, "Bearer sg-key", req.Headers["Authorization"])
			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(req.Body, &body))
			assert.Contains(t, body, "personalizations")
		})
	}
}
