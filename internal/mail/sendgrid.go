package mail

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

const (
	sendGridHost     = "https://api.sendgrid.com"
	sendGridEndpoint = "/v3/mail/send"
)

// SendGridMailer はSendGrid v3 APIでメールを送信するMailer。
type SendGridMailer struct {
	key        string
	host       string
	from       *sgmail.Email
	subjPrefix string
}

// NewSendGridMailer はSendGridMailerを生成する。件名には "[fromName] " が付与される。
func NewSendGridMailer(apiKey, fromName, fromAddress string) *SendGridMailer {
	return &SendGridMailer{
		key:        apiKey,
		host:       sendGridHost,
		from:       sgmail.NewEmail(fromName, fromAddress),
		subjPrefix: "[" + fromName + "] ",
	}
}

// WithHost は送信先ホストを差し替えたコピーを返す。テストでhttptestサーバーを指定するために使用する。
func (m *SendGridMailer) WithHost(host string) *SendGridMailer {
	c := *m
	c.host = host
	return &c
}

// Send はメールを同期的に送信する。4xx/5xx応答はエラーとして返す。
func (m *SendGridMailer) Send(ctx context.Context, msg Message) error {
	p := sgmail.NewPersonalization()
	p.Subject = m.subjPrefix + msg.Subject
	p.AddTos(sgmail.NewEmail(msg.ToName, msg.ToAddress))

	v3 := sgmail.NewV3Mail()
	v3.SetFrom(m.from)
	v3.AddPersonalizations(p)
	v3.AddContent(sgmail.NewContent("text/plain", msg.Text))

	req := sendgrid.GetRequest(m.key, sendGridEndpoint, m.host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(v3)

	res, err := sendgrid.MakeRequestWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to send mail via sendgrid: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return &StatusError{StatusCode: res.StatusCode, Body: res.Body}
	}
	return nil
}

// StatusError はメール送信APIがエラー応答を返したことを表す。
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("sendgrid returned status %d: %s", e.StatusCode, e.Body)
}

var _ Mailer = (*SendGridMailer)(nil)
