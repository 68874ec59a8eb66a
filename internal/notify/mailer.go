package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/gomail.v2"
)

// Message is one outgoing email with an optional attachment.
type Message struct {
	To             string
	Subject        string
	HTML           string
	AttachmentName string
	Attachment     []byte
}

// Sender delivers a Message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPConfig mirrors the mail section of the service configuration.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	SSL      bool
}

// NewSender returns an SMTP sender, or a noop sender when no host is configured.
func NewSender(cfg SMTPConfig) Sender {
	if strings.TrimSpace(cfg.Host) == "" {
		return noopSender{}
	}
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	d.SSL = cfg.SSL
	from := cfg.From
	if from == "" {
		from = cfg.Username
	}
	return &smtpSender{dialer: d, from: from}
}

type smtpSender struct {
	dialer *gomail.Dialer
	from   string
}

func (s *smtpSender) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return errors.New("recipient is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", msg.HTML)
	if len(msg.Attachment) > 0 {
		data := msg.Attachment
		m.Attach(msg.AttachmentName,
			gomail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(data)
				return err
			}),
			gomail.SetHeader(map[string][]string{"Content-Type": {"application/pdf"}}),
		)
	}

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send mail to %s: %w", msg.To, err)
	}
	return nil
}

type noopSender struct{}

func (noopSender) Send(context.Context, Message) error { return nil }

var noticeTemplate = template.Must(template.New("notice").Parse(`<div style="font-family: Arial, sans-serif; color: #333; max-width: 600px; margin: 0 auto; border: 1px solid #e0e0e0; border-radius: 8px; overflow: hidden;">
  <div style="background-color: #1a202c; padding: 20px; text-align: center;">
    <h2 style="color: #fff; margin: 0;">OFFICIAL TRAFFIC VIOLATION NOTICE</h2>
    <p style="color: #cbd5e1; margin: 5px 0 0;">Ministry of Road Transport &amp; Highways</p>
  </div>
  <div style="padding: 30px; background-color: #fff;">
    <p><strong>Dear Vehicle Owner,</strong></p>
    <p>This is an official notification regarding a traffic violation recorded against your vehicle.</p>
    <div style="background-color: #f8fafc; padding: 15px; border-left: 4px solid #be123c; margin: 20px 0;">
      <p style="margin: 5px 0;"><strong>Vehicle No:</strong> {{.Plate}}</p>
      <p style="margin: 5px 0;"><strong>Challan ID:</strong> {{.ChallanID}}</p>
      <p style="margin: 5px 0;"><strong>Violation:</strong> {{.Violation}}</p>
      <p style="margin: 5px 0;"><strong>Fine Amount:</strong> <span style="color: #be123c; font-weight: bold;">&#8377;{{.Amount}}</span></p>
    </div>
    <p>A digital copy of the challan is attached to this email. Please review the details carefully.</p>
    {{if .PaymentURL}}<div style="text-align: center; margin: 30px 0;">
      <a href="{{.PaymentURL}}" style="background-color: #be123c; color: #fff; padding: 12px 25px; text-decoration: none; border-radius: 5px; font-weight: bold;">PAY FINE NOW</a>
    </div>{{end}}
    <p style="font-size: 12px; color: #64748b;">Failure to pay the fine within the stipulated time may attract further legal action/late fees.<br>This is a system-generated email.</p>
  </div>
</div>`))

// Notice holds the fields shown in the notification email.
type Notice struct {
	Plate      string
	ChallanID  string
	Violation  string
	Amount     decimal.Decimal
	PaymentURL string
}

func NoticeSubject(plate string) string {
	return fmt.Sprintf("OFFICIAL E-CHALLAN: %s - Action Required", plate)
}

func NoticeHTML(n Notice) (string, error) {
	var buf bytes.Buffer
	err := noticeTemplate.Execute(&buf, struct {
		Notice
		Amount string
	}{Notice: n, Amount: n.Amount.StringFixed(2)})
	if err != nil {
		return "", fmt.Errorf("render notice: %w", err)
	}
	return buf.String(), nil
}
