package publisher

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/jmadden/news-digest/internal/config"
	"github.com/jmadden/news-digest/internal/render"
	"github.com/jmadden/news-digest/internal/runner"
)

// EmailPublisher sends the digest via SMTP as a multipart/alternative
// message with a plain-text part and an HTML part.
type EmailPublisher struct {
	host     string
	port     int
	username string
	password string
	from     string
	to       []string
	send     func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewEmailPublisher(cfg config.EmailConfig) *EmailPublisher {
	return &EmailPublisher{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		username: cfg.Username,
		password: cfg.Password,
		from:     cfg.From,
		to:       cfg.To,
		send:     smtp.SendMail,
	}
}

func (p *EmailPublisher) Name() string {
	return "email"
}

func (p *EmailPublisher) Publish(_ context.Context, report *runner.Report) error {
	subject := "Daily News Digest - " + report.StartedAt.Format("January 2, 2006")
	msg := buildMessage(p.from, p.to, subject, render.Markdown(report), render.HTML(report))

	addr := fmt.Sprintf("%s:%d", p.host, p.port)
	auth := smtp.PlainAuth("", p.username, p.password, p.host)

	if err := p.send(addr, auth, p.from, p.to, msg); err != nil {
		return fmt.Errorf("email: failed to send: %w", err)
	}
	return nil
}

const mimeBoundary = "digest-alternative-boundary"

// buildMessage assembles a multipart/alternative MIME message. The plain
// part carries the Markdown digest for clients that refuse HTML.
func buildMessage(from string, to []string, subject, plainBody, htmlBody string) []byte {
	var sb strings.Builder
	sb.WriteString("From: " + from + "\r\n")
	sb.WriteString("To: " + strings.Join(to, ",") + "\r\n")
	sb.WriteString("Subject: " + subject + "\r\n")
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString(`Content-Type: multipart/alternative; boundary="` + mimeBoundary + `"` + "\r\n")
	sb.WriteString("\r\n")

	sb.WriteString("--" + mimeBoundary + "\r\n")
	sb.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n\r\n")
	sb.WriteString(plainBody)
	sb.WriteString("\r\n")

	sb.WriteString("--" + mimeBoundary + "\r\n")
	sb.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	sb.WriteString(htmlBody)
	sb.WriteString("\r\n")

	sb.WriteString("--" + mimeBoundary + "--\r\n")
	return []byte(sb.String())
}
