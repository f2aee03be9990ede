package effectors

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
)

// EmailConfig holds SMTP settings
type EmailConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	To       string
}

// EmailNotifier sends notifications as plain-text mail. smtp.SendMail
// upgrades to STARTTLS when the server offers it.
type EmailNotifier struct {
	cfg      EmailConfig
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmailNotifier validates cfg and creates the notifier
func NewEmailNotifier(cfg EmailConfig) (*EmailNotifier, error) {
	if cfg.Host == "" || cfg.User == "" || cfg.Password == "" {
		return nil, fmt.Errorf("incomplete email configuration")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.To == "" {
		cfg.To = cfg.User
	}
	return &EmailNotifier{cfg: cfg, sendMail: smtp.SendMail}, nil
}

// Notify mails title as subject and message as body
func (n *EmailNotifier) Notify(ctx context.Context, title, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	addr := net.JoinHostPort(n.cfg.Host, strconv.Itoa(n.cfg.Port))
	auth := smtp.PlainAuth("", n.cfg.User, n.cfg.Password, n.cfg.Host)
	if err := n.sendMail(addr, auth, n.cfg.User, []string{n.cfg.To}, buildMessage(n.cfg.User, n.cfg.To, title, message)); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

func buildMessage(from, to, subject, body string) []byte {
	// header injection guard
	subject = strings.NewReplacer("\r", " ", "\n", " ").Replace(subject)

	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	b.WriteString("\r\n")
	return []byte(b.String())
}
