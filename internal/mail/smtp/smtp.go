// Package smtp delivers transactional mail over plain SMTP with optional
// AUTH. Message bodies are minimal text; rich templates live upstream.
package smtp

import (
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"roadbook/internal/platform/config"
)

type Sender struct {
	addr string
	from string
	auth smtp.Auth
}

func NewSender(cfg config.SMTPConfig) *Sender {
	var auth smtp.Auth
	if cfg.Username != "" {
		host := cfg.Addr
		if idx := strings.IndexByte(host, ':'); idx >= 0 {
			host = host[:idx]
		}
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, host)
	}
	return &Sender{addr: cfg.Addr, from: cfg.From, auth: auth}
}

func (s *Sender) Send(to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nDate: %s\r\n\r\n%s\r\n",
		s.from, to, subject, time.Now().Format(time.RFC1123Z), body)
	if err := smtp.SendMail(s.addr, s.auth, s.from, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}
