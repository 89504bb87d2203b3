package email

import (
	"errors"
	"fmt"
	"net/smtp"

	"inkwell/common"
)

type EmailService struct {
	host     string
	port     string
	user     string
	password string
	from     string
}

func NewEmailService(cfg *common.Config) *EmailService {
	return &EmailService{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		user:     cfg.SMTPUser,
		password: cfg.SMTPPassword,
		from:     cfg.SMTPFrom,
	}
}

// Send delivers a plain-text message to a single recipient.
func (e *EmailService) Send(to, subject, body string) error {
	if e.host == "" {
		return errors.New("smtp host not configured")
	}

	message := fmt.Sprintf("From: %s\r\n"+
		"To: %s\r\n"+
		"Subject: %s\r\n"+
		"\r\n"+
		"%s\r\n", e.from, to, subject, body)

	var auth smtp.Auth
	if e.user != "" {
		auth = smtp.PlainAuth("", e.user, e.password, e.host)
	}
	addr := fmt.Sprintf("%s:%s", e.host, e.port)

	if err := smtp.SendMail(addr, auth, e.from, []string{to}, []byte(message)); err != nil {
		return fmt.Errorf("send email to %s: %w", to, err)
	}
	return nil
}

// SendOTP mails a one-time passcode.
func (e *EmailService) SendOTP(to, code string) error {
	return e.Send(to, OTPSubject, OTPBody(code))
}

const OTPSubject = "Your OTP Code"

func OTPBody(code string) string {
	return fmt.Sprintf("Your OTP is %s", code)
}
