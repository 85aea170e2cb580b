package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

// sendMailHook allows tests to override SMTP sending behavior.
var sendMailHook = smtp.SendMail

// Email sends notifications via SMTP.
type Email struct {
	Host, User, Pass string
	Port             int
	To               []string
}

// Name returns the notifier backend name.
func (e *Email) Name() string { return "Email" }

// Send mails the event to every recipient. SMTP has no context support, so
// cancellation is only checked before dialing.
func (e *Email) Send(ctx context.Context, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	addr := fmt.Sprintf("%s:%d", e.Host, e.Port)
	var auth smtp.Auth
	if e.User != "" {
		auth = smtp.PlainAuth("", e.User, e.Pass, e.Host)
	}
	from := e.User
	if from == "" {
		from = "quotesync@" + e.Host
	}
	var b strings.Builder
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(e.To, ","))
	fmt.Fprintf(&b, "Subject: [quotesync] %s\r\n", ev.Title)
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	fmt.Fprintf(&b, "%s\r\n\r\nSupplier: %s (%s)\r\nQuote: %s\r\n", ev.Message, ev.SupplierName, ev.SupplierID, ev.QuoteID)
	return sendMailHook(addr, auth, from, e.To, []byte(b.String()))
}
