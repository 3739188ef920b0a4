package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	htmltemplate "html/template"
	"mime/multipart"
	"net/smtp"
	"net/textproto"
	texttemplate "text/template"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/pricewatch/internal/config"
	"github.com/sells-group/pricewatch/internal/model"
	"github.com/sells-group/pricewatch/internal/resilience"
)

const textBody = `The following tracked items changed:
{{range .Events}}
- [{{.Kind}}] {{.ItemName}}
  {{.ItemURL}}
  {{.OldValue}} -> {{.NewValue}}
{{end}}`

const htmlBody = `<html><body>
<h2>Price watch report</h2>
<table border="1" cellpadding="6" cellspacing="0">
<tr><th>Change</th><th>Item</th><th>Old</th><th>New</th></tr>
{{range .Events}}<tr>
<td>{{.Kind}}</td>
<td><a href="{{.ItemURL}}">{{.ItemName}}</a></td>
<td>{{.OldValue}}</td>
<td>{{.NewValue}}</td>
</tr>
{{end}}</table>
</body></html>`

var (
	textTmpl = texttemplate.Must(texttemplate.New("text").Parse(textBody))
	htmlTmpl = htmltemplate.Must(htmltemplate.New("html").Parse(htmlBody))
)

// EmailNotifier sends one multipart/alternative message per cycle over
// implicit TLS (SMTPS). Delivery retries transient failures with backoff.
type EmailNotifier struct {
	cfg   config.SMTPConfig
	retry resilience.RetryConfig
}

// NewEmail creates an EmailNotifier from SMTP settings.
func NewEmail(cfg config.SMTPConfig) *EmailNotifier {
	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("smtp send")
	return &EmailNotifier{cfg: cfg, retry: retry}
}

func (n *EmailNotifier) Notify(ctx context.Context, events []model.ChangeEvent) error {
	if len(events) == 0 {
		return nil
	}
	if !n.cfg.Enabled() {
		zap.L().Warn("notify: smtp not configured, dropping events",
			zap.Int("events", len(events)),
		)
		return nil
	}

	msg, err := n.buildMessage(events)
	if err != nil {
		return err
	}

	err = resilience.Do(ctx, n.retry, func(_ context.Context) error {
		return n.send(msg)
	})
	if err != nil {
		return eris.Wrap(err, "notify: send email")
	}
	zap.L().Info("notify: email sent",
		zap.String("to", n.cfg.To),
		zap.Int("events", len(events)),
	)
	return nil
}

// buildMessage renders the multipart/alternative body: plain text first,
// HTML last so capable clients prefer it.
func (n *EmailNotifier) buildMessage(events []model.ChangeEvent) ([]byte, error) {
	data := struct{ Events []model.ChangeEvent }{Events: events}

	var text, html bytes.Buffer
	if err := textTmpl.Execute(&text, data); err != nil {
		return nil, eris.Wrap(err, "notify: render text body")
	}
	if err := htmlTmpl.Execute(&html, data); err != nil {
		return nil, eris.Wrap(err, "notify: render html body")
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fmt.Fprintf(&buf, "From: %s\r\n", n.cfg.From)
	fmt.Fprintf(&buf, "To: %s\r\n", n.cfg.To)
	fmt.Fprintf(&buf, "Subject: %s\r\n", n.subject(events))
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=%q\r\n", mw.Boundary())
	buf.WriteString("\r\n")

	part, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {"text/plain; charset=utf-8"}})
	if err != nil {
		return nil, eris.Wrap(err, "notify: create text part")
	}
	if _, err := part.Write(text.Bytes()); err != nil {
		return nil, eris.Wrap(err, "notify: write text part")
	}

	part, err = mw.CreatePart(textproto.MIMEHeader{"Content-Type": {"text/html; charset=utf-8"}})
	if err != nil {
		return nil, eris.Wrap(err, "notify: create html part")
	}
	if _, err := part.Write(html.Bytes()); err != nil {
		return nil, eris.Wrap(err, "notify: write html part")
	}

	if err := mw.Close(); err != nil {
		return nil, eris.Wrap(err, "notify: close multipart writer")
	}
	return buf.Bytes(), nil
}

func (n *EmailNotifier) subject(events []model.ChangeEvent) string {
	if len(events) == 1 {
		return fmt.Sprintf("Price watch: %s changed", events[0].ItemName)
	}
	return fmt.Sprintf("Price watch: %d items changed", len(events))
}

// send dials the server with implicit TLS and submits the message. STARTTLS
// upgrade is deliberately not supported; port 465 semantics only.
func (n *EmailNotifier) send(msg []byte) error {
	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)

	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: n.cfg.Host})
	if err != nil {
		return eris.Wrapf(err, "dial %s", addr)
	}

	client, err := smtp.NewClient(conn, n.cfg.Host)
	if err != nil {
		conn.Close()
		return eris.Wrap(err, "smtp handshake")
	}
	defer client.Close()

	auth := smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
	if err := client.Auth(auth); err != nil {
		return eris.Wrap(err, "smtp auth")
	}
	if err := client.Mail(n.cfg.From); err != nil {
		return eris.Wrap(err, "smtp mail from")
	}
	if err := client.Rcpt(n.cfg.To); err != nil {
		return eris.Wrap(err, "smtp rcpt to")
	}

	w, err := client.Data()
	if err != nil {
		return eris.Wrap(err, "smtp data")
	}
	if _, err := w.Write(msg); err != nil {
		return eris.Wrap(err, "smtp write body")
	}
	if err := w.Close(); err != nil {
		return eris.Wrap(err, "smtp close body")
	}
	return client.Quit()
}
