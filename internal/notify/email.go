// Package notify delivers best-effort alerts for freshly persisted signals.
//
// Delivery failures are logged and swallowed: notification must never roll
// back or block persistence.
package notify

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/rs/zerolog"

	"swingscan-go/internal/signal"
)

// Notifier receives a fully populated signal after it has been persisted.
type Notifier interface {
	Notify(sig signal.Signal)
}

// Nop discards every notification.
type Nop struct{}

// Notify implements Notifier.
func (Nop) Notify(signal.Signal) {}

// sender abstracts smtp.SendMail for testing.
type sender func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error

// EmailNotifier sends one plain-text message per signal over SMTP with STARTTLS.
type EmailNotifier struct {
	log  zerolog.Logger
	host string
	port int
	user string
	pass string
	to   string
	send sender
}

// NewEmailNotifier wires an SMTP notifier. Credentials come from the environment.
func NewEmailNotifier(log zerolog.Logger, host string, port int, user, pass, to string) *EmailNotifier {
	return &EmailNotifier{
		log:  log,
		host: host,
		port: port,
		user: user,
		pass: pass,
		to:   to,
		send: smtp.SendMail,
	}
}

// Notify renders and sends the alert, logging failures without propagating them.
func (n *EmailNotifier) Notify(sig signal.Signal) {
	msg := n.render(sig)
	addr := fmt.Sprintf("%s:%d", n.host, n.port)
	auth := smtp.PlainAuth("", n.user, n.pass, n.host)
	if err := n.send(addr, auth, n.user, []string{n.to}, msg); err != nil {
		n.log.Warn().Err(err).Str("symbol", sig.Symbol).Msg("signal alert delivery failed")
		return
	}
	n.log.Info().Str("symbol", sig.Symbol).Str("direction", string(sig.Direction)).Msg("signal alert sent")
}

func (n *EmailNotifier) render(sig signal.Signal) []byte {
	subject := fmt.Sprintf("[Swing Signal] %s | %s | Confidence: %.2f%%", sig.Symbol, sig.Direction, sig.Confidence)

	var body strings.Builder
	body.WriteString("New Swing Signal Detected!\n\n")
	fmt.Fprintf(&body, "Symbol     : %s\n", sig.Symbol)
	fmt.Fprintf(&body, "Direction  : %s\n", sig.Direction)
	fmt.Fprintf(&body, "Entry      : %.4f\n", sig.Entry)
	for i, tp := range sig.TakeProfits {
		fmt.Fprintf(&body, "TP%d        : %.4f\n", i+1, tp)
	}
	fmt.Fprintf(&body, "SL         : %.4f\n", sig.StopLoss)
	fmt.Fprintf(&body, "Confidence : %.2f%%\n", sig.Confidence)
	fmt.Fprintf(&body, "Signal Time: %s\n", sig.SignalTime())
	body.WriteString("\nIndicators:\n")
	fmt.Fprintf(&body, "- EMA Diff  : %.6f\n", sig.EmaDiff)
	fmt.Fprintf(&body, "- RSI       : %.2f\n", sig.RSI)
	fmt.Fprintf(&body, "- MACD Hist : %.6f\n", sig.MACDHist)
	fmt.Fprintf(&body, "- ADX       : %.4f\n", sig.ADX)
	fmt.Fprintf(&body, "- ATR       : %.4f\n", sig.ATR)
	fmt.Fprintf(&body, "- RVOL      : %.2f\n", sig.RVol)

	headers := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n",
		n.user, n.to, subject)
	return []byte(headers + body.String())
}
