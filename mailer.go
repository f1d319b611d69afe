package passwordless

import (
	"context"
	"fmt"
	"io"
)

// WriterMailer writes login emails to an io.Writer instead of delivering
// them. Meant for development and examples; production wiring should bring
// a real transport.
type WriterMailer struct {
	Out io.Writer
}

var _ Mailer = (*WriterMailer)(nil)

func (m WriterMailer) SendLoginEmail(_ context.Context, recipient, magicLinkURL, language string) (string, error) {
	fmt.Fprintln(m.Out, "====== SENDING LOGIN EMAIL =======")
	fmt.Fprintf(m.Out, "to: %s (%s)\n", recipient, language)
	fmt.Fprintf(m.Out, "link: %s\n", magicLinkURL)
	return "dev-message", nil
}
