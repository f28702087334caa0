package invite

import (
	"context"
	"log"
)

// Mailer dispatches transactional mail. The service renders nothing; it
// hands the template id and variables to whatever is wired in.
type Mailer interface {
	Send(ctx context.Context, templateID, recipient string, vars map[string]string) error
}

// LogMailer writes would-be mail to the process log. It is the default in
// dev and the only implementation shipped in-process.
type LogMailer struct{}

func (LogMailer) Send(_ context.Context, templateID, recipient string, vars map[string]string) error {
	log.Printf("mail %s -> %s %v", templateID, recipient, vars)
	return nil
}
