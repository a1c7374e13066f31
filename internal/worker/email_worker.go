package worker

// email_worker.go
// Sends the shift closure report (PDF attached) to the configured recipients.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

// EmailJobPayload is the job envelope sent to QueueEmail.
type EmailJobPayload struct {
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
	PDFPath string   `json:"pdf_path"`
}

// CierreMailer is satisfied by *infra.Mailer.
type CierreMailer interface {
	Enabled() bool
	SendCierre(to []string, subject, body, pdfPath string) error
}

type EmailWorker struct {
	mailer CierreMailer
}

func NewEmailWorker(mailer CierreMailer) *EmailWorker {
	return &EmailWorker{mailer: mailer}
}

// Process sends one closure email.
func (w *EmailWorker) Process(_ context.Context, raw json.RawMessage) error {
	var payload EmailJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("email_worker: invalid payload: %w", err)
	}
	if len(payload.To) == 0 {
		log.Warn().Str("subject", payload.Subject).Msg("email_worker: no recipients, skipping")
		return nil
	}
	if w.mailer == nil || !w.mailer.Enabled() {
		return errors.New("email_worker: SMTP not configured")
	}

	if err := w.mailer.SendCierre(payload.To, payload.Subject, payload.Body, payload.PDFPath); err != nil {
		return fmt.Errorf("email_worker: send: %w", err)
	}
	log.Info().Strs("to", payload.To).Str("subject", payload.Subject).Msg("email_worker: closure report sent")
	return nil
}
