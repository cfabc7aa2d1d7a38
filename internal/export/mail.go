// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package export

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	mail "github.com/wneessen/go-mail"
)

// GeoJSONContentType is the registered media type for GeoJSON (RFC 7946).
const GeoJSONContentType = "application/geo+json"

// Message holds the envelope and text of outgoing export mails.
type Message struct {
	From    string
	To      []string
	Subject string
	Body    string
}

// newMsg builds a mail with a plain text body and the export attached.
// Empty From or To are left out so drafts can still be written.
func newMsg(msg Message, attachmentName string, attachment []byte, now time.Time) (*mail.Msg, error) {
	m := mail.NewMsg()
	if msg.From != "" {
		if err := m.From(msg.From); err != nil {
			return nil, fmt.Errorf("from address: %w", err)
		}
	}
	if len(msg.To) > 0 {
		if err := m.To(msg.To...); err != nil {
			return nil, fmt.Errorf("to address: %w", err)
		}
	}
	m.Subject(msg.Subject)
	m.SetDateWithValue(now)
	m.SetMessageID()
	m.SetBodyString(mail.TypeTextPlain, msg.Body)

	err := m.AttachReader(attachmentName, bytes.NewReader(attachment),
		mail.WithFileContentType(mail.ContentType(GeoJSONContentType)))
	if err != nil {
		return nil, fmt.Errorf("attach %s: %w", attachmentName, err)
	}
	return m, nil
}

// readAttachment loads the file at path and builds the mail around it.
func readAttachment(msg Message, path string, now time.Time) (*mail.Msg, error) {
	attachment, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read attachment: %w", err)
	}
	m, err := newMsg(msg, filepath.Base(path), attachment, now)
	if err != nil {
		return nil, fmt.Errorf("build message: %w", err)
	}
	return m, nil
}

// SMTPComposer sends the export straight away over SMTP.
type SMTPComposer struct {
	Host     string
	Port     int
	Username string // empty disables SMTP AUTH
	Password string
	Message  Message

	// send is replaced in tests.
	send func(ctx context.Context, m *mail.Msg) error
}

// NewSMTPComposer returns a composer that sends through host:port.
func NewSMTPComposer(host string, port int, username, password string, msg Message) *SMTPComposer {
	c := &SMTPComposer{Host: host, Port: port, Username: username, Password: password, Message: msg}
	c.send = c.dialAndSend
	return c
}

// ComposeWithAttachment sends the file at path. A context that ends
// before the server accepted the mail counts as the user backing out.
func (c *SMTPComposer) ComposeWithAttachment(ctx context.Context, path string) (Outcome, error) {
	if ctx.Err() != nil {
		return OutcomeCancelled, nil
	}

	m, err := readAttachment(c.Message, path, time.Now())
	if err != nil {
		return OutcomeNone, err
	}

	if err := c.send(ctx, m); err != nil {
		if ctx.Err() != nil {
			return OutcomeCancelled, nil
		}
		return OutcomeNone, fmt.Errorf("smtp send via %s:%d: %w", c.Host, c.Port, err)
	}
	return OutcomeSent, nil
}

func (c *SMTPComposer) dialAndSend(ctx context.Context, m *mail.Msg) error {
	opts := []mail.Option{
		mail.WithPort(c.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if c.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(c.Username),
			mail.WithPassword(c.Password),
		)
	}

	client, err := mail.NewClient(c.Host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	return client.DialAndSendWithContext(ctx, m)
}

// OutboxComposer saves the message as an .eml file for later sending.
type OutboxComposer struct {
	Dir     string
	Message Message
}

// ComposeWithAttachment writes the message into the outbox directory.
func (c *OutboxComposer) ComposeWithAttachment(ctx context.Context, path string) (Outcome, error) {
	if ctx.Err() != nil {
		return OutcomeCancelled, nil
	}

	now := time.Now()
	m, err := readAttachment(c.Message, path, now)
	if err != nil {
		return OutcomeNone, err
	}

	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return OutcomeNone, fmt.Errorf("create outbox %s: %w", c.Dir, err)
	}
	name := fmt.Sprintf("%s-%s.eml", now.UTC().Format("20060102T150405Z"), uuid.NewString()[:8])
	f, err := os.Create(filepath.Join(c.Dir, name))
	if err != nil {
		return OutcomeNone, fmt.Errorf("create outbox message: %w", err)
	}
	if _, err := m.WriteTo(f); err != nil {
		f.Close()
		return OutcomeNone, fmt.Errorf("write outbox message: %w", err)
	}
	if err := f.Close(); err != nil {
		return OutcomeNone, fmt.Errorf("write outbox message: %w", err)
	}
	return OutcomeSaved, nil
}
