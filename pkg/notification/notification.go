// Package notification routes a notification to its delivery channels.
//
// Define a notification:
//
//	type TaskAssigned struct{ Recipient, Text string }
//	func (n TaskAssigned) Via() []string { return []string{notification.ChannelMailbox} }
//	func (n TaskAssigned) ToMailbox() notification.MailboxData {
//	    return notification.MailboxData{Recipient: n.Recipient, Message: n.Text}
//	}
//
// Send:
//
//	errs := dispatcher.Send(ctx, TaskAssigned{...})
package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/invictusops/invictus/pkg/logger"
	"github.com/invictusops/invictus/pkg/reqid"
	"github.com/invictusops/invictus/pkg/workerpool"
)

const (
	ChannelMailbox = "mailbox"
	ChannelWebhook = "webhook"
)

// MailboxData is a message queued for one user.
type MailboxData struct {
	Recipient string
	Message   string
}

// WebhookData is a JSON payload POSTed to a URL.
type WebhookData struct {
	URL     string
	Payload interface{}
	Headers map[string]string
}

// Notification is anything that names its channels.
type Notification interface {
	Via() []string
}

type Mailboxable interface {
	ToMailbox() MailboxData
}

type Webhookable interface {
	ToWebhook() WebhookData
}

// Mailbox appends a message to a user's pending list.
type Mailbox interface {
	Append(ctx context.Context, recipientID, message string) error
}

// Dispatcher delivers notifications. The webhook channel is skipped when no
// URL is configured on either the dispatcher or the notification.
type Dispatcher struct {
	mailbox    Mailbox
	webhookURL string
	client     *http.Client
	pool       *workerpool.Pool
}

func NewDispatcher(mailbox Mailbox, webhookURL string) *Dispatcher {
	return &Dispatcher{
		mailbox:    mailbox,
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// WithPool moves webhook delivery onto pool. Send then reports only a
// rejected submission for that channel; delivery failures are logged.
func (d *Dispatcher) WithPool(pool *workerpool.Pool) *Dispatcher {
	d.pool = pool
	return d
}

// Send delivers n on every channel it names and collects the failures.
func (d *Dispatcher) Send(ctx context.Context, n Notification) []error {
	var errs []error
	for _, channel := range n.Via() {
		if err := d.dispatch(ctx, channel, n); err != nil {
			logger.WithCtx(ctx).Error("notification: channel failed", "channel", channel, "error", err)
			errs = append(errs, err)
		}
	}
	return errs
}

func (d *Dispatcher) dispatch(ctx context.Context, channel string, n Notification) error {
	switch channel {
	case ChannelMailbox:
		m, ok := n.(Mailboxable)
		if !ok {
			return fmt.Errorf("notification: %T does not implement Mailboxable", n)
		}
		data := m.ToMailbox()
		if data.Recipient == "" {
			return fmt.Errorf("notification: mailbox recipient is empty")
		}
		return d.mailbox.Append(ctx, data.Recipient, data.Message)

	case ChannelWebhook:
		wh, ok := n.(Webhookable)
		if !ok {
			return fmt.Errorf("notification: %T does not implement Webhookable", n)
		}
		data := wh.ToWebhook()
		if data.URL == "" {
			data.URL = d.webhookURL
		}
		if data.URL == "" {
			return nil
		}
		if id := reqid.FromCtx(ctx); id != "" {
			headers := make(map[string]string, len(data.Headers)+1)
			for k, v := range data.Headers {
				headers[k] = v
			}
			headers[reqid.Header] = id
			data.Headers = headers
		}
		if d.pool == nil {
			return d.sendWebhook(ctx, data)
		}
		log := logger.WithCtx(ctx)
		return d.pool.Submit(func(ctx context.Context) {
			if err := d.sendWebhook(ctx, data); err != nil {
				log.Error("notification: webhook failed", "url", data.URL, "error", err)
			}
		})

	default:
		return fmt.Errorf("notification: unknown channel %q", channel)
	}
}

func (d *Dispatcher) sendWebhook(ctx context.Context, data WebhookData) error {
	raw, err := json.Marshal(data.Payload)
	if err != nil {
		return fmt.Errorf("notification: webhook marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, data.URL, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("notification: webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range data.Headers {
		req.Header.Set(k, v)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("notification: webhook send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("notification: webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}
