package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/invictusops/invictus/app/models"
	"github.com/invictusops/invictus/pkg/docstore"
	"github.com/invictusops/invictus/pkg/metrics"
)

// NotificationService owns the per-user mailboxes in the notifications
// collection. A mailbox document has the user's id and a messages array.
type NotificationService struct {
	mailboxes docstore.Collection
}

func NewNotificationService(store docstore.Store) *NotificationService {
	return &NotificationService{mailboxes: store.Collection(models.CollectionNotifications)}
}

// Notify appends message to the recipient's mailbox, creating it if absent.
func (s *NotificationService) Notify(ctx context.Context, recipientID, message string) error {
	defer metrics.ObserveStoreOp(models.CollectionNotifications, "array_union", time.Now())

	if err := s.mailboxes.ArrayUnion(ctx, recipientID, "messages", message); err != nil {
		return fmt.Errorf("notifications: notify %s: %w", recipientID, err)
	}
	metrics.NotificationsQueued.Inc()
	return nil
}

// Append implements notification.Mailbox.
func (s *NotificationService) Append(ctx context.Context, recipientID, message string) error {
	return s.Notify(ctx, recipientID, message)
}

// Drain reads and deletes the mailbox in one step. Of two sessions draining
// at once only one gets the messages. No mailbox means no messages.
func (s *NotificationService) Drain(ctx context.Context, userID string) ([]string, error) {
	defer metrics.ObserveStoreOp(models.CollectionNotifications, "take_and_delete", time.Now())

	doc, err := s.mailboxes.TakeAndDelete(ctx, userID)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("notifications: drain %s: %w", userID, err)
	}

	var box models.Mailbox
	if err := docstore.Decode(doc, &box); err != nil {
		return nil, err
	}
	metrics.NotificationsDelivered.Add(float64(len(box.Messages)))
	return box.Messages, nil
}

// HasPending reports whether snap holds a non-empty mailbox for userID.
func HasPending(snap docstore.Snapshot, userID string) bool {
	for _, d := range snap.Docs {
		if d.ID != userID {
			continue
		}
		msgs, _ := d.Fields["messages"].([]any)
		return len(msgs) > 0
	}
	return false
}
