package labels

import (
	"context"
	"time"

	"github.com/BearBump/LabelBox/internal/models"
)

// MessageSource tags every message this service writes to an event log.
const MessageSource = "GLSTransport"

type MessageLog interface {
	PostEventMessage(ctx context.Context, eventID models.ID, msg models.EventMessage) error
}

type Notifier struct {
	log MessageLog
	now func() time.Time
}

func NewNotifier(log MessageLog, now func() time.Time) *Notifier {
	if now == nil {
		now = time.Now
	}
	return &Notifier{log: log, now: now}
}

// Notify appends a message to the event log and waits for the write.
func (n *Notifier) Notify(ctx context.Context, eventID models.ID, severity, text string) error {
	msg := models.EventMessage{
		Time:        n.now().UnixMilli(),
		Source:      MessageSource,
		MessageType: severity,
		MessageText: text,
	}
	if err := n.log.PostEventMessage(ctx, eventID, msg); err != nil {
		return &NotificationFailure{EventID: eventID, Err: err}
	}
	return nil
}
