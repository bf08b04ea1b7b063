package app

import (
	"context"
	"fmt"
	"strings"

	"ivisionary/internal/util"
	"ivisionary/pkg/domain"
)

func (a *App) ListNotifications(ctx context.Context) ([]domain.Notification, error) {
	notes, err := a.store.ListNotifications(ctx)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return notes, nil
}

// AddNotification stores n as unread at the head of the feed.
// High-priority notifications are also logged at warn.
func (a *App) AddNotification(ctx context.Context, n domain.Notification) (domain.Notification, error) {
	n.Type = strings.TrimSpace(n.Type)
	n.Message = strings.TrimSpace(n.Message)
	verr := &ValidationError{}
	if n.Type == "" {
		verr.add("type", "Type is required")
	}
	if n.Message == "" {
		verr.add("message", "Message is required")
	}
	switch n.Priority {
	case "":
		n.Priority = domain.PriorityNormal
	case domain.PriorityLow, domain.PriorityNormal, domain.PriorityHigh:
	default:
		verr.add("priority", "Priority must be low, normal or high")
	}
	if err := verr.err(); err != nil {
		return domain.Notification{}, err
	}
	n.ID = util.NewUUID()
	n.Timestamp = a.now()
	n.Read = false
	if err := a.store.SaveNotification(ctx, n); err != nil {
		return domain.Notification{}, fmt.Errorf("save notification: %w", err)
	}
	if n.Priority == domain.PriorityHigh {
		util.LoggerFromContext(ctx).Warn("high priority notification", "type", n.Type, "message", n.Message, "notification_id", n.ID)
	}
	return n, nil
}

func (a *App) MarkNotificationRead(ctx context.Context, id string) (domain.Notification, error) {
	n, ok, err := a.store.GetNotification(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Notification{}, fmt.Errorf("fetch notification: %w", err)
	}
	if !ok {
		return domain.Notification{}, ErrNotFound
	}
	if n.Read {
		return n, nil
	}
	n.Read = true
	if err := a.store.SaveNotification(ctx, n); err != nil {
		return domain.Notification{}, fmt.Errorf("save notification: %w", err)
	}
	return n, nil
}

// MarkAllNotificationsRead returns how many notifications changed.
func (a *App) MarkAllNotificationsRead(ctx context.Context) (int, error) {
	n, err := a.store.MarkAllNotificationsRead(ctx)
	if err != nil {
		return 0, fmt.Errorf("mark notifications read: %w", err)
	}
	return n, nil
}

func (a *App) UnreadNotificationCount(ctx context.Context) (int, error) {
	notes, err := a.ListNotifications(ctx)
	if err != nil {
		return 0, err
	}
	unread := 0
	for _, n := range notes {
		if !n.Read {
			unread++
		}
	}
	return unread, nil
}
