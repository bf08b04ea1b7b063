package app

import (
	"context"
	"fmt"

	"ivisionary/pkg/domain"
)

// Dashboard summarizes the console's default panel.
func (a *App) Dashboard(ctx context.Context) (domain.DashboardSummary, error) {
	users, err := a.store.UserCount(ctx)
	if err != nil {
		return domain.DashboardSummary{}, fmt.Errorf("count users: %w", err)
	}
	videos, err := a.store.ListVideos(ctx, domain.VideoFilter{})
	if err != nil {
		return domain.DashboardSummary{}, fmt.Errorf("list videos: %w", err)
	}
	cats, err := a.store.ListCategories(ctx)
	if err != nil {
		return domain.DashboardSummary{}, fmt.Errorf("list categories: %w", err)
	}
	pending, err := a.PendingReports(ctx)
	if err != nil {
		return domain.DashboardSummary{}, err
	}
	unread, err := a.UnreadNotificationCount(ctx)
	if err != nil {
		return domain.DashboardSummary{}, err
	}
	suspicious := make(map[string]struct{})
	for _, s := range a.Security().Suspicious {
		suspicious[s.IP] = struct{}{}
	}
	return domain.DashboardSummary{
		Users:               users,
		Videos:              len(videos),
		Categories:          len(cats),
		PendingReports:      len(pending),
		UnreadNotifications: unread,
		AuditEntries:        a.audit.Len(),
		SuspiciousIPs:       len(suspicious),
	}, nil
}
