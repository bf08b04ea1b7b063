package app

import (
	"context"
	"fmt"
	"strings"

	"ivisionary/internal/util"
	"ivisionary/pkg/auth"
	"ivisionary/pkg/domain"
)

// ReportFilter narrows a report listing. Zero value lists everything.
type ReportFilter struct {
	Status  domain.ReportStatus
	VideoID string
}

func (a *App) ListReports(ctx context.Context, filter ReportFilter) ([]domain.Report, error) {
	reports, err := a.store.ListReports(ctx)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	out := reports[:0]
	for _, r := range reports {
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		if filter.VideoID != "" && r.VideoID != filter.VideoID {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// ReportsByVideo returns the reports filed against videoID.
func (a *App) ReportsByVideo(ctx context.Context, videoID string) ([]domain.Report, error) {
	return a.ListReports(ctx, ReportFilter{VideoID: strings.TrimSpace(videoID)})
}

// PendingReports returns reports not yet reviewed.
func (a *App) PendingReports(ctx context.Context) ([]domain.Report, error) {
	return a.ListReports(ctx, ReportFilter{Status: domain.ReportPending})
}

// AddReport files a pending report against a video.
func (a *App) AddReport(ctx context.Context, videoID, reason string) (domain.Report, error) {
	videoID = strings.TrimSpace(videoID)
	reason = auth.SanitizeText(reason)
	verr := &ValidationError{}
	if videoID == "" {
		verr.add("videoId", "Video is required")
	}
	if reason == "" {
		verr.add("reason", "Reason is required")
	}
	if err := verr.err(); err != nil {
		return domain.Report{}, err
	}
	report := domain.Report{
		ID:        util.NewUUID(),
		VideoID:   videoID,
		Reason:    reason,
		Status:    domain.ReportPending,
		Timestamp: a.now(),
	}
	if err := a.store.SaveReport(ctx, report); err != nil {
		return domain.Report{}, fmt.Errorf("save report: %w", err)
	}
	a.notify(ctx, "report", "New content report for video "+videoID, domain.PriorityNormal, map[string]any{
		"reportId": report.ID,
		"videoId":  videoID,
	})
	return report, nil
}

func (a *App) UpdateReportStatus(ctx context.Context, id string, status domain.ReportStatus) (domain.Report, error) {
	if !status.Valid() {
		verr := &ValidationError{}
		verr.add("status", "Status must be pending or reviewed")
		return domain.Report{}, verr
	}
	report, ok, err := a.store.GetReport(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Report{}, fmt.Errorf("fetch report: %w", err)
	}
	if !ok {
		return domain.Report{}, ErrNotFound
	}
	report.Status = status
	if err := a.store.SaveReport(ctx, report); err != nil {
		return domain.Report{}, fmt.Errorf("save report: %w", err)
	}
	return report, nil
}

func (a *App) DeleteReport(ctx context.Context, id string) error {
	ok, err := a.store.DeleteReport(ctx, strings.TrimSpace(id))
	if err != nil {
		return fmt.Errorf("delete report: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}
