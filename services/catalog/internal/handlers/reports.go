package handlers

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/example/animestream/internal/platform/analytics"
	"github.com/example/animestream/internal/platform/api"
	"github.com/example/animestream/internal/platform/auth"
	"github.com/example/animestream/internal/platform/httpserver"
	"github.com/example/animestream/services/catalog/internal/forms"
	"github.com/example/animestream/services/catalog/internal/pages"
	"github.com/example/animestream/services/catalog/internal/reports"
)

// SubmitReport handles POST /v1/reports. Anonymous viewers may report.
func SubmitReport(issues *reports.Service, events *analytics.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		var in reports.Input
		if !decodeJSON(w, r, rid, &in) {
			return
		}
		if err := forms.Validate(in); err != nil {
			api.WriteStatusError(w, rid, err)
			return
		}
		var who reports.Reporter
		if s, ok := auth.SessionFromContext(r.Context()); ok {
			who = reports.Reporter{UserID: s.UserID, DisplayName: s.DisplayName}
		}
		rep, err := issues.Submit(r.Context(), who, in)
		if err != nil {
			api.WriteStatusError(w, rid, err)
			return
		}
		events.Publish(analytics.ReportFiled, who.UserID, map[string]any{
			"anime_id":   rep.AnimeID,
			"issue_type": string(rep.IssueType),
		})
		api.WriteJSON(w, http.StatusCreated, rep)
	}
}

// ListReports handles GET /v1/admin/reports?status=
func ListReports(issues *reports.Service, rd Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := strings.TrimSpace(r.URL.Query().Get("status"))
		var q url.Values
		if status != "" {
			q = url.Values{"status": {status}}
		}
		rd.Serve(w, r, pageKey(pages.AdminReports, "", q), func(ctx context.Context) (any, error) {
			list, err := issues.List(ctx, status)
			if err != nil {
				return nil, err
			}
			return map[string]any{"reports": list}, nil
		})
	}
}

// SetReportStatus handles PATCH /v1/admin/reports/{report_id}
func SetReportStatus(issues *reports.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		reportID, ok := pathParam(w, r, rid, "report_id")
		if !ok {
			return
		}
		var change reports.StatusChange
		if !decodeJSON(w, r, rid, &change) {
			return
		}
		if err := forms.Validate(change); err != nil {
			api.WriteStatusError(w, rid, err)
			return
		}
		rep, err := issues.SetStatus(r.Context(), reportID, change)
		if err != nil {
			api.WriteStatusError(w, rid, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, rep)
	}
}

// DeleteReport handles DELETE /v1/admin/reports/{report_id}
func DeleteReport(issues *reports.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		reportID, ok := pathParam(w, r, rid, "report_id")
		if !ok {
			return
		}
		if err := issues.Delete(r.Context(), reportID); err != nil {
			api.WriteStatusError(w, rid, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
