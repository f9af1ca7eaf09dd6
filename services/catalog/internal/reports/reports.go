// Package reports stores viewer-submitted playback issue reports and the
// admin workflow around them.
package reports

import (
	"context"
	"sort"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/example/animestream/internal/platform/apperr"
	"github.com/example/animestream/internal/platform/docstore"
	"github.com/example/animestream/internal/platform/normalize"
	"github.com/example/animestream/internal/platform/rendercache"
	"github.com/example/animestream/services/catalog/internal/pages"
)

const Collection = "reports"

const (
	MinDescription = 10
	MaxDescription = 500
)

type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in-progress"
	StatusResolved   Status = "resolved"
	StatusWontFix    Status = "wont-fix"
)

type IssueType string

const (
	IssueVideoNotPlaying IssueType = "video-not-playing"
	IssueWrongEpisode    IssueType = "wrong-episode"
	IssueAudioSync       IssueType = "audio-sync"
	IssueSubtitles       IssueType = "subtitles"
	IssuePoorQuality     IssueType = "poor-quality"
	IssueOther           IssueType = "other"
)

var issueTypes = map[IssueType]bool{
	IssueVideoNotPlaying: true,
	IssueWrongEpisode:    true,
	IssueAudioSync:       true,
	IssueSubtitles:       true,
	IssuePoorQuality:     true,
	IssueOther:           true,
}

// transitions lists the statuses reachable from each status. Closed
// reports can be reopened.
var transitions = map[Status][]Status{
	StatusOpen:       {StatusInProgress, StatusResolved, StatusWontFix},
	StatusInProgress: {StatusOpen, StatusResolved, StatusWontFix},
	StatusResolved:   {StatusOpen},
	StatusWontFix:    {StatusOpen},
}

type Report struct {
	ID           string    `json:"id"`
	ReporterID   *string   `json:"reporterId"`
	ReporterName *string   `json:"reporterName"`
	AnimeID      string    `json:"animeId"`
	AnimeTitle   *string   `json:"animeTitle"`
	EpisodeID    *string   `json:"episodeId"`
	EpisodeTitle *string   `json:"episodeTitle"`
	SourceID     *string   `json:"sourceId"`
	SourceLabel  *string   `json:"sourceLabel"`
	IssueType    IssueType `json:"issueType"`
	Description  string    `json:"description"`
	Status       Status    `json:"status"`
	AdminNotes   *string   `json:"adminNotes"`
	CreatedAt    string    `json:"createdAt"`
	UpdatedAt    string    `json:"updatedAt"`
}

// Input is a report as submitted from the player.
type Input struct {
	AnimeID      string  `json:"animeId" validate:"required"`
	AnimeTitle   *string `json:"animeTitle" validate:"omitempty,max=300"`
	EpisodeID    *string `json:"episodeId"`
	EpisodeTitle *string `json:"episodeTitle" validate:"omitempty,max=300"`
	SourceID     *string `json:"sourceId"`
	SourceLabel  *string `json:"sourceLabel" validate:"omitempty,max=100"`
	IssueType    string  `json:"issueType" validate:"required,oneof=video-not-playing wrong-episode audio-sync subtitles poor-quality other"`
	Description  string  `json:"description" validate:"required,min=10,max=500"`
}

// Reporter identifies who filed a report; the zero value is anonymous.
type Reporter struct {
	UserID      string
	DisplayName string
}

// StatusChange is the admin patch.
type StatusChange struct {
	Status     string  `json:"status" validate:"required,oneof=open in-progress resolved wont-fix"`
	AdminNotes *string `json:"adminNotes" validate:"omitempty,max=2000"`
}

type Service struct {
	store docstore.Store
	inv   rendercache.Invalidator
	log   *zap.Logger
	// maxResults caps listings.
	maxResults int
}

func NewService(store docstore.Store, inv rendercache.Invalidator, log *zap.Logger, maxResults int) *Service {
	if inv == nil {
		inv = rendercache.Nop{}
	}
	if maxResults <= 0 {
		maxResults = 500
	}
	return &Service{store: store, inv: inv, log: log, maxResults: maxResults}
}

// Submit files a report. It always starts open.
func (s *Service) Submit(ctx context.Context, who Reporter, in Input) (Report, error) {
	desc := strings.TrimSpace(in.Description)
	violations := map[string]string{}
	if n := utf8.RuneCountInString(desc); n < MinDescription || n > MaxDescription {
		violations["description"] = "must be between 10 and 500 characters"
	}
	if !issueTypes[IssueType(in.IssueType)] {
		violations["issueType"] = "unknown issue type"
	}
	if strings.TrimSpace(in.AnimeID) == "" {
		violations["animeId"] = "required"
	}
	if len(violations) > 0 {
		return Report{}, apperr.InvalidArgument("invalid report", violations)
	}

	data := map[string]any{
		"reporterId":   nonEmpty(who.UserID),
		"reporterName": nonEmpty(who.DisplayName),
		"animeId":      strings.TrimSpace(in.AnimeID),
		"animeTitle":   normalize.NullableString(in.AnimeTitle),
		"episodeId":    normalize.NullableString(in.EpisodeID),
		"episodeTitle": normalize.NullableString(in.EpisodeTitle),
		"sourceId":     normalize.NullableString(in.SourceID),
		"sourceLabel":  normalize.NullableString(in.SourceLabel),
		"issueType":    in.IssueType,
		"description":  desc,
		"status":       string(StatusOpen),
		"adminNotes":   nil,
		"createdAt":    docstore.ServerTimestamp,
		"updatedAt":    docstore.ServerTimestamp,
	}
	id, err := s.store.Add(ctx, Collection, data)
	if err != nil {
		s.log.Error("submit report failed", zap.String("op", "submitReport"), zap.String("anime_id", in.AnimeID), zap.Error(err))
		return Report{}, apperr.Wrap("submitReport", err)
	}
	s.inv.Invalidate(ctx, pages.AfterReportWrite()...)
	return s.Get(ctx, id)
}

func (s *Service) Get(ctx context.Context, id string) (Report, error) {
	snap, err := s.store.Get(ctx, Collection, id)
	if err != nil {
		if docstore.IsNotFound(err) {
			return Report{}, apperr.NotFound("report not found")
		}
		return Report{}, apperr.Wrap("getReport", err)
	}
	return decode(snap)
}

// List returns reports newest first, optionally only those in one status.
// Filtering happens on the status field alone and ordering in process, so
// no composite index is needed.
func (s *Service) List(ctx context.Context, status string) ([]Report, error) {
	q := docstore.NewQuery(Collection)
	if status = strings.TrimSpace(status); status != "" {
		if _, ok := transitions[Status(status)]; !ok {
			return nil, apperr.InvalidArgument("unknown report status", map[string]string{"status": "unknown"})
		}
		q = q.Where(docstore.Equal("status", status))
	}
	snaps, err := s.store.Query(ctx, q.WithLimit(s.maxResults))
	if err != nil {
		s.log.Error("list reports failed", zap.String("op", "listReports"), zap.Error(err))
		return nil, apperr.Wrap("listReports", err)
	}
	out := make([]Report, 0, len(snaps))
	for _, snap := range snaps {
		r, err := decode(snap)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt > out[j].CreatedAt
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// CountOpen reports how many reports are open.
func (s *Service) CountOpen(ctx context.Context) (int, error) {
	open, err := s.List(ctx, string(StatusOpen))
	return len(open), err
}

// SetStatus moves a report along its workflow inside a transaction.
func (s *Service) SetStatus(ctx context.Context, id string, change StatusChange) (Report, error) {
	next := Status(strings.TrimSpace(change.Status))
	if _, ok := transitions[next]; !ok {
		return Report{}, apperr.InvalidArgument("unknown report status", map[string]string{"status": "unknown"})
	}
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		snap, err := tx.Get(Collection, id)
		if err != nil {
			return err
		}
		cur, _ := snap.Data["status"].(string)
		if Status(cur) != next && !allowed(Status(cur), next) {
			return apperr.FailedPrecondition("INVALID_TRANSITION", "cannot move report from "+cur+" to "+string(next))
		}
		updates := []docstore.Update{
			{Path: "status", Value: string(next)},
			{Path: "updatedAt", Value: docstore.ServerTimestamp},
		}
		if change.AdminNotes != nil {
			updates = append(updates, docstore.Update{Path: "adminNotes", Value: normalize.NullableString(change.AdminNotes)})
		}
		return tx.Update(Collection, id, updates)
	})
	if err != nil {
		if docstore.IsNotFound(err) {
			return Report{}, apperr.NotFound("report not found")
		}
		s.log.Error("set report status failed", zap.String("op", "setReportStatus"), zap.String("report_id", id), zap.Error(err))
		return Report{}, apperr.Wrap("setReportStatus", err)
	}
	s.inv.Invalidate(ctx, pages.AfterReportWrite()...)
	return s.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, Collection, id); err != nil {
		s.log.Error("delete report failed", zap.String("op", "deleteReport"), zap.String("report_id", id), zap.Error(err))
		return apperr.Wrap("deleteReport", err)
	}
	s.inv.Invalidate(ctx, pages.AfterReportWrite()...)
	return nil
}

func allowed(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func nonEmpty(s string) any {
	if s = strings.TrimSpace(s); s == "" {
		return nil
	}
	return s
}

func decode(snap docstore.Snapshot) (Report, error) {
	data := make(map[string]any, len(snap.Data))
	for k, v := range snap.Data {
		if k != "createdAt" && k != "updatedAt" {
			data[k] = v
		}
	}
	var r Report
	if err := (docstore.Snapshot{ID: snap.ID, Data: data}).DataTo(&r); err != nil {
		return Report{}, apperr.Wrap("decodeReport", err)
	}
	r.ID = snap.ID
	r.CreatedAt = normalize.Timestamp(snap.Data["createdAt"])
	r.UpdatedAt = normalize.Timestamp(snap.Data["updatedAt"])
	return r, nil
}
