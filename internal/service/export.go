package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/DukeRupert/reelscout/internal/domain"
	"github.com/DukeRupert/reelscout/internal/metrics"
	"github.com/DukeRupert/reelscout/internal/storage"
)

const (
	// ExportFormatCSV is the only export format.
	ExportFormatCSV = "csv"

	// ExportURLExpiry is how long a download link stays valid.
	ExportURLExpiry = time.Hour

	maxExportSize = 20 * 1024 * 1024
)

// exportHeader lists the CSV columns in order.
var exportHeader = []string{
	"Owner", "Caption", "URL", "Date", "Views", "Plays", "Likes", "Comments", "Shares", "Engagement", "Duration (s)",
}

// ExportResult describes a stored export.
type ExportResult struct {
	Key  string `json:"key"`
	URL  string `json:"url"`
	Rows int    `json:"rows"`
}

// ExportService writes filtered and sorted results to object storage.
type ExportService interface {
	// Export stores every matching post of a saved search, in display order.
	// Returns domain.EPAYMENT when the user's tier cannot export.
	Export(ctx context.Context, user *domain.User, historyID uuid.UUID, q ResultsQuery) (*ExportResult, error)
}

type exportService struct {
	store         storage.Storage
	history       HistoryService
	subscriptions SubscriptionService
	location      *time.Location
	printer       *message.Printer
	logger        *slog.Logger
}

// NewExportService creates a new ExportService. Numbers are grouped the
// German way (1.234.567) to match the web client.
func NewExportService(store storage.Storage, history HistoryService, subscriptions SubscriptionService, loc *time.Location, logger *slog.Logger) ExportService {
	if loc == nil {
		loc = time.Local
	}
	return &exportService{
		store:         store,
		history:       history,
		subscriptions: subscriptions,
		location:      loc,
		printer:       message.NewPrinter(language.German),
		logger:        logger,
	}
}

func (s *exportService) Export(ctx context.Context, user *domain.User, historyID uuid.UUID, q ResultsQuery) (res *ExportResult, err error) {
	const op = "export.export"
	defer func() { metrics.ExportFinished(ExportFormatCSV, err) }()

	tier := s.subscriptions.Resolve(ctx, user).Tier
	if !tier.Can(domain.FeatureExport) {
		return nil, domain.Errorf(domain.EPAYMENT, op, "Exports are not included in the %s plan.", tier.Label)
	}

	_, results, err := s.history.Results(ctx, user.ID, historyID)
	if err != nil {
		return nil, err
	}

	// Every matching post is exported, so paging is ignored.
	q.Page.Size = max(len(results.Posts), 1)
	q.Page.Page = 1
	view := BuildView(results.Posts, q, s.location)

	var buf bytes.Buffer
	if err := writeCSV(&buf, view.Page.Items, s.printer, s.location); err != nil {
		return nil, domain.Internal(err, op, "failed to write export")
	}

	key := storage.ExportKey(user.ID, historyID, ExportFormatCSV)
	if err := s.store.Put(ctx, key, &buf, storage.PutOptions{
		ContentType: storage.ContentTypeFor(key),
		MaxSize:     maxExportSize,
	}); err != nil {
		return nil, domain.Internal(err, op, "failed to store export")
	}

	url, err := s.store.URL(ctx, key, ExportURLExpiry)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to create download link")
	}

	s.logger.Info("export stored", "user_id", user.ID, "history_id", historyID, "rows", len(view.Page.Items))
	return &ExportResult{Key: key, URL: url, Rows: len(view.Page.Items)}, nil
}

// writeCSV writes posts as semicolon-separated values.
func writeCSV(w io.Writer, posts []domain.Post, p *message.Printer, loc *time.Location) error {
	cw := csv.NewWriter(w)
	cw.Comma = ';'

	if err := cw.Write(exportHeader); err != nil {
		return err
	}
	for _, post := range posts {
		date := ""
		if !post.Timestamp.IsZero() {
			date = post.Timestamp.In(loc).Format("02.01.2006 15:04")
		}
		record := []string{
			post.OwnerUsername,
			post.Caption,
			post.URL,
			date,
			p.Sprintf("%d", post.Views),
			p.Sprintf("%d", post.Plays),
			p.Sprintf("%d", post.Likes),
			p.Sprintf("%d", post.Comments),
			p.Sprintf("%d", post.Shares),
			post.Engagement.String(),
			strconv.FormatFloat(post.Duration, 'f', -1, 64),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row %s: %w", post.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
