package service

import (
	"context"
	"fmt"
	"os"
	"path"
	"time"

	"go.uber.org/zap"

	"github.com/campuskit/campus-core-api/internal/models"
	"github.com/campuskit/campus-core-api/internal/timetable"
	appErrors "github.com/campuskit/campus-core-api/pkg/errors"
	"github.com/campuskit/campus-core-api/pkg/export"
	"github.com/campuskit/campus-core-api/pkg/storage"
)

// ReportCardSource assembles report cards.
type ReportCardSource interface {
	ReportCard(ctx context.Context, enrollmentID string) (*models.ReportCard, error)
}

// OccurrenceSource lists a section's concrete meeting dates.
type OccurrenceSource interface {
	Occurrences(ctx context.Context, sectionID string) (*models.SectionOccurrences, error)
}

// ReportsConfig tunes report rendering and archiving.
type ReportsConfig struct {
	Enabled     bool
	DownloadTTL time.Duration
}

// ReportService renders report cards and occurrence sheets as downloadable
// CSV and PDF documents, optionally persisting them behind signed download
// tokens.
type ReportService struct {
	cards       ReportCardSource
	occurrences OccurrenceSource
	csv         *export.CSVExporter
	pdf         *export.PDFExporter
	store       *storage.ExportStore
	signer      *storage.DownloadSigner
	logger      *zap.Logger
	cfg         ReportsConfig
}

// NewReportService constructs the report service. A nil store or signer
// disables the export endpoints while direct downloads keep working.
func NewReportService(cards ReportCardSource, occurrences OccurrenceSource, store *storage.ExportStore, signer *storage.DownloadSigner, logger *zap.Logger, cfg ReportsConfig) *ReportService {
	if cfg.DownloadTTL <= 0 {
		cfg.DownloadTTL = 24 * time.Hour
	}
	return &ReportService{
		cards:       cards,
		occurrences: occurrences,
		csv:         export.NewCSVExporter(),
		pdf:         export.NewPDFExporter(),
		store:       store,
		signer:      signer,
		logger:      logger,
		cfg:         cfg,
	}
}

// ReportCardCSV renders an enrollment's report card as CSV.
func (s *ReportService) ReportCardCSV(ctx context.Context, enrollmentID string) ([]byte, string, error) {
	card, err := s.loadCard(ctx, enrollmentID)
	if err != nil {
		return nil, "", err
	}
	payload, err := s.csv.Render(reportCardDataset(card))
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "render report card csv")
	}
	return payload, fmt.Sprintf("report-card-%s.csv", enrollmentID), nil
}

// ReportCardPDF renders an enrollment's report card as PDF.
func (s *ReportService) ReportCardPDF(ctx context.Context, enrollmentID string) ([]byte, string, error) {
	card, err := s.loadCard(ctx, enrollmentID)
	if err != nil {
		return nil, "", err
	}
	payload, err := s.pdf.Render(reportCardDataset(card), "Report Card")
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "render report card pdf")
	}
	return payload, fmt.Sprintf("report-card-%s.pdf", enrollmentID), nil
}

// OccurrenceSheetCSV renders a section's meeting dates as CSV.
func (s *ReportService) OccurrenceSheetCSV(ctx context.Context, sectionID string) ([]byte, string, error) {
	occ, err := s.loadOccurrences(ctx, sectionID)
	if err != nil {
		return nil, "", err
	}
	payload, err := s.csv.Render(occurrenceDataset(occ))
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "render occurrence csv")
	}
	return payload, fmt.Sprintf("occurrences-%s.csv", sectionID), nil
}

// OccurrenceSheetPDF renders a section's meeting dates as PDF.
func (s *ReportService) OccurrenceSheetPDF(ctx context.Context, sectionID string) ([]byte, string, error) {
	occ, err := s.loadOccurrences(ctx, sectionID)
	if err != nil {
		return nil, "", err
	}
	payload, err := s.pdf.Render(occurrenceDataset(occ), "Meeting Schedule")
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "render occurrence pdf")
	}
	return payload, fmt.Sprintf("occurrences-%s.pdf", sectionID), nil
}

// ExportReportCard renders the report card in the requested format, persists
// it to the export store and returns a signed download token.
func (s *ReportService) ExportReportCard(ctx context.Context, enrollmentID, format string) (*models.ExportArtifact, error) {
	payload, name, err := s.renderReportCard(ctx, enrollmentID, format)
	if err != nil {
		return nil, err
	}
	return s.archive(path.Join("report-cards", name), payload)
}

// ExportOccurrenceSheet renders the meeting schedule in the requested format,
// persists it and returns a signed download token.
func (s *ReportService) ExportOccurrenceSheet(ctx context.Context, sectionID, format string) (*models.ExportArtifact, error) {
	payload, name, err := s.renderOccurrenceSheet(ctx, sectionID, format)
	if err != nil {
		return nil, err
	}
	return s.archive(path.Join("occurrence-sheets", name), payload)
}

// Download resolves a signed token to the stored file and its content type.
func (s *ReportService) Download(token string) (*os.File, string, string, error) {
	if s.store == nil || s.signer == nil {
		return nil, "", "", appErrors.Clone(appErrors.ErrPreconditionFailed, "report archiving is not configured")
	}
	name, err := s.signer.Verify(token)
	if err != nil {
		return nil, "", "", appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	file, err := s.store.Open(name)
	if err != nil {
		return nil, "", "", appErrors.Clone(appErrors.ErrNotFound, "export file no longer available")
	}
	return file, path.Base(name), contentTypeFor(name), nil
}

func (s *ReportService) renderReportCard(ctx context.Context, enrollmentID, format string) ([]byte, string, error) {
	switch format {
	case "csv":
		return s.ReportCardCSV(ctx, enrollmentID)
	case "pdf":
		return s.ReportCardPDF(ctx, enrollmentID)
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
}

func (s *ReportService) renderOccurrenceSheet(ctx context.Context, sectionID, format string) ([]byte, string, error) {
	switch format {
	case "csv":
		return s.OccurrenceSheetCSV(ctx, sectionID)
	case "pdf":
		return s.OccurrenceSheetPDF(ctx, sectionID)
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
}

// archive persists the rendered payload and signs a download token. Files
// past the token TTL are pruned on the way, their tokens having expired.
func (s *ReportService) archive(name string, payload []byte) (*models.ExportArtifact, error) {
	if s.store == nil || s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "report archiving is not configured")
	}
	if err := s.store.Save(name, payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "persist export")
	}
	token, expiresAt, err := s.signer.Sign(name)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "sign download token")
	}
	if pruned, err := s.store.PruneOlderThan(s.cfg.DownloadTTL); err != nil {
		s.logger.Warn("export pruning failed", zap.Error(err))
	} else if len(pruned) > 0 {
		s.logger.Info("expired exports pruned", zap.Int("count", len(pruned)))
	}
	return &models.ExportArtifact{FileName: name, Token: token, ExpiresAt: expiresAt}, nil
}

func contentTypeFor(name string) string {
	if path.Ext(name) == ".pdf" {
		return "application/pdf"
	}
	return "text/csv"
}

func (s *ReportService) loadCard(ctx context.Context, enrollmentID string) (*models.ReportCard, error) {
	if !s.cfg.Enabled {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "report exports are disabled")
	}
	return s.cards.ReportCard(ctx, enrollmentID)
}

func (s *ReportService) loadOccurrences(ctx context.Context, sectionID string) (*models.SectionOccurrences, error) {
	if !s.cfg.Enabled {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "report exports are disabled")
	}
	return s.occurrences.Occurrences(ctx, sectionID)
}

func reportCardDataset(card *models.ReportCard) export.Dataset {
	headers := []string{"Assessment", "Type", "Weightage", "Scored", "Total", "Contribution"}
	rows := make([]map[string]string, 0, len(card.Grades)+1)
	for _, g := range card.Grades {
		rows = append(rows, map[string]string{
			"Assessment":   g.Title,
			"Type":         g.Type,
			"Weightage":    fmt.Sprintf("%.2f", g.Weightage),
			"Scored":       fmt.Sprintf("%.2f", g.ScoredGrade),
			"Total":        fmt.Sprintf("%.2f", g.TotalGrade),
			"Contribution": fmt.Sprintf("%.2f", g.Contribution),
		})
	}
	verdict := "FAIL"
	if card.Passed {
		verdict = "PASS"
	}
	rows = append(rows, map[string]string{
		"Assessment":   "FINAL",
		"Type":         verdict,
		"Weightage":    fmt.Sprintf("%.2f", card.WeightageTotal),
		"Scored":       fmt.Sprintf("%.2f", card.FinalGrade),
		"Total":        "100.00",
		"Contribution": fmt.Sprintf("%.2f", card.FinalGrade),
	})
	return export.Dataset{Headers: headers, Rows: rows}
}

func occurrenceDataset(occ *models.SectionOccurrences) export.Dataset {
	headers := []string{"Date", "Weekday"}
	rows := make([]map[string]string, 0, len(occ.Dates))
	for _, d := range occ.Dates {
		rows = append(rows, map[string]string{
			"Date":    d.Format("2006-01-02"),
			"Weekday": timetable.FormatWeekday(d.Weekday()),
		})
	}
	return export.Dataset{Headers: headers, Rows: rows}
}
