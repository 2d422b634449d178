package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teamshare/teamshare-api/internal/models"
	"github.com/teamshare/teamshare-api/internal/repository"
	"github.com/teamshare/teamshare-api/pkg/config"
	appErrors "github.com/teamshare/teamshare-api/pkg/errors"
	"github.com/teamshare/teamshare-api/pkg/export"
	"github.com/teamshare/teamshare-api/pkg/storage"
)

type exportHistoryStore interface {
	ListHistoryForExport(ctx context.Context, filter repository.HistoryFilter) ([]models.FileStatusHistory, error)
}

// Export formats.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

// ExportResult describes a generated approval-history document and its
// signed download token.
type ExportResult struct {
	FileName  string    `json:"file_name"`
	Format    string    `json:"format"`
	Rows      int       `json:"rows"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ExportService renders approval-history exports and guards downloads with
// signed tokens.
type ExportService struct {
	repo     exportHistoryStore
	csv      *export.CSVExporter
	pdf      *export.PDFExporter
	signer   *storage.SignedURLSigner
	activity activityStore
	cfg      config.ExportsConfig
	logger   *zap.Logger
}

// NewExportService constructs the service.
func NewExportService(repo exportHistoryStore, signer *storage.SignedURLSigner, activity activityStore, cfg config.ExportsConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		repo:     repo,
		csv:      export.NewCSVExporter(),
		pdf:      export.NewPDFExporter(),
		signer:   signer,
		activity: activity,
		cfg:      cfg,
		logger:   logger,
	}
}

var historyHeaders = []string{"File", "From", "To", "Decided By", "Role", "Reason", "Decided At"}

// GenerateHistory renders the approval trail matching the filter into a CSV
// or PDF document. Team leaders are confined to their own team.
func (s *ExportService) GenerateHistory(ctx context.Context, actor *models.User, format string, filter repository.HistoryFilter) (*ExportResult, error) {
	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleTeamLeader:
		filter.Team = actor.Team
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only team leaders and admins can export history")
	}
	format = strings.ToLower(format)
	if format != ExportFormatCSV && format != ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	rows, err := s.repo.ListHistoryForExport(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load approval history")
	}

	dataset := export.Dataset{Headers: historyHeaders, Rows: make([]map[string]string, 0, len(rows))}
	for _, row := range rows {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"File":       row.Filename,
			"From":       row.FromStatus,
			"To":         row.ToStatus,
			"Decided By": row.ActorName,
			"Role":       row.ActorRole,
			"Reason":     row.Reason,
			"Decided At": row.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	var payload []byte
	if format == ExportFormatCSV {
		payload, err = s.csv.Render(dataset)
	} else {
		payload, err = s.pdf.Render(dataset, "Approval History")
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	fileName := fmt.Sprintf("history_%d.%s", time.Now().UTC().UnixNano(), format)
	if err := os.MkdirAll(s.cfg.StorageDir, 0o755); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to prepare export directory")
	}
	if err := os.WriteFile(filepath.Join(s.cfg.StorageDir, fileName), payload, 0o644); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to write export")
	}

	token, expiresAt, err := s.signer.Generate(fileName, fileName)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign export URL")
	}

	if s.activity != nil {
		entry := &models.ActivityLog{
			UserID: actor.ID,
			Action: models.ActionExportHistory,
			Entity: "export",
			Detail: fileName,
		}
		if err := s.activity.Create(ctx, entry); err != nil {
			s.logger.Sugar().Warnw("failed to record export activity", "error", err)
		}
	}

	return &ExportResult{
		FileName:  fileName,
		Format:    format,
		Rows:      len(rows),
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}

// Resolve validates a signed download token and returns the export path.
func (s *ExportService) Resolve(token string) (string, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return "", appErrors.Clone(appErrors.ErrUnauthorized, "download link is invalid or expired")
	}
	cleaned := filepath.Clean(relPath)
	if cleaned != relPath || strings.Contains(cleaned, "..") || filepath.IsAbs(cleaned) {
		return "", appErrors.Clone(appErrors.ErrUnauthorized, "download link is invalid or expired")
	}
	full := filepath.Join(s.cfg.StorageDir, cleaned)
	if _, err := os.Stat(full); err != nil {
		return "", appErrors.Clone(appErrors.ErrNotFound, "export no longer exists")
	}
	return full, nil
}
