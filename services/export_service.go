package services

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Dosada05/venue-tournaments/storage"
	"github.com/xuri/excelize/v2"
)

const (
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	exportSheet     = "Inscricoes"
)

type RegistrationExport struct {
	FileName    string `json:"file_name"`
	ContentType string `json:"-"`
	Content     []byte `json:"-"`
	URL         string `json:"url,omitempty"`
}

// ExportService выгружает список участников турнира в XLSX.
// Если задан uploader, файл дополнительно публикуется в хранилище; для каждого
// турнира там хранится только последняя выгрузка.
type ExportService struct {
	registry *TournamentRegistry
	uploader storage.FileUploader
	logger   *slog.Logger
	now      func() time.Time

	mu        sync.Mutex
	published map[string]string // tournament id -> key
}

func NewExportService(registry *TournamentRegistry, uploader storage.FileUploader, logger *slog.Logger) *ExportService {
	return &ExportService{
		registry:  registry,
		uploader:  uploader,
		logger:    logger,
		now:       time.Now,
		published: make(map[string]string),
	}
}

func (s *ExportService) ExportRegistrations(ctx context.Context, tournamentID string) (*RegistrationExport, error) {
	if !s.registry.IsAdministrator(ctx) {
		return nil, ErrUnauthorized
	}
	tournament, err := s.registry.LookupTournament(ctx, tournamentID, false)
	if err != nil {
		return nil, err
	}
	if _, err := s.registry.RefreshRegistrationsForTournament(ctx, tournament.ID); err != nil {
		return nil, err
	}
	regs := s.registry.Registrations(tournament.ID)

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName(f.GetSheetName(0), exportSheet); err != nil {
		return nil, fmt.Errorf("failed to name export sheet: %w", err)
	}

	header := []any{"#", "Nome", "WhatsApp", "Inscrito em"}
	if err := f.SetSheetRow(exportSheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("failed to write export header: %w", err)
	}
	for i, reg := range regs {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := []any{i + 1, reg.FullName, reg.WhatsappNumber, reg.CreatedAt.Format("2006-01-02 15:04")}
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write export row %d: %w", i+1, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to render export: %w", err)
	}

	export := &RegistrationExport{
		FileName:    exportFileName(tournament.Game, tournament.Edition, s.now()),
		ContentType: xlsxContentType,
		Content:     buf.Bytes(),
	}

	if s.uploader != nil {
		export.URL = s.publish(ctx, tournament.ID, export)
	}
	return export, nil
}

// publish загружает файл и удаляет предыдущую выгрузку турнира.
// Ошибки только логируются: файл все равно отдается напрямую.
func (s *ExportService) publish(ctx context.Context, tournamentID string, export *RegistrationExport) string {
	log := s.logger.With(slog.String("tournament_id", tournamentID))
	key := "exports/" + tournamentID + "/" + export.FileName
	result, err := s.uploader.Upload(ctx, key, xlsxContentType, bytes.NewReader(export.Content))
	if err != nil {
		log.Warn("failed to publish export", slog.Any("error", err))
		return ""
	}

	s.mu.Lock()
	previous, ok := s.published[tournamentID]
	s.published[tournamentID] = key
	s.mu.Unlock()

	if ok && previous != key {
		if err := s.uploader.Delete(ctx, previous); err != nil {
			log.Warn("failed to remove previous export", slog.String("key", previous), slog.Any("error", err))
		}
	}
	return result.Location
}

func exportFileName(game string, edition int, at time.Time) string {
	slug := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '-'
		}
	}, strings.TrimSpace(game))
	return fmt.Sprintf("%s-%d-%s.xlsx", strings.Trim(slug, "-"), edition, at.UTC().Format("20060102-150405"))
}
