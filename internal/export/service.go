// Package export produces XLSX snapshots of the template catalog.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/AdielsonMedeiros/POC-PDF/internal/repository"
)

// Service is a tiny façade over the template repository that produces
// XLSX bytes for exports.
type Service struct {
	repo   repository.TemplateRepository
	logger *slog.Logger
}

func NewService(repo repository.TemplateRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// ExportTemplatesXLSX returns a workbook with one sheet summarizing
// the stored templates and one listing every field mapping.
func (s *Service) ExportTemplatesXLSX(ctx context.Context) ([]byte, error) {
	start := time.Now()

	templates, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("query templates: %w", err)
	}

	f := excelize.NewFile()
	const (
		templateSheet = "Templates"
		mappingSheet  = "Mappings"
	)
	for _, sheet := range []string{templateSheet, mappingSheet} {
		if index, _ := f.GetSheetIndex(sheet); index == -1 {
			if _, err := f.NewSheet(sheet); err != nil {
				return nil, err
			}
		}
	}
	if index, _ := f.GetSheetIndex("Sheet1"); index != -1 {
		_ = f.DeleteSheet("Sheet1")
	}
	activeIndex, _ := f.GetSheetIndex(templateSheet)
	f.SetActiveSheet(activeIndex)

	write := func(sheet string, col, row int, v any) {
		cell, _ := excelize.CoordinatesToCellName(col, row)
		_ = f.SetCellValue(sheet, cell, v)
	}

	templateHeaders := []string{"Fingerprint", "Name", "Description", "Fields", "Created At", "Updated At"}
	for i, h := range templateHeaders {
		write(templateSheet, i+1, 1, h)
	}

	mappingHeaders := []string{"Fingerprint", "Field Type", "Label", "Original Value", "Left", "Top", "Right", "Bottom"}
	for i, h := range mappingHeaders {
		write(mappingSheet, i+1, 1, h)
	}

	mappingRow := 2
	for i, tpl := range templates {
		row := i + 2
		write(templateSheet, 1, row, tpl.Fingerprint)
		write(templateSheet, 2, row, tpl.Name)
		write(templateSheet, 3, row, tpl.Description)
		write(templateSheet, 4, row, tpl.FieldCount)
		if !tpl.CreatedAt.IsZero() {
			write(templateSheet, 5, row, tpl.CreatedAt.Format("2006-01-02 15:04:05"))
		}
		if !tpl.UpdatedAt.IsZero() {
			write(templateSheet, 6, row, tpl.UpdatedAt.Format("2006-01-02 15:04:05"))
		}

		full, err := s.repo.Load(ctx, tpl.Fingerprint)
		if err != nil {
			return nil, fmt.Errorf("load template %s: %w", tpl.Fingerprint, err)
		}
		for _, m := range full.Mappings {
			write(mappingSheet, 1, mappingRow, tpl.Fingerprint)
			write(mappingSheet, 2, mappingRow, m.FieldType)
			write(mappingSheet, 3, mappingRow, m.Label)
			write(mappingSheet, 4, mappingRow, m.OriginalValue)
			write(mappingSheet, 5, mappingRow, m.Left)
			write(mappingSheet, 6, mappingRow, m.Top)
			write(mappingSheet, 7, mappingRow, m.Right)
			write(mappingSheet, 8, mappingRow, m.Bottom)
			mappingRow++
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}

	s.logger.Info("export.templates.ok",
		"templates", len(templates),
		"duration_ms", time.Since(start).Milliseconds(),
		"bytes", buf.Len(),
	)
	return buf.Bytes(), nil
}
