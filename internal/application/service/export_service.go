package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"resumeflow/internal/domain/entity"
	"resumeflow/internal/port/outbound"
)

// exportColumns is the fixed export column schema. score, verdict and
// summary come from the nested result JSON and stay empty when absent.
var exportColumns = []string{
	"task_id",
	"resume_ref",
	"vacancy_ref",
	"status",
	"score",
	"verdict",
	"summary",
	"tokens_spent",
	"completed_at",
}

const exportPageSize = 500

// DefaultExportService implements ExportService, flattening a
// session's tasks into the fixed tabular schema.
type DefaultExportService struct {
	tasks outbound.TaskRepository
}

// NewDefaultExportService creates the export service.
func NewDefaultExportService(tasks outbound.TaskRepository) *DefaultExportService {
	return &DefaultExportService{tasks: tasks}
}

// ExportCSV renders the session's tasks as CSV.
func (s *DefaultExportService) ExportCSV(ctx context.Context, sessionID uuid.UUID) ([]byte, error) {
	tasks, err := s.loadAllTasks(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(exportColumns); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, task := range tasks {
		if err := writer.Write(exportRow(task)); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush CSV: %w", err)
	}
	return buf.Bytes(), nil
}

// ExportXLSX renders the session's tasks as an XLSX workbook.
func (s *DefaultExportService) ExportXLSX(ctx context.Context, sessionID uuid.UUID) ([]byte, error) {
	tasks, err := s.loadAllTasks(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	const sheet = "Analyses"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if defaultSheet := f.GetSheetName(0); defaultSheet != sheet {
		_ = f.DeleteSheet(defaultSheet)
	}

	for i, header := range exportColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return nil, fmt.Errorf("failed to write header cell: %w", err)
		}
	}

	for rowIndex, task := range tasks {
		for colIndex, value := range exportRow(task) {
			cell, _ := excelize.CoordinatesToCellName(colIndex+1, rowIndex+2)
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return nil, fmt.Errorf("failed to write cell: %w", err)
			}
		}
	}

	_ = f.SetColWidth(sheet, "A", "A", 38) // task id
	_ = f.SetColWidth(sheet, "G", "G", 60) // summary
	_ = f.SetColWidth(sheet, "I", "I", 22) // completed_at

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *DefaultExportService) loadAllTasks(ctx context.Context, sessionID uuid.UUID) ([]*entity.AnalysisTask, error) {
	var all []*entity.AnalysisTask
	offset := 0
	for {
		page, total, err := s.tasks.FindBySession(ctx, sessionID, offset, exportPageSize)
		if err != nil {
			return nil, fmt.Errorf("failed to load tasks for session %s: %w", sessionID, err)
		}
		all = append(all, page...)
		offset += len(page)
		if offset >= total || len(page) == 0 {
			break
		}
	}
	return all, nil
}

func exportRow(task *entity.AnalysisTask) []string {
	tokensSpent := ""
	if task.TokensSpent() != nil {
		tokensSpent = strconv.Itoa(*task.TokensSpent())
	}

	completedAt := ""
	if task.IsTerminal() {
		completedAt = task.UpdatedAt().UTC().Format(time.RFC3339)
	}

	result := task.Result()
	return []string{
		task.ID().String(),
		task.ResumeRef(),
		task.VacancyRef(),
		task.Status().String(),
		resultField(result, "score"),
		resultField(result, "verdict"),
		resultField(result, "summary"),
		tokensSpent,
		completedAt,
	}
}

// resultField stringifies one key of the nested result, empty when
// absent.
func resultField(result map[string]any, key string) string {
	if result == nil {
		return ""
	}
	value, ok := result[key]
	if !ok || value == nil {
		return ""
	}

	switch typed := value.(type) {
	case string:
		return typed
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case int:
		return strconv.Itoa(typed)
	case bool:
		return strconv.FormatBool(typed)
	default:
		return fmt.Sprintf("%v", typed)
	}
}
