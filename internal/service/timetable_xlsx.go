package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"smart-timetable/internal/dto"
	"smart-timetable/internal/schema"
)

// ── Excel 课表格式 ──────────────────────────────────────────
//
// 每个 Sheet 对应一份课表，Sheet 名即文档 ID：
//   - 第 1 行：A1 为 "Time"，B1 起为星期
//   - 第 2 行起：A 列为时间段，其余单元格为 "科目 / 教师[ / 教室]"
//   - 空单元格表示空课位
// ─────────────────────────────────────────────────────────────

const (
	xlsxCornerLabel = "Time"
	xlsxCellSep     = " / "
)

var ErrWorkbookUnreadable = errors.New("无法读取 Excel 文件")

// sheetDoc 从单个 Sheet 解析出的课表候选值
type sheetDoc struct {
	ID        string
	Candidate map[string]interface{}
	Errors    []string
}

// formatCell 课位 → 单元格文本；空课位返回空串
func formatCell(slot schema.Slot) string {
	if slot.IsEmpty() {
		return ""
	}
	parts := []string{slot.Subject, slot.Teacher}
	if slot.Room != "" {
		parts = append(parts, slot.Room)
	}
	return strings.Join(parts, xlsxCellSep)
}

// parseCell 单元格文本 → 课位（无类型形式，交由 schema 校验）
func parseCell(text string) map[string]interface{} {
	slot := map[string]interface{}{"subject": "", "teacher": ""}
	text = strings.TrimSpace(text)
	if text == "" {
		return slot
	}
	parts := strings.Split(text, "/")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	slot["subject"] = parts[0]
	if len(parts) > 1 {
		slot["teacher"] = parts[1]
	}
	if len(parts) > 2 && parts[2] != "" {
		slot["room"] = strings.Join(parts[2:], "/")
	}
	return slot
}

// writeSheet 将一份课表写入指定 Sheet
func writeSheet(f *excelize.File, sheet string, cfg schema.Config, rec schema.Record, headerStyle int) {
	f.SetColWidth(sheet, "A", "A", 10)
	f.SetColWidth(sheet, colName(1), colName(len(cfg.Days)), 28)

	// 表头
	f.SetCellValue(sheet, cell("A", 1), xlsxCornerLabel)
	for i, day := range cfg.Days {
		f.SetCellValue(sheet, cell(colName(1+i), 1), day)
	}
	f.SetCellStyle(sheet, "A1", cell(colName(len(cfg.Days)), 1), headerStyle)

	// 数据行
	for r, t := range cfg.TimeSlots {
		row := r + 2
		f.SetCellValue(sheet, cell("A", row), t)
		for i, day := range cfg.Days {
			slot, _ := rec.Slot(day, t)
			if text := formatCell(slot); text != "" {
				f.SetCellValue(sheet, cell(colName(1+i), row), text)
			}
		}
	}
}

// readSheets 解析工作簿中的全部 Sheet
func readSheets(v *schema.Validator, data []byte) ([]sheetDoc, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWorkbookUnreadable, err)
	}
	defer f.Close()

	cfg := v.Config()
	var docs []sheetDoc
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrWorkbookUnreadable, err)
		}
		docs = append(docs, readSheet(cfg, sheet, rows))
	}
	return docs, nil
}

func readSheet(cfg schema.Config, sheet string, rows [][]string) sheetDoc {
	doc := sheetDoc{ID: strings.TrimSpace(sheet)}

	// 先铺满空课表，再用单元格覆盖
	tt := make(map[string]interface{}, len(cfg.Days))
	for _, day := range cfg.Days {
		d := make(map[string]interface{}, len(cfg.TimeSlots))
		for _, t := range cfg.TimeSlots {
			d[t] = map[string]interface{}{"subject": "", "teacher": ""}
		}
		tt[day] = d
	}
	doc.Candidate = tt

	if len(rows) == 0 {
		doc.Errors = append(doc.Errors, "Sheet 为空，缺少表头")
		return doc
	}

	days := make(map[string]struct{}, len(cfg.Days))
	for _, d := range cfg.Days {
		days[d] = struct{}{}
	}
	slots := make(map[string]struct{}, len(cfg.TimeSlots))
	for _, t := range cfg.TimeSlots {
		slots[t] = struct{}{}
	}

	header := rows[0]
	for col := 1; col < len(header); col++ {
		name := strings.TrimSpace(header[col])
		if name == "" {
			continue
		}
		if _, ok := days[name]; !ok {
			doc.Errors = append(doc.Errors, fmt.Sprintf("表头 %s1 不是有效的星期: %s", colName(col), name))
		}
	}

	for r := 1; r < len(rows); r++ {
		row := rows[r]
		if len(row) == 0 {
			continue
		}
		t := strings.TrimSpace(row[0])
		if t == "" {
			continue
		}
		if _, ok := slots[t]; !ok {
			doc.Errors = append(doc.Errors, fmt.Sprintf("A%d 不是有效的时间段: %s", r+1, t))
			continue
		}
		for col := 1; col < len(row) && col < len(header); col++ {
			day := strings.TrimSpace(header[col])
			if _, ok := days[day]; !ok {
				continue
			}
			tt[day].(map[string]interface{})[t] = parseCell(row[col])
		}
	}
	return doc
}

func (s *timetableService) ImportXLSX(ctx context.Context, data []byte, actor Actor) (*dto.BatchResponse, error) {
	docs, err := readSheets(s.validator, data)
	if err != nil {
		return nil, err
	}

	batch := &dto.BatchResponse{Results: []dto.BatchItemResult{}}
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(doc.Errors) > 0 {
			batch.Add(dto.BatchItemResult{
				Key:    doc.ID,
				Error:  ErrTimetableInvalid.Error(),
				Errors: doc.Errors,
			})
			continue
		}
		candidate := doc.Candidate
		batch.Add(s.importOne(ctx, doc.ID, func() (interface{}, error) {
			return candidate, nil
		}, actor))
	}

	s.logger.Info("课表 Excel 导入完成",
		zap.Int("total", batch.Total),
		zap.Int("succeeded", batch.Succeeded),
		zap.Int("failed", batch.Failed),
	)
	return batch, nil
}

// ── 辅助函数 ──

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
