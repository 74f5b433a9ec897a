package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"smart-timetable/internal/schema"
)

// ── 导出模块业务错误 ──

var (
	ErrExportGenerateFail = errors.New("生成导出文件失败")
	ErrExportEmpty        = errors.New("没有可导出的课程")
)

// 单个 Sheet 名最长 31 字符
const maxSheetName = 31

// ExportService 导出业务接口
//
// 导出以 bytes.Buffer / []byte 返回，由 Handler 层设置响应头后写入 Response。
type ExportService interface {
	// ExportXLSX 导出课表为 Excel，格式与 ImportXLSX 互逆
	ExportXLSX(ctx context.Context, id string) (*bytes.Buffer, string, error)
	// ExportICS 导出课表为按周重复的 iCalendar；teacher 非空时只导出该教师的课
	ExportICS(ctx context.Context, id, teacher string) ([]byte, string, error)
}

type exportService struct {
	timetable TimetableService
	validator *schema.Validator
	logger    *zap.Logger
	now       func() time.Time
	loc       *time.Location
}

// NewExportService 创建 ExportService 实例
func NewExportService(timetable TimetableService, validator *schema.Validator, logger *zap.Logger) ExportService {
	return &exportService{
		timetable: timetable,
		validator: validator,
		logger:    logger,
		now:       time.Now,
		loc:       time.Local,
	}
}

// ═══════════════════════════════════════════════════════════
// ExportXLSX 导出课表为 Excel
// ═══════════════════════════════════════════════════════════

func (s *exportService) ExportXLSX(ctx context.Context, id string) (*bytes.Buffer, string, error) {
	doc, err := s.timetable.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := id
	if len(sheetName) > maxSheetName {
		sheetName = sheetName[:maxSheetName]
	}
	idx, err := f.NewSheet(sheetName)
	if err != nil {
		s.logger.Error("创建 Sheet 失败", zap.String("document_id", id), zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}
	f.SetActiveSheet(idx)
	// 删除默认 Sheet1
	if sheetName != "Sheet1" {
		f.DeleteSheet("Sheet1")
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	writeSheet(f, sheetName, s.validator.Config(), doc.Timetable, headerStyle)

	// 写入 buffer
	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	return buf, fmt.Sprintf("timetable_%s.xlsx", id), nil
}

// ═══════════════════════════════════════════════════════════
// ExportICS 导出课表为 iCalendar
// ═══════════════════════════════════════════════════════════

func (s *exportService) ExportICS(ctx context.Context, id, teacher string) ([]byte, string, error) {
	doc, err := s.timetable.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}

	teacher = strings.TrimSpace(teacher)
	cal, count := buildCalendar(s.validator, id, doc.Timetable, teacher, weekAnchor(s.now(), s.loc))
	if count == 0 && teacher != "" {
		return nil, "", ErrExportEmpty
	}

	filename := fmt.Sprintf("timetable_%s.ics", id)
	if teacher != "" {
		filename = fmt.Sprintf("timetable_%s_%s.ics", id, strings.ReplaceAll(teacher, " ", "_"))
	}
	s.logger.Debug("导出日历", zap.String("document_id", id), zap.Int("events", count))
	return []byte(cal.Serialize()), filename, nil
}
