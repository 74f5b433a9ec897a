package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"go.uber.org/zap"

	"smart-timetable/internal/dto"
	"smart-timetable/internal/schema"
	appvalidator "smart-timetable/pkg/validator"
)

// ── iCalendar 课表格式 ──────────────────────────────────────
//
// 每个非空课位对应一个按周重复的 VEVENT：
//   - DTSTART/DTEND：锚定周内对应星期的时间段，时长取 duration（缺省 60 分钟）
//   - SUMMARY 科目，LOCATION 教室，DESCRIPTION "Teacher: 教师"，CATEGORIES 课程类型
//   - RRULE:FREQ=WEEKLY
//
// 导入时反向映射：DTSTART 的星期与时分确定课位，无法落入规范结构的事件跳过。
// ─────────────────────────────────────────────────────────────

const (
	icsProductID       = "-//smart-timetable//timetable export//EN"
	icsDefaultDuration = 60 // 分钟
	icsTeacherPrefix   = "Teacher:"
)

var ErrCalendarUnreadable = errors.New("无法解析 iCalendar 内容")

var icsUnescaper = strings.NewReplacer(`\,`, ",", `\;`, ";", `\n`, "\n", `\N`, "\n", `\\`, `\`)

// weekdayOf 星期名 → time.Weekday；非英文星期名返回 false
func weekdayOf(day string) (time.Weekday, bool) {
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		if strings.EqualFold(wd.String(), day) {
			return wd, true
		}
	}
	return 0, false
}

// weekAnchor 返回 now 所在周的周一零点
func weekAnchor(now time.Time, loc *time.Location) time.Time {
	now = now.In(loc)
	offset := (int(now.Weekday()) + 6) % 7
	monday := now.AddDate(0, 0, -offset)
	return time.Date(monday.Year(), monday.Month(), monday.Day(), 0, 0, 0, 0, loc)
}

// slotLabel 时分 → 时间段标签（9:00、13:30）
func slotLabel(t time.Time) string {
	return fmt.Sprintf("%d:%02d", t.Hour(), t.Minute())
}

// buildCalendar 生成课表日历；teacher 非空时只导出该教师的课位
func buildCalendar(v *schema.Validator, id string, rec schema.Record, teacher string, anchor time.Time) (*ics.Calendar, int) {
	cfg := v.Config()
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(icsProductID)
	cal.SetXWRCalName(id)

	count := 0
	for _, day := range cfg.Days {
		wd, ok := weekdayOf(day)
		if !ok {
			continue
		}
		date := anchor.AddDate(0, 0, (int(wd)+6)%7)
		for _, t := range cfg.TimeSlots {
			slot, ok := rec.Slot(day, t)
			if !ok || strings.TrimSpace(slot.Subject) == "" {
				continue
			}
			if teacher != "" && strings.TrimSpace(slot.Teacher) != teacher {
				continue
			}
			clock, err := time.Parse("15:04", t)
			if err != nil {
				continue
			}
			start := time.Date(date.Year(), date.Month(), date.Day(), clock.Hour(), clock.Minute(), 0, 0, anchor.Location())
			minutes := slot.Duration
			if minutes <= 0 {
				minutes = icsDefaultDuration
			}

			event := cal.AddEvent(fmt.Sprintf("%s-%s-%s@smart-timetable", id, strings.ToLower(day), strings.ReplaceAll(t, ":", "")))
			event.SetDtStampTime(anchor)
			event.SetStartAt(start)
			event.SetEndAt(start.Add(time.Duration(minutes) * time.Minute))
			event.SetSummary(slot.Subject)
			if slot.Room != "" {
				event.SetLocation(slot.Room)
			}
			if slot.Teacher != "" {
				event.SetDescription(icsTeacherPrefix + " " + slot.Teacher)
			}
			if slot.Type != "" {
				event.SetProperty(ics.ComponentPropertyCategories, slot.Type)
			}
			event.SetProperty(ics.ComponentPropertyRrule, "FREQ=WEEKLY")
			count++
		}
	}
	return cal, count
}

// parseCalendar 将日历事件映射回课表；返回导入条数与跳过原因
func parseCalendar(v *schema.Validator, data []byte, loc *time.Location) (schema.Record, int, []string, error) {
	cal, err := ics.ParseCalendar(bytes.NewReader(data))
	if err != nil {
		return schema.Record{}, 0, nil, fmt.Errorf("%w: %v", ErrCalendarUnreadable, err)
	}

	cfg := v.Config()
	rec := v.CreateEmpty()
	days := make(map[time.Weekday]string, len(cfg.Days))
	for _, day := range cfg.Days {
		if wd, ok := weekdayOf(day); ok {
			days[wd] = day
		}
	}
	slots := make(map[string]struct{}, len(cfg.TimeSlots))
	for _, t := range cfg.TimeSlots {
		slots[t] = struct{}{}
	}

	imported := 0
	skipped := []string{}
	for _, evt := range cal.Events() {
		summary := propText(evt, ics.ComponentPropertySummary)
		if summary == "" {
			skipped = append(skipped, "事件缺少 SUMMARY")
			continue
		}

		start, err := parseICSDateTime(evt, ics.ComponentPropertyDtStart, loc)
		if err != nil {
			skipped = append(skipped, fmt.Sprintf("%s: 无法解析 DTSTART", summary))
			continue
		}
		day, ok := days[start.Weekday()]
		if !ok {
			skipped = append(skipped, fmt.Sprintf("%s: %s 不在课表星期范围内", summary, start.Weekday()))
			continue
		}
		label := slotLabel(start)
		if _, ok := slots[label]; !ok {
			skipped = append(skipped, fmt.Sprintf("%s: %s 不是有效的时间段", summary, label))
			continue
		}
		if existing, _ := rec.Slot(day, label); !existing.IsEmpty() {
			skipped = append(skipped, fmt.Sprintf("%s: %s %s 已被 %s 占用", summary, day, label, existing.Subject))
			continue
		}

		slot := schema.Slot{
			Subject: summary,
			Room:    propText(evt, ics.ComponentPropertyLocation),
		}
		if desc := propText(evt, ics.ComponentPropertyDescription); strings.HasPrefix(desc, icsTeacherPrefix) {
			slot.Teacher = strings.TrimSpace(strings.TrimPrefix(desc, icsTeacherPrefix))
		}
		if typ := propText(evt, ics.ComponentPropertyCategories); v.IsSessionType(typ) {
			slot.Type = typ
		}
		if end, err := parseICSDateTime(evt, ics.ComponentPropertyDtEnd, loc); err == nil {
			minutes := int(end.Sub(start).Minutes())
			if minutes >= cfg.MinDuration && minutes <= cfg.MaxDuration {
				slot.Duration = minutes
			}
		}

		rec.Set(day, label, slot)
		imported++
	}
	return rec, imported, skipped, nil
}

func (s *timetableService) ImportICS(ctx context.Context, id string, data []byte, actor Actor) (*dto.ICSImportResponse, error) {
	if !appvalidator.IsDocID(id) {
		return nil, ErrTimetableInvalidID
	}
	rec, imported, skipped, err := parseCalendar(s.validator, data, s.loc)
	if err != nil {
		return nil, err
	}

	saved, err := s.save(ctx, id, rec, saveParams{}, actor)
	if err != nil {
		return nil, err
	}

	s.logger.Info("课表日历导入完成",
		zap.String("document_id", id),
		zap.Int("imported", imported),
		zap.Int("skipped", len(skipped)),
	)
	return &dto.ICSImportResponse{
		SaveTimetableResponse: *saved,
		Imported:              imported,
		Skipped:               skipped,
	}, nil
}

// ── 辅助函数 ──

func propText(evt *ics.VEvent, name ics.ComponentProperty) string {
	prop := evt.GetProperty(name)
	if prop == nil {
		return ""
	}
	return strings.TrimSpace(icsUnescaper.Replace(prop.Value))
}

// parseICSDateTime 从 VEVENT 中解析日期时间属性，统一换算到 loc
func parseICSDateTime(evt *ics.VEvent, propName ics.ComponentProperty, loc *time.Location) (time.Time, error) {
	prop := evt.GetProperty(propName)
	if prop == nil {
		return time.Time{}, fmt.Errorf("missing property %s", propName)
	}
	val := prop.Value

	// 检查 TZID 参数
	tzid := ""
	for k, v := range prop.ICalParameters {
		if strings.ToUpper(k) == "TZID" && len(v) > 0 {
			tzid = v[0]
		}
	}

	for _, layout := range []string{"20060102T150405Z", "20060102T150405", "20060102"} {
		t, err := time.Parse(layout, val)
		if err != nil {
			continue
		}
		if strings.HasSuffix(layout, "Z") {
			return t.In(loc), nil
		}
		if tzid != "" {
			if tzLoc, err := time.LoadLocation(tzid); err == nil {
				return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, tzLoc).In(loc), nil
			}
		}
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, loc), nil
	}

	return time.Time{}, fmt.Errorf("无法解析日期: %s", val)
}
