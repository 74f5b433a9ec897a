package schema

import "strings"

// Sanitize 将任意输入尽力转换为规范结构，永不失败。
//
//   - 缺失或非对象的星期 → 空的一天
//   - 缺失的时间段 → 空课位
//   - subject/teacher 非字符串 → ""，字符串去首尾空白并按上限截断
//   - room/section 仅保留非空字符串；duration 仅保留范围内整数；type 仅保留合法枚举
//   - 未知的星期、时间段、课位字段一律丢弃
//
// 输出总能通过 Validate，且 Sanitize(Sanitize(x)) == Sanitize(x)。
func (v *Validator) Sanitize(candidate interface{}) Record {
	tt, ok := asObject(candidate)
	if !ok {
		return v.CreateEmpty()
	}

	out := Record{Days: make(map[string]Day, len(v.cfg.Days))}
	for _, day := range v.cfg.Days {
		src, ok := asObject(tt[day])
		if !ok {
			out.Days[day] = v.emptyDay()
			continue
		}
		d := make(Day, len(v.cfg.TimeSlots))
		for _, t := range v.cfg.TimeSlots {
			raw := src[t]
			if !truthy(raw) {
				d[t] = Slot{}
				continue
			}
			d[t] = v.sanitizeSlot(raw)
		}
		out.Days[day] = d
	}

	if meta, ok := tt[MetadataKey].(map[string]interface{}); ok {
		out.Metadata = v.sanitizeMetadata(meta)
	}
	return out
}

// SanitizeRecord 对已类型化的课表执行清洗
func (v *Validator) SanitizeRecord(r Record) Record {
	return v.Sanitize(r)
}

func (v *Validator) sanitizeSlot(raw interface{}) Slot {
	src, ok := asObject(raw)
	if !ok {
		return Slot{}
	}

	slot := Slot{
		Subject: cleanString(src["subject"], v.cfg.MaxSubjectLength),
		Teacher: cleanString(src["teacher"], v.cfg.MaxTeacherLength),
	}
	if s, ok := src["room"].(string); ok && s != "" {
		slot.Room = cleanString(s, v.cfg.MaxRoomLength)
	}
	if s, ok := src["section"].(string); ok && s != "" {
		slot.Section = cleanString(s, v.cfg.MaxSectionLength)
	}
	if n, ok := asInteger(src["duration"]); ok && n >= int64(v.cfg.MinDuration) && n <= int64(v.cfg.MaxDuration) {
		slot.Duration = int(n)
	}
	if s, ok := src["type"].(string); ok && v.IsSessionType(s) {
		slot.Type = s
	}
	return slot
}

// cleanString 非字符串转为 ""；去空白 → 截断 → 再去尾部空白，保证幂等
func cleanString(val interface{}, max int) string {
	s, ok := val.(string)
	if !ok {
		return ""
	}
	s = strings.TrimSpace(s)
	s = truncate(s, max)
	return strings.TrimSpace(s)
}

func (v *Validator) sanitizeMetadata(src map[string]interface{}) *Metadata {
	str := func(key string) string {
		s, _ := src[key].(string)
		return strings.TrimSpace(s)
	}
	m := &Metadata{
		CreatedBy:  str("createdBy"),
		Semester:   cleanString(src["semester"], v.metadataLimit("semester")),
		ClassGrade: cleanString(src["classGrade"], v.metadataLimit("classGrade")),
		Section:    cleanString(src["section"], v.metadataLimit("section")),
	}
	if ts := str("createdAt"); isTimestamp(ts) {
		m.CreatedAt = ts
	}
	if ts := str("updatedAt"); isTimestamp(ts) {
		m.UpdatedAt = ts
	}
	if y := str("academicYear"); academicYearPattern.MatchString(y) {
		m.AcademicYear = y
	}
	if m.isZero() {
		return nil
	}
	return m
}
