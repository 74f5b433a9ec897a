package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Slot 单个课位：某天某时间段的一次课程安排
// subject/teacher 为空字符串表示该时段无课
type Slot struct {
	Subject  string `json:"subject"`
	Teacher  string `json:"teacher"`
	Room     string `json:"room,omitempty"`
	Section  string `json:"section,omitempty"`
	Duration int    `json:"duration,omitempty"` // 分钟
	Type     string `json:"type,omitempty"`
}

// IsEmpty 是否为空课位
func (s Slot) IsEmpty() bool {
	return s.Subject == "" && s.Teacher == ""
}

// Day 一天的课位：时间段 → 课位（允许只填部分时间段）
type Day map[string]Slot

// Metadata 课表元数据，持久化时附加
type Metadata struct {
	CreatedAt    string `json:"createdAt,omitempty"`
	UpdatedAt    string `json:"updatedAt,omitempty"`
	CreatedBy    string `json:"createdBy,omitempty"`
	Semester     string `json:"semester,omitempty"`
	AcademicYear string `json:"academicYear,omitempty"`
	ClassGrade   string `json:"classGrade,omitempty"`
	Section      string `json:"section,omitempty"`
}

func (m *Metadata) isZero() bool {
	return m == nil || *m == Metadata{}
}

// Record 一份完整课表：星期 → Day，外加可选的 metadata
//
// JSON 形态为扁平对象：{"Monday": {...}, ..., "metadata": {...}}
type Record struct {
	Days     map[string]Day
	Metadata *Metadata
}

// Slot 返回指定课位；不存在时 ok=false
func (r Record) Slot(day, time string) (Slot, bool) {
	d, ok := r.Days[day]
	if !ok {
		return Slot{}, false
	}
	s, ok := d[time]
	return s, ok
}

// Set 写入课位，必要时创建当天
func (r *Record) Set(day, time string, slot Slot) {
	if r.Days == nil {
		r.Days = make(map[string]Day)
	}
	d, ok := r.Days[day]
	if !ok {
		d = make(Day)
		r.Days[day] = d
	}
	d[time] = slot
}

// MarshalJSON 输出扁平结构；星期按周一到周日、时间段按时刻先后输出，metadata 置于最后
func (r Record) MarshalJSON() ([]byte, error) {
	days := make([]string, 0, len(r.Days))
	for name := range r.Days {
		days = append(days, name)
	}
	sort.Slice(days, func(i, j int) bool { return dayLess(days[i], days[j]) })

	buf := new(bytes.Buffer)
	buf.WriteByte('{')
	for i, name := range days {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeMember(buf, name, r.Days[name]); err != nil {
			return nil, err
		}
	}
	if !r.Metadata.isZero() {
		if len(days) > 0 {
			buf.WriteByte(',')
		}
		if err := writeMember(buf, MetadataKey, r.Metadata); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalJSON 时间段按时刻先后输出
func (d Day) MarshalJSON() ([]byte, error) {
	times := make([]string, 0, len(d))
	for t := range d {
		times = append(times, t)
	}
	sort.Slice(times, func(i, j int) bool { return timeLess(times[i], times[j]) })

	buf := new(bytes.Buffer)
	buf.WriteByte('{')
	for i, t := range times {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeMember(buf, t, d[t]); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeMember(buf *bytes.Buffer, key string, val interface{}) error {
	k, err := json.Marshal(key)
	if err != nil {
		return err
	}
	v, err := json.Marshal(val)
	if err != nil {
		return err
	}
	buf.Write(k)
	buf.WriteByte(':')
	buf.Write(v)
	return nil
}

var weekdayRank = map[string]int{
	"Monday": 1, "Tuesday": 2, "Wednesday": 3, "Thursday": 4,
	"Friday": 5, "Saturday": 6, "Sunday": 7,
}

// dayLess 已知星期按周序在前，其余按字典序
func dayLess(a, b string) bool {
	ra, oka := weekdayRank[a]
	rb, okb := weekdayRank[b]
	switch {
	case oka && okb:
		return ra < rb
	case oka != okb:
		return oka
	}
	return a < b
}

// timeLess H:MM 形式按分钟数比较，无法解析的排在后面并按字典序
func timeLess(a, b string) bool {
	ma, oka := clockMinutes(a)
	mb, okb := clockMinutes(b)
	switch {
	case oka && okb && ma != mb:
		return ma < mb
	case oka != okb:
		return oka
	}
	return a < b
}

func clockMinutes(s string) (int, bool) {
	h, m, ok := strings.Cut(s, ":")
	if !ok {
		return 0, false
	}
	hh, err := strconv.Atoi(h)
	if err != nil || hh < 0 || hh > 23 {
		return 0, false
	}
	mm, err := strconv.Atoi(m)
	if err != nil || len(m) != 2 || mm < 0 || mm > 59 {
		return 0, false
	}
	return hh*60 + mm, true
}

// UnmarshalJSON 按类型解码；形状不符直接报错。
// 面向不可信输入请使用 Validator.Parse / Validator.Sanitize。
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.Days = make(map[string]Day, len(raw))
	r.Metadata = nil
	for key, msg := range raw {
		if key == MetadataKey {
			var m Metadata
			if err := json.Unmarshal(msg, &m); err != nil {
				return fmt.Errorf("metadata: %w", err)
			}
			r.Metadata = &m
			continue
		}
		var d Day
		if err := json.Unmarshal(msg, &d); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		r.Days[key] = d
	}
	return nil
}

// toUntyped 转为与 JSON 解码结果同构的无类型值，供 Validate/Sanitize 复用同一套规则
func (r Record) toUntyped() map[string]interface{} {
	out := make(map[string]interface{}, len(r.Days)+1)
	for name, d := range r.Days {
		day := make(map[string]interface{}, len(d))
		for t, s := range d {
			day[t] = s.toUntyped()
		}
		out[name] = day
	}
	if !r.Metadata.isZero() {
		m := r.Metadata
		meta := make(map[string]interface{})
		for k, val := range map[string]string{
			"createdAt":    m.CreatedAt,
			"updatedAt":    m.UpdatedAt,
			"createdBy":    m.CreatedBy,
			"semester":     m.Semester,
			"academicYear": m.AcademicYear,
			"classGrade":   m.ClassGrade,
			"section":      m.Section,
		} {
			if val != "" {
				meta[k] = val
			}
		}
		out[MetadataKey] = meta
	}
	return out
}

// CreateEmpty 生成空课表：所有星期、所有时间段均为 {subject:"", teacher:""}
func (v *Validator) CreateEmpty() Record {
	r := Record{Days: make(map[string]Day, len(v.cfg.Days))}
	for _, day := range v.cfg.Days {
		r.Days[day] = v.emptyDay()
	}
	return r
}

func (v *Validator) emptyDay() Day {
	d := make(Day, len(v.cfg.TimeSlots))
	for _, t := range v.cfg.TimeSlots {
		d[t] = Slot{}
	}
	return d
}

func (s Slot) toUntyped() map[string]interface{} {
	slot := map[string]interface{}{
		"subject": s.Subject,
		"teacher": s.Teacher,
	}
	if s.Room != "" {
		slot["room"] = s.Room
	}
	if s.Section != "" {
		slot["section"] = s.Section
	}
	if s.Duration != 0 {
		slot["duration"] = s.Duration
	}
	if s.Type != "" {
		slot["type"] = s.Type
	}
	return slot
}
