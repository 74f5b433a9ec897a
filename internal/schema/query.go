package schema

import (
	"sort"
	"strings"
)

// UniqueSubjects 返回课表中出现过的全部非空科目（去重、升序）
func (v *Validator) UniqueSubjects(r Record) []string {
	return v.collect(r, func(s Slot) string { return s.Subject })
}

// UniqueTeachers 返回课表中出现过的全部非空教师（去重、升序）
func (v *Validator) UniqueTeachers(r Record) []string {
	return v.collect(r, func(s Slot) string { return s.Teacher })
}

func (v *Validator) collect(r Record, pick func(Slot) string) []string {
	seen := make(map[string]struct{})
	for _, day := range v.cfg.Days {
		d, ok := r.Days[day]
		if !ok {
			continue
		}
		for _, t := range v.cfg.TimeSlots {
			s, ok := d[t]
			if !ok {
				continue
			}
			val := pick(s)
			if strings.TrimSpace(val) == "" {
				continue
			}
			seen[val] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for val := range seen {
		out = append(out, val)
	}
	sort.Strings(out)
	return out
}

// Booking 一次排课占用，Source 标识来源（如课表文档 ID）
type Booking struct {
	Day     string `json:"day"`
	Time    string `json:"timeSlot"`
	Subject string `json:"subject"`
	Teacher string `json:"teacher"`
	Source  string `json:"source,omitempty"`
}

// Conflict 同一教师在同一 (day, time) 被占用两次
type Conflict struct {
	Day      string    `json:"day"`
	TimeSlot string    `json:"timeSlot"`
	Subjects [2]string `json:"subjects"`
	Sources  [2]string `json:"sources"`
}

// Bookings 按规范顺序展开课表中所有已填写教师的课位
func (v *Validator) Bookings(r Record, source string) []Booking {
	var out []Booking
	for _, day := range v.cfg.Days {
		d, ok := r.Days[day]
		if !ok {
			continue
		}
		for _, t := range v.cfg.TimeSlots {
			s, ok := d[t]
			if !ok || s.Teacher == "" {
				continue
			}
			out = append(out, Booking{Day: day, Time: t, Subject: s.Subject, Teacher: s.Teacher, Source: source})
		}
	}
	return out
}

// TeacherConflicts 检测单份课表中某教师的时间冲突。
//
// 规范结构下每个 (day, time) 只有一个课位，因此结果恒为空；
// 跨多份课表的冲突请用 TeacherConflictsIn。
func (v *Validator) TeacherConflicts(r Record, teacher string) []Conflict {
	return TeacherConflictsIn(v.Bookings(r, ""), teacher)
}

// TeacherConflictsIn 在允许重复 (day, time) 的占用列表上检测冲突。
// 每个 (day, time) 以首次出现的占用为准，之后的每次重复各产生一条冲突。
func TeacherConflictsIn(bookings []Booking, teacher string) []Conflict {
	conflicts := []Conflict{}
	first := make(map[string]Booking)
	for _, b := range bookings {
		if b.Teacher != teacher || strings.TrimSpace(b.Subject) == "" {
			continue
		}
		key := b.Day + "-" + b.Time
		prev, ok := first[key]
		if !ok {
			first[key] = b
			continue
		}
		conflicts = append(conflicts, Conflict{
			Day:      b.Day,
			TimeSlot: b.Time,
			Subjects: [2]string{prev.Subject, b.Subject},
			Sources:  [2]string{prev.Source, b.Source},
		})
	}
	return conflicts
}
