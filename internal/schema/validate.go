package schema

import (
	"fmt"
	"sort"
	"time"
)

// IssueKind 错误类别
type IssueKind string

const (
	// StructuralIssue 课表、某天或某课位不是对象
	StructuralIssue IssueKind = "structural"
	// FieldIssue 字段缺失、类型错误、超长、越界或不在枚举内
	FieldIssue IssueKind = "field"
)

// Issue 单条校验错误
type Issue struct {
	Kind    IssueKind `json:"kind"`
	Day     string    `json:"day,omitempty"`
	Time    string    `json:"time,omitempty"`
	Field   string    `json:"field,omitempty"`
	Message string    `json:"message"`
}

// Result 校验结果。Errors 与 Issues 一一对应、顺序一致。
type Result struct {
	IsValid bool     `json:"isValid"`
	Errors  []string `json:"errors"`
	Issues  []Issue  `json:"issues,omitempty"`
}

type collector struct {
	issues []Issue
}

func (c *collector) add(kind IssueKind, day, time, field, format string, args ...interface{}) {
	c.issues = append(c.issues, Issue{
		Kind:    kind,
		Day:     day,
		Time:    time,
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	})
}

func (c *collector) result() Result {
	errs := make([]string, 0, len(c.issues))
	for _, is := range c.issues {
		errs = append(errs, is.Message)
	}
	return Result{IsValid: len(errs) == 0, Errors: errs, Issues: c.issues}
}

// Validate 严格校验候选课表，报告所有偏离规范结构之处；从不 panic，也不修改输入。
//
// 候选值可以是 JSON 解码得到的 interface{}，也可以是 Record / *Record。
// 星期按配置顺序检查，每天内时间段按配置顺序检查；错误逐条累积，
// 仅在某天或某课位本身不是对象时跳过其内部检查。
func (v *Validator) Validate(candidate interface{}) Result {
	var c collector

	tt, ok := asObject(candidate)
	if !ok {
		c.add(StructuralIssue, "", "", "", "Timetable must be an object")
		return c.result()
	}

	for _, day := range v.cfg.Days {
		raw := tt[day]
		if !truthy(raw) {
			c.add(StructuralIssue, day, "", "", "Missing day: %s", day)
			continue
		}
		slots, ok := asObject(raw)
		if !ok {
			c.add(StructuralIssue, day, "", "", "%s must be an object", day)
			continue
		}
		for _, t := range v.cfg.TimeSlots {
			if slot := slots[t]; truthy(slot) {
				v.validateSlot(&c, slot, day, t)
			}
		}
	}

	if meta, present := tt[MetadataKey]; present && meta != nil {
		v.validateMetadata(&c, meta)
	}

	if v.cfg.StrictKeys {
		v.validateKeys(&c, tt)
	}

	return c.result()
}

// ValidateSlot 单独校验一个课位，day/time 仅用于错误描述
func (v *Validator) ValidateSlot(slot interface{}, day, time string) []string {
	var c collector
	if s, ok := slot.(Slot); ok {
		slot = s.toUntyped()
	}
	v.validateSlot(&c, slot, day, time)
	return c.result().Errors
}

func (v *Validator) validateSlot(c *collector, raw interface{}, day, t string) {
	slot, ok := asObject(raw)
	if !ok {
		c.add(StructuralIssue, day, t, "", "Invalid slot object for %s at %s", day, t)
		return
	}

	// 必填字段
	if val, present := slot["subject"]; !present {
		c.add(FieldIssue, day, t, "subject", "Missing subject for %s at %s", day, t)
	} else if s, isStr := val.(string); !isStr {
		c.add(FieldIssue, day, t, "subject", "Subject must be a string for %s at %s", day, t)
	} else if charLen(s) > v.cfg.MaxSubjectLength {
		c.add(FieldIssue, day, t, "subject", "Subject too long for %s at %s (max %d characters)", day, t, v.cfg.MaxSubjectLength)
	}

	if val, present := slot["teacher"]; !present {
		c.add(FieldIssue, day, t, "teacher", "Missing teacher for %s at %s", day, t)
	} else if s, isStr := val.(string); !isStr {
		c.add(FieldIssue, day, t, "teacher", "Teacher must be a string for %s at %s", day, t)
	} else if charLen(s) > v.cfg.MaxTeacherLength {
		c.add(FieldIssue, day, t, "teacher", "Teacher name too long for %s at %s (max %d characters)", day, t, v.cfg.MaxTeacherLength)
	}

	// 可选字段
	if val := slot["room"]; truthy(val) {
		if s, isStr := val.(string); !isStr {
			c.add(FieldIssue, day, t, "room", "Room must be a string for %s at %s", day, t)
		} else if charLen(s) > v.cfg.MaxRoomLength {
			c.add(FieldIssue, day, t, "room", "Room name too long for %s at %s (max %d characters)", day, t, v.cfg.MaxRoomLength)
		}
	}

	if val := slot["section"]; truthy(val) {
		if s, isStr := val.(string); !isStr {
			c.add(FieldIssue, day, t, "section", "Section must be a string for %s at %s", day, t)
		} else if charLen(s) > v.cfg.MaxSectionLength {
			c.add(FieldIssue, day, t, "section", "Section name too long for %s at %s (max %d characters)", day, t, v.cfg.MaxSectionLength)
		}
	}

	if val, present := slot["duration"]; present {
		n, isInt := asInteger(val)
		if !isInt {
			c.add(FieldIssue, day, t, "duration", "Duration must be an integer for %s at %s", day, t)
		} else if n < int64(v.cfg.MinDuration) || n > int64(v.cfg.MaxDuration) {
			c.add(FieldIssue, day, t, "duration", "Duration must be between %d and %d minutes for %s at %s",
				v.cfg.MinDuration, v.cfg.MaxDuration, day, t)
		}
	}

	if val := slot["type"]; truthy(val) {
		if s, isStr := val.(string); !isStr || !v.IsSessionType(s) {
			c.add(FieldIssue, day, t, "type", "Invalid session type for %s at %s. Must be one of: %s", day, t, v.typeList)
		}
	}
}

var metadataFields = map[string]struct{}{
	"createdAt": {}, "updatedAt": {}, "createdBy": {}, "semester": {},
	"academicYear": {}, "classGrade": {}, "section": {},
}

func (v *Validator) validateMetadata(c *collector, raw interface{}) {
	meta, ok := raw.(map[string]interface{})
	if !ok {
		c.add(StructuralIssue, "", "", MetadataKey, "Metadata must be an object")
		return
	}
	for _, key := range sortedKeys(meta) {
		if _, known := metadataFields[key]; !known {
			if v.cfg.StrictKeys {
				c.add(FieldIssue, "", "", MetadataKey, "Unknown metadata field: %s", key)
			}
			continue
		}
		val := meta[key]
		if val == nil {
			continue
		}
		s, isStr := val.(string)
		if !isStr {
			c.add(FieldIssue, "", "", key, "Metadata %s must be a string", key)
			continue
		}
		switch key {
		case "createdAt", "updatedAt":
			if s != "" && !isTimestamp(s) {
				c.add(FieldIssue, "", "", key, "Metadata %s must be an ISO 8601 date-time", key)
			}
		case "academicYear":
			if s != "" && !academicYearPattern.MatchString(s) {
				c.add(FieldIssue, "", "", key, "Metadata academicYear must match YYYY-YYYY")
			}
		case "semester", "classGrade", "section":
			if max := v.metadataLimit(key); charLen(s) > max {
				c.add(FieldIssue, "", "", key, "Metadata %s too long (max %d characters)", key, max)
			}
		}
	}
}

// metadataLimit 元数据字符串字段的长度上限
func (v *Validator) metadataLimit(key string) int {
	if key == "section" {
		return v.cfg.MaxSectionLength
	}
	return v.cfg.MaxMetadataLength
}

// validateKeys 报告规范结构之外的键（仅 StrictKeys 模式）
func (v *Validator) validateKeys(c *collector, tt map[string]interface{}) {
	for _, key := range sortedKeys(tt) {
		if key == MetadataKey {
			continue
		}
		if _, ok := v.days[key]; !ok {
			c.add(FieldIssue, key, "", "", "Unknown day: %s", key)
		}
	}
	for _, day := range v.cfg.Days {
		slots, ok := tt[day].(map[string]interface{})
		if !ok {
			continue
		}
		for _, t := range sortedKeys(slots) {
			if _, ok := v.slots[t]; !ok {
				c.add(FieldIssue, day, t, "", "Unknown time slot %s on %s", t, day)
				continue
			}
			slot, ok := slots[t].(map[string]interface{})
			if !ok {
				continue
			}
			for _, f := range sortedKeys(slot) {
				if _, known := slotFields[f]; !known {
					c.add(FieldIssue, day, t, f, "Unknown field %s for %s at %s", f, day, t)
				}
			}
		}
	}
}

var slotFields = map[string]struct{}{
	"subject": {}, "teacher": {}, "room": {}, "section": {}, "duration": {}, "type": {},
}

func isTimestamp(s string) bool {
	if _, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return true
	}
	// 兼容 JavaScript toISOString 以外的常见写法
	_, err := time.Parse("2006-01-02T15:04:05", s)
	return err == nil
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
