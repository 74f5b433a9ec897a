package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Decode 将原始 JSON 解码为无类型值（数字保留为 json.Number）
func Decode(raw []byte) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("课表 JSON 解析失败: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("课表 JSON 解析失败: 存在多余内容")
	}
	return v, nil
}

// Parse 无类型输入的边界：先校验，通过后返回强类型 Record。
// 仅当 JSON 本身格式错误时返回 error；校验失败通过 Result 报告，此时 Record 为零值。
func (v *Validator) Parse(raw []byte) (Record, Result, error) {
	candidate, err := Decode(raw)
	if err != nil {
		return Record{}, Result{}, err
	}
	rec, res := v.ParseValue(candidate)
	return rec, res, nil
}

// ParseValue 对已解码的值执行 Parse 语义
func (v *Validator) ParseValue(candidate interface{}) (Record, Result) {
	res := v.Validate(candidate)
	if !res.IsValid {
		return Record{}, res
	}
	tt, _ := asObject(candidate)
	return v.decodeValid(tt), res
}

// decodeValid 按原样拷贝已通过校验的输入中可识别的字段（不做 trim）
func (v *Validator) decodeValid(tt map[string]interface{}) Record {
	out := Record{Days: make(map[string]Day, len(v.cfg.Days))}
	for _, day := range v.cfg.Days {
		src, _ := asObject(tt[day])
		d := make(Day, len(src))
		for _, t := range v.cfg.TimeSlots {
			raw, present := src[t]
			if !present {
				continue
			}
			slotSrc, ok := asObject(raw)
			if !ok {
				// 通过校验的假值课位（null、""）按空课位处理
				d[t] = Slot{}
				continue
			}
			var s Slot
			s.Subject, _ = slotSrc["subject"].(string)
			s.Teacher, _ = slotSrc["teacher"].(string)
			s.Room, _ = slotSrc["room"].(string)
			s.Section, _ = slotSrc["section"].(string)
			if n, ok := asInteger(slotSrc["duration"]); ok {
				s.Duration = int(n)
			}
			s.Type, _ = slotSrc["type"].(string)
			d[t] = s
		}
		out.Days[day] = d
	}
	if meta, ok := tt[MetadataKey].(map[string]interface{}); ok {
		m := &Metadata{}
		m.CreatedAt, _ = meta["createdAt"].(string)
		m.UpdatedAt, _ = meta["updatedAt"].(string)
		m.CreatedBy, _ = meta["createdBy"].(string)
		m.Semester, _ = meta["semester"].(string)
		m.AcademicYear, _ = meta["academicYear"].(string)
		m.ClassGrade, _ = meta["classGrade"].(string)
		m.Section, _ = meta["section"].(string)
		if !m.isZero() {
			out.Metadata = m
		}
	}
	return out
}
