// Package schema 定义课表文档的规范结构，并提供校验、清洗与派生查询。
//
// 所有操作都是纯函数：不持有跨调用状态，不做 I/O，可被任意数量的 goroutine
// 并发调用。规范结构（星期、时间段、课程类型、长度上限）通过 Config 注入，
// 而不是包级全局变量。
package schema

import (
	"fmt"
	"regexp"
	"strings"
)

// 规范取值
var (
	defaultDays         = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"}
	defaultTimeSlots    = []string{"9:00", "10:00", "11:00", "12:00", "13:00", "14:00", "15:00", "16:00"}
	defaultSessionTypes = []string{"lecture", "lab", "tutorial", "break", "study", "practical"}
)

// academicYearPattern 学年格式 YYYY-YYYY
var academicYearPattern = regexp.MustCompile(`^\d{4}-\d{4}$`)

// MetadataKey 顶层元数据字段名
const MetadataKey = "metadata"

// Config 课表规范结构配置
type Config struct {
	Days             []string `mapstructure:"days"`
	TimeSlots        []string `mapstructure:"time_slots"`
	SessionTypes     []string `mapstructure:"session_types"`
	MaxSubjectLength int      `mapstructure:"max_subject_length"`
	MaxTeacherLength int      `mapstructure:"max_teacher_length"`
	MaxRoomLength    int      `mapstructure:"max_room_length"`
	MaxSectionLength int      `mapstructure:"max_section_length"`
	MinDuration      int      `mapstructure:"min_duration"`
	MaxDuration      int      `mapstructure:"max_duration"`
	// MaxMetadataLength 限制 metadata 中 semester/classGrade 的长度；metadata.section 沿用 MaxSectionLength
	MaxMetadataLength int `mapstructure:"max_metadata_length"`
	// StrictKeys 为 true 时 Validate 额外报告未知的顶层键、时间段键和课位字段
	StrictKeys bool `mapstructure:"strict_keys"`
}

// DefaultConfig 返回规范配置（周一至周五 × 9:00-16:00 共 8 个时间段）
func DefaultConfig() Config {
	return Config{
		Days:              append([]string(nil), defaultDays...),
		TimeSlots:         append([]string(nil), defaultTimeSlots...),
		SessionTypes:      append([]string(nil), defaultSessionTypes...),
		MaxSubjectLength:  100,
		MaxTeacherLength:  100,
		MaxRoomLength:     50,
		MaxSectionLength:  10,
		MaxMetadataLength: 50,
		MinDuration:       1,
		MaxDuration:       480,
	}
}

// Check 校验配置自身的一致性
func (c Config) Check() error {
	if len(c.Days) == 0 {
		return fmt.Errorf("timetable.days 不能为空")
	}
	if len(c.TimeSlots) == 0 {
		return fmt.Errorf("timetable.time_slots 不能为空")
	}
	if len(c.SessionTypes) == 0 {
		return fmt.Errorf("timetable.session_types 不能为空")
	}
	if hasDuplicate(c.Days) || hasDuplicate(c.TimeSlots) {
		return fmt.Errorf("timetable.days / time_slots 不能包含重复项")
	}
	for _, d := range c.Days {
		if d == MetadataKey {
			return fmt.Errorf("timetable.days 不能包含保留字 %q", MetadataKey)
		}
	}
	if c.MaxSubjectLength <= 0 || c.MaxTeacherLength <= 0 || c.MaxRoomLength <= 0 ||
		c.MaxSectionLength <= 0 || c.MaxMetadataLength <= 0 {
		return fmt.Errorf("timetable 字段长度上限必须为正数")
	}
	if c.MinDuration <= 0 || c.MinDuration > c.MaxDuration {
		return fmt.Errorf("timetable.min_duration 必须为正且不大于 max_duration")
	}
	return nil
}

func (c Config) clone() Config {
	out := c
	out.Days = append([]string(nil), c.Days...)
	out.TimeSlots = append([]string(nil), c.TimeSlots...)
	out.SessionTypes = append([]string(nil), c.SessionTypes...)
	return out
}

func hasDuplicate(list []string) bool {
	seen := make(map[string]struct{}, len(list))
	for _, s := range list {
		if _, ok := seen[s]; ok {
			return true
		}
		seen[s] = struct{}{}
	}
	return false
}

// Validator 绑定一份不可变配置的校验器
type Validator struct {
	cfg      Config
	types    map[string]struct{}
	days     map[string]struct{}
	slots    map[string]struct{}
	typeList string
}

// New 以给定配置创建校验器；配置在内部拷贝，调用方后续修改不影响校验器
func New(cfg Config) *Validator {
	cfg = cfg.clone()
	v := &Validator{
		cfg:   cfg,
		types: toSet(cfg.SessionTypes),
		days:  toSet(cfg.Days),
		slots: toSet(cfg.TimeSlots),
	}
	v.typeList = strings.Join(cfg.SessionTypes, ", ")
	return v
}

// Default 以规范配置创建校验器
func Default() *Validator {
	return New(DefaultConfig())
}

// Config 返回配置副本
func (v *Validator) Config() Config {
	return v.cfg.clone()
}

// IsSessionType 判断是否为合法课程类型
func (v *Validator) IsSessionType(t string) bool {
	_, ok := v.types[t]
	return ok
}

func toSet(list []string) map[string]struct{} {
	m := make(map[string]struct{}, len(list))
	for _, s := range list {
		m[s] = struct{}{}
	}
	return m
}
