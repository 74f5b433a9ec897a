package schema

import (
	"encoding/json"
	"math"
	"strconv"
	"unicode/utf8"
)

// ── 无类型输入的判定工具 ──
//
// 输入为 encoding/json 解码到 interface{} 的结果（可能启用 UseNumber），
// 或由 Record.toUntyped 生成的同构值。只有 map[string]interface{} 视为对象，
// 数组不是对象。

func asObject(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case map[string]interface{}:
		return m, m != nil
	case Record:
		return m.toUntyped(), true
	case *Record:
		if m == nil {
			return nil, false
		}
		return m.toUntyped(), true
	}
	return nil, false
}

// truthy 按 JSON 值的真假语义判断：null、false、0、"" 为假
func truthy(v interface{}) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case float64:
		return x != 0 && !math.IsNaN(x)
	case float32:
		return x != 0
	case int:
		return x != 0
	case int64:
		return x != 0
	case int32:
		return x != 0
	case json.Number:
		f, err := x.Float64()
		return err != nil || f != 0
	}
	return true
}

// asInteger 判断是否为整数值
func asInteger(v interface{}) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case float64:
		if math.IsInf(x, 0) || math.IsNaN(x) || x != math.Trunc(x) {
			return 0, false
		}
		if x > math.MaxInt64 || x < math.MinInt64 {
			return 0, false
		}
		return int64(x), true
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n, true
		}
		f, err := strconv.ParseFloat(string(x), 64)
		if err != nil {
			return 0, false
		}
		return asInteger(f)
	}
	return 0, false
}

func charLen(s string) int {
	return utf8.RuneCountInString(s)
}

// truncate 按字符截断
func truncate(s string, max int) string {
	if charLen(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max])
}
