// Package validator 在 gin 的绑定校验器上注册项目自定义规则，并提供中文错误翻译。
package validator

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"
)

// 自定义标签
const (
	TagAcademicYear = "academic_year"
	TagDocID        = "doc_id"
	TagAppRole      = "app_role"
)

var (
	academicYearRegex = regexp.MustCompile(`^\d{4}-\d{4}$`)
	docIDRegex        = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

	roles = map[string]struct{}{"admin": {}, "teacher": {}, "student": {}}
)

var (
	once       sync.Once
	initErr    error
	translator ut.Translator
)

// Init 注册到 gin 默认绑定校验器，重复调用安全
func Init() error {
	once.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			initErr = errors.New("gin 绑定校验器不是 validator/v10")
			return
		}
		initErr = Register(v)
	})
	return initErr
}

// Register 在给定校验器上注册自定义规则与中文翻译
func Register(v *validator.Validate) error {
	zhLocale := zh.New()
	uni := ut.New(zhLocale, zhLocale)
	trans, _ := uni.GetTranslator("zh")

	if err := zh_translations.RegisterDefaultTranslations(v, trans); err != nil {
		return fmt.Errorf("注册默认翻译失败: %w", err)
	}

	// 错误信息使用 JSON 字段名
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"json", "form"} {
			name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return fld.Name
	})

	custom := []struct {
		tag  string
		fn   validator.Func
		text string
	}{
		{TagAcademicYear, isAcademicYear, "{0}必须符合 YYYY-YYYY 格式"},
		{TagDocID, isDocID, "{0}只能包含小写字母、数字、下划线和连字符，且不超过 64 个字符"},
		{TagAppRole, isAppRole, "{0}必须是 admin、teacher 或 student"},
	}
	for _, c := range custom {
		if err := v.RegisterValidation(c.tag, c.fn); err != nil {
			return fmt.Errorf("注册校验规则 %s 失败: %w", c.tag, err)
		}
		text, tag := c.text, c.tag
		err := v.RegisterTranslation(tag, trans,
			func(t ut.Translator) error { return t.Add(tag, text, true) },
			func(t ut.Translator, fe validator.FieldError) string {
				s, _ := t.T(tag, fe.Field())
				return s
			},
		)
		if err != nil {
			return fmt.Errorf("注册翻译 %s 失败: %w", c.tag, err)
		}
	}

	translator = trans
	return nil
}

// Translate 将绑定错误转为可读的中文描述；非校验错误原样返回
func Translate(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || translator == nil {
		return err.Error()
	}
	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		msgs = append(msgs, fe.Translate(translator))
	}
	return strings.Join(msgs, "; ")
}

// IsDocID 文档 ID 是否合法（供路由参数等非绑定场景使用）
func IsDocID(s string) bool {
	return docIDRegex.MatchString(s)
}

// IsAppRole 是否为合法角色
func IsAppRole(s string) bool {
	_, ok := roles[s]
	return ok
}

func isAcademicYear(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	return s == "" || academicYearRegex.MatchString(s)
}

func isDocID(fl validator.FieldLevel) bool {
	return IsDocID(fl.Field().String())
}

func isAppRole(fl validator.FieldLevel) bool {
	return IsAppRole(fl.Field().String())
}
