package log

import (
	"fmt"
	"sort"
	"strings"
)

// Fields 日志上下文，一般每个连接持有一份
// 非线程安全，只读使用
type Fields map[string]any

const (
	prefixKey = "__prefix__"
)

func (f Fields) String() string {
	keys := make([]string, 0, len(f))
	for k := range f {
		if k != prefixKey {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	var sb strings.Builder
	if prefix := f.Prefix(); prefix != "" {
		sb.WriteString("[" + prefix + "]")
	}
	for _, k := range keys {
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(fmt.Sprintf("%s=%+v", k, f[k]))
	}
	return sb.String()
}

func (f Fields) prepend(format string) string {
	return f.String() + " " + format
}

func (f Fields) WithPrefix(prefix string) Fields {
	return MergeFields(f, Fields{prefixKey: prefix})
}

// MergeFields 合并，结果不影响原来的数据
func MergeFields(f Fields, fields ...Fields) Fields {
	all := make(Fields, len(f))
	for k, v := range f {
		all[k] = v
	}
	for _, field := range fields {
		for k, v := range field {
			all[k] = v
		}
	}
	return all
}

func (f Fields) With(key string, value any) Fields {
	return MergeFields(f, Fields{key: value})
}

func (f Fields) Prefix() string {
	if prefix, ok := f[prefixKey]; ok {
		return prefix.(string)
	}
	return ""
}

func (f Fields) Debug(format string, a ...any) {
	Debug(f.prepend(format), a...)
}

func (f Fields) Info(format string, a ...any) {
	Info(f.prepend(format), a...)
}

func (f Fields) Warn(format string, a ...any) {
	Warn(f.prepend(format), a...)
}

func (f Fields) Error(format string, a ...any) {
	Error(f.prepend(format), a...)
}
