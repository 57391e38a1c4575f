// Package llmout 提供模型输出的容错解析
package llmout

import (
	"encoding/json"
	"strings"
)

// ExtractJSONObject 从模型输出中截取第一个完整 JSON 对象/数组。
// 模型可能在 JSON 前后夹杂解释性文本或代码块围栏，这里尽量剥离。
func ExtractJSONObject(s string) string {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return raw
	}

	// 剥离 Markdown 代码块围栏
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		if idx := strings.LastIndex(raw, "```"); idx >= 0 {
			raw = raw[:idx]
		}
		raw = strings.TrimSpace(raw)
	}

	objStart := strings.Index(raw, "{")
	arrStart := strings.Index(raw, "[")
	start, end := -1, -1
	switch {
	case objStart >= 0 && (arrStart < 0 || objStart < arrStart):
		start = objStart
		end = strings.LastIndex(raw, "}")
	case arrStart >= 0:
		start = arrStart
		end = strings.LastIndex(raw, "]")
	}
	if start >= 0 && end > start {
		raw = raw[start : end+1]
	}

	if !json.Valid([]byte(raw)) {
		return strings.TrimSpace(s)
	}
	return raw
}

// Decode 截取模型输出中的 JSON 并反序列化到 dest
func Decode(s string, dest any) error {
	raw := ExtractJSONObject(s)
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(dest)
}
