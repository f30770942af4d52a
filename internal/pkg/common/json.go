package common

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// ErrNoJSONObject 文字中找不到 JSON 物件
var ErrNoJSONObject = errors.New("no JSON object found")

// ParseJSON 解析 JSON 字符串到結構體
func ParseJSON(data string, v interface{}) error {
	return decodeJSON(strings.NewReader(data), v, false)
}

// ParseJSONStrict 解析 JSON 字符串到結構體（禁止未知欄位）
func ParseJSONStrict(data string, v interface{}) error {
	return decodeJSON(strings.NewReader(data), v, true)
}

// ParseJSONBytes 解析 JSON 位元組切片到結構體
func ParseJSONBytes(data []byte, v interface{}) error {
	return decodeJSON(bytes.NewReader(data), v, false)
}

// DecodeJSON 使用統一設定解析 JSON
func DecodeJSON(r io.Reader, v interface{}) error {
	return decodeJSON(r, v, false)
}

func decodeJSON(r io.Reader, v interface{}, disallowUnknown bool) error {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if disallowUnknown {
		dec.DisallowUnknownFields()
	}

	if err := dec.Decode(v); err != nil {
		return err
	}

	// 確保沒有多餘資料
	for {
		t, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if t != nil {
			return fmt.Errorf("unexpected extra JSON data")
		}
	}
}

// ExtractJSONObject 從模型輸出中取出第一個括號平衡的 JSON 物件。
// 字串內的括號與跳脫字元不計入深度；若整段都不平衡，退回第一個 { 到最後一個 } 的範圍。
func ExtractJSONObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}

	end := strings.LastIndexByte(text, '}')
	if end <= start {
		return "", false
	}
	return text[start : end+1], true
}

var (
	unquotedKeyPattern   = regexp.MustCompile(`([{\[,]\s*)([A-Za-z_][A-Za-z0-9_]*)\s*:`)
	trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)
)

// QuoteJSONKeys 將未加雙引號的鍵補上雙引號，字串值內容不受影響
func QuoteJSONKeys(raw string) string {
	return rewriteOutsideStrings(raw, func(seg string) string {
		return unquotedKeyPattern.ReplaceAllString(seg, `$1"$2":`)
	})
}

// RemoveTrailingCommas 移除物件或陣列結尾多餘的逗號，字串值內容不受影響
func RemoveTrailingCommas(raw string) string {
	return rewriteOutsideStrings(raw, func(seg string) string {
		return trailingCommaPattern.ReplaceAllString(seg, `$1`)
	})
}

// rewriteOutsideStrings 只對雙引號字串以外的片段套用 fn
func rewriteOutsideStrings(raw string, fn func(string) string) string {
	var b strings.Builder
	b.Grow(len(raw))

	seg := 0
	inString := false
	escaped := false
	for i := 0; i < len(raw); i++ {
		ch := raw[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
				b.WriteString(raw[seg : i+1])
				seg = i + 1
			}
			continue
		}
		if ch == '"' {
			b.WriteString(fn(raw[seg:i]))
			seg = i
			inString = true
		}
	}

	if inString {
		b.WriteString(raw[seg:])
	} else {
		b.WriteString(fn(raw[seg:]))
	}
	return b.String()
}

// ParseEmbeddedJSON 從自由文字中取出 JSON 物件並解析，嚴格解析失敗時嘗試修補後再解析一次
func ParseEmbeddedJSON(text string, v interface{}) error {
	raw, ok := ExtractJSONObject(text)
	if !ok {
		return ErrNoJSONObject
	}

	err := ParseJSON(raw, v)
	if err == nil {
		return nil
	}

	repaired := RemoveTrailingCommas(QuoteJSONKeys(raw))
	if repaired == raw {
		return err
	}
	if err2 := ParseJSON(repaired, v); err2 != nil {
		return err
	}
	return nil
}

// ToJSON 將結構體轉換為 JSON 字符串
func ToJSON(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// StringSliceToString 將字符串切片以「、」連接
func StringSliceToString(slice []string) string {
	if len(slice) == 0 {
		return ""
	}
	return strings.Join(slice, "、")
}
