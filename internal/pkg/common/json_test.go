package common

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		ok    bool
	}{
		{
			name:  "bare object",
			input: `{"a":1}`,
			want:  `{"a":1}`,
			ok:    true,
		},
		{
			name:  "prose around object",
			input: "はい、こちらです。\n```json\n{\"a\":{\"b\":2}}\n```\n以上です。{\"c\":3}",
			want:  `{"a":{"b":2}}`,
			ok:    true,
		},
		{
			name:  "braces inside strings",
			input: `結果: {"name":"}{ 変な名前","steps":["a \"{\" b"]} おわり`,
			want:  `{"name":"}{ 変な名前","steps":["a \"{\" b"]}`,
			ok:    true,
		},
		{
			name:  "unbalanced falls back to last brace",
			input: `前 {"a": {"b":1} 後`,
			want:  `{"a": {"b":1}`,
			ok:    true,
		},
		{
			name:  "no object",
			input: "JSON はありません",
			ok:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractJSONObject(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestParseEmbeddedJSON(t *testing.T) {
	type payload struct {
		Name  string   `json:"name"`
		Items []string `json:"items"`
	}

	t.Run("strict", func(t *testing.T) {
		var p payload
		require.NoError(t, ParseEmbeddedJSON(`前置き {"name":"カレー","items":["a"]} 後書き`, &p))
		assert.Equal(t, "カレー", p.Name)
		assert.Equal(t, []string{"a"}, p.Items)
	})

	t.Run("repairs unquoted keys and trailing commas", func(t *testing.T) {
		var p payload
		require.NoError(t, ParseEmbeddedJSON(`{name: "肉じゃが", items: ["b", "c",],}`, &p))
		assert.Equal(t, "肉じゃが", p.Name)
		assert.Equal(t, []string{"b", "c"}, p.Items)
	})

	t.Run("repair leaves string values intact", func(t *testing.T) {
		var p payload
		require.NoError(t, ParseEmbeddedJSON(`{"name":"鮭, note: 塩焼き","items":["2切れ, note: 生鮭", "x,]",],}`, &p))
		assert.Equal(t, "鮭, note: 塩焼き", p.Name)
		assert.Equal(t, []string{"2切れ, note: 生鮭", "x,]"}, p.Items)
	})

	t.Run("no object", func(t *testing.T) {
		var p payload
		err := ParseEmbeddedJSON("なし", &p)
		assert.True(t, errors.Is(err, ErrNoJSONObject))
	})

	t.Run("garbage inside braces", func(t *testing.T) {
		var p payload
		assert.Error(t, ParseEmbeddedJSON("{これは JSON ではない}", &p))
	})
}

func TestFlexibleNumbers(t *testing.T) {
	type payload struct {
		Time    FlexibleInt   `json:"time"`
		Protein FlexibleFloat `json:"protein"`
	}

	tests := []struct {
		input   string
		time    int
		protein float64
	}{
		{`{"time":15,"protein":20.5}`, 15, 20.5},
		{`{"time":"約15分","protein":"20g"}`, 15, 20},
		{`{"time":14.6,"protein":null}`, 15, 0},
		{`{"time":"1,200kcal","protein":"3.5g"}`, 1200, 3.5},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var v payload
			require.NoError(t, json.Unmarshal([]byte(tt.input), &v))
			assert.Equal(t, tt.time, int(v.Time))
			assert.InDelta(t, tt.protein, float64(v.Protein), 0.001)
		})
	}

	var v payload
	assert.Error(t, json.Unmarshal([]byte(`{"time":"すぐ"}`), &v))
}

func TestCustomErrorMatching(t *testing.T) {
	err := Wrap(ErrNotFound, errors.New("row missing"))

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrConflict))
	assert.Contains(t, err.Error(), "row missing")

	ce := AsCustomError(errors.New("boom"))
	assert.Equal(t, ErrCodeInternalError, ce.Code)
	assert.Equal(t, 500, ce.Status)
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "豚肉と", TruncateRunes("豚肉とキャベツ", 3))
	assert.Equal(t, "短い", TruncateRunes("短い", 50))
}

func TestRepairSkipsStrings(t *testing.T) {
	assert.Equal(t, `{"a":"b, c: d", "e": 1}`, QuoteJSONKeys(`{"a":"b, c: d", e: 1}`))
	assert.Equal(t, `{"a":["x,]", "y \"z,}\""]}`, RemoveTrailingCommas(`{"a":["x,]", "y \"z,}\"",],}`))
}
