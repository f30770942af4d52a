package common

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Ingredient 食材（分量為人類可讀字串，不做單位正規化）
type Ingredient struct {
	Name   string `json:"name" validate:"required"`
	Amount string `json:"amount"`
}

// Nutrition 營養素概算（公克）
type Nutrition struct {
	Protein float64 `json:"protein" validate:"gte=0"`
	Fat     float64 `json:"fat" validate:"gte=0"`
	Carbs   float64 `json:"carbs" validate:"gte=0"`
}

// SideDish 配菜建議
type SideDish struct {
	Name        string `json:"name"`
	Category    string `json:"category"`
	Description string `json:"description,omitempty"`
}

// Recipe 食譜，生成後不可變
type Recipe struct {
	ID          string       `json:"id"`
	Name        string       `json:"name" validate:"required"`
	Ingredients []Ingredient `json:"ingredients" validate:"required,min=1,dive"`
	Steps       []string     `json:"steps" validate:"min=5,max=8,dive,required"`
	CookingTime int          `json:"cookingTime" validate:"gt=0"`
	Calories    int          `json:"calories" validate:"gt=0"`
	Nutrition   Nutrition    `json:"nutrition"`
	Category    string       `json:"category,omitempty"`
	ImageURL    string       `json:"imageUrl,omitempty"`
	SourceURL   string       `json:"sourceUrl,omitempty"`
	SourceName  string       `json:"sourceName,omitempty"`
	SideDishes  []SideDish   `json:"sideDishes,omitempty"`
}

// Role 對話角色
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn 對話歷史中的一則訊息
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

var leadingNumberPattern = regexp.MustCompile(`-?\d+(\.\d+)?`)

// FlexibleInt 接受 15、15.4、"15"、"約15分" 等形式的整數
type FlexibleInt int

// UnmarshalJSON 解析數字或含數字的字串
func (f *FlexibleInt) UnmarshalJSON(data []byte) error {
	v, err := parseFlexibleNumber(data)
	if err != nil {
		return err
	}
	*f = FlexibleInt(int(math.Round(v)))
	return nil
}

// FlexibleFloat 接受數字或 "20g" 之類的字串
type FlexibleFloat float64

// UnmarshalJSON 解析數字或含數字的字串
func (f *FlexibleFloat) UnmarshalJSON(data []byte) error {
	v, err := parseFlexibleNumber(data)
	if err != nil {
		return err
	}
	*f = FlexibleFloat(v)
	return nil
}

func parseFlexibleNumber(data []byte) (float64, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return 0, nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return 0, err
		}
		m := leadingNumberPattern.FindString(strings.ReplaceAll(s, ",", ""))
		if m == "" {
			return 0, fmt.Errorf("no number in %q", s)
		}
		return strconv.ParseFloat(m, 64)
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return 0, err
	}
	return n.Float64()
}
