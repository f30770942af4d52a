package preference

import "strings"

// 偏好類型
const (
	TypeCuisine            = "cuisine_type"
	TypeFavoriteIngredient = "favorite_ingredient"
	TypeCookingTime        = "cooking_time"
	TypeDietary            = "dietary_restriction"
	TypeDislikeIngredient  = "dislike_ingredient"
	TypeOther              = "other"
)

// Signal 從使用者訊息中擷取的偏好訊號
type Signal struct {
	Type  string
	Key   string
	Value string
}

// rule 關鍵字規則，任一關鍵字命中即產生訊號
type rule struct {
	keywords []string
	signal   Signal
}

// CuisineRule 料理類型關鍵字
type CuisineRule struct {
	Keywords []string
	Cuisine  string
}

// CuisineRules 依序比對的料理類型規則
var CuisineRules = []CuisineRule{
	{Keywords: []string{"和食", "和風", "日本料理"}, Cuisine: "和食"},
	{Keywords: []string{"中華", "中国料理"}, Cuisine: "中華"},
	{Keywords: []string{"洋食", "洋風", "イタリアン", "フレンチ"}, Cuisine: "洋食"},
	{Keywords: []string{"韓国", "韓国料理"}, Cuisine: "韓国料理"},
}

var habitRules = []rule{
	{keywords: []string{"時短", "早く", "簡単"}, signal: Signal{Type: TypeCookingTime, Key: "short", Value: "30分以内"}},
	{keywords: []string{"健康", "ヘルシー", "低カロリー"}, signal: Signal{Type: TypeDietary, Key: "healthy", Value: "低カロリー"}},
	{keywords: []string{"辛い", "スパイシー"}, signal: Signal{Type: TypeOther, Key: "spicy", Value: "辛いもの好き"}},
}

// ExtractSignals 以關鍵字比對擷取偏好訊號，純函數
func ExtractSignals(text string) []Signal {
	lower := strings.ToLower(text)
	var signals []Signal

	for _, r := range CuisineRules {
		if containsAny(lower, r.Keywords) {
			signals = append(signals, Signal{Type: TypeCuisine, Key: r.Cuisine, Value: r.Cuisine})
		}
	}
	for _, r := range habitRules {
		if containsAny(lower, r.keywords) {
			signals = append(signals, r.signal)
		}
	}
	return signals
}

// IngredientSignals 每個新食材產生一個常用食材訊號
func IngredientSignals(ingredients []string) []Signal {
	signals := make([]Signal, 0, len(ingredients))
	for _, name := range ingredients {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		signals = append(signals, Signal{Type: TypeFavoriteIngredient, Key: name, Value: name})
	}
	return signals
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
