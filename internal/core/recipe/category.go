package recipe

import (
	"strings"

	"todays-meal/internal/pkg/common"
)

// Category 料理的顯示分類
type Category struct {
	Name string
	Slug string
}

type categoryRule struct {
	keywords []string
	category Category
}

// 由上而下比對，較具體的料理類型排在前面
var categoryRules = []categoryRule{
	{[]string{"カレー"}, Category{"カレー", "curry"}},
	{[]string{"シチュー"}, Category{"シチュー", "stew"}},
	{[]string{"鍋"}, Category{"鍋", "hotpot"}},
	{[]string{"丼", "チャーハン", "炒飯", "ご飯", "炊き込み", "リゾット", "オムライス", "ピラフ"}, Category{"丼・ご飯もの", "rice"}},
	{[]string{"パスタ", "スパゲッティ", "ペペロンチーノ", "カルボナーラ"}, Category{"パスタ", "pasta"}},
	{[]string{"うどん", "そば", "ラーメン", "焼きそば", "麺"}, Category{"麺類", "noodle"}},
	{[]string{"サラダ"}, Category{"サラダ", "salad"}},
	{[]string{"スープ", "汁", "ポタージュ"}, Category{"スープ", "soup"}},
	{[]string{"揚げ", "唐揚げ", "フライ", "天ぷら", "カツ", "コロッケ"}, Category{"揚げ物", "fried"}},
	{[]string{"蒸し"}, Category{"蒸し物", "steamed"}},
	{[]string{"煮", "煮込み"}, Category{"煮物", "simmered"}},
	{[]string{"焼き", "グリル", "ソテー", "ステーキ", "ハンバーグ"}, Category{"焼き物", "grilled"}},
	{[]string{"炒め"}, Category{"炒め物", "stirfry"}},
	{[]string{"肉", "豚", "鶏", "牛"}, Category{"肉料理", "meat"}},
	{[]string{"魚", "鮭", "サバ", "ぶり", "まぐろ", "えび"}, Category{"魚料理", "fish"}},
	{[]string{"野菜", "キャベツ", "なす", "ナス", "ほうれん草", "トマト"}, Category{"野菜料理", "vegetable"}},
}

// CategoryOther 無規則命中時的分類
var CategoryOther = Category{"その他", "other"}

// DetectCategory 依料理名稱判定分類，第一條命中的規則優先
func DetectCategory(name string) Category {
	for _, r := range categoryRules {
		if containsAny(name, r.keywords) {
			return r.category
		}
	}
	return CategoryOther
}

// ImageURL 依分類產生圖片位置
func ImageURL(baseURL string, c Category) string {
	return strings.TrimRight(baseURL, "/") + "/" + c.Slug + ".jpg"
}

// Style 料理風格，用於挑選配菜
type Style string

const (
	StyleJapanese Style = "japanese"
	StyleWestern  Style = "western"
	StyleChinese  Style = "chinese"
	StyleOther    Style = "other"
)

type styleRule struct {
	style    Style
	keywords []string
}

var styleRules = []styleRule{
	{StyleChinese, []string{"麻婆", "中華", "回鍋肉", "青椒", "酢豚", "餃子", "炒飯", "豆板醤", "オイスター", "甜麺醤", "鶏がら"}},
	{StyleWestern, []string{"パスタ", "グラタン", "シチュー", "ハンバーグ", "ソテー", "オムライス", "ピラフ", "リゾット", "バター", "チーズ", "生クリーム", "コンソメ", "オリーブオイル"}},
	{StyleJapanese, []string{"味噌", "醤油", "みりん", "だし", "和風", "照り焼き", "肉じゃが", "煮物", "丼"}},
}

// DetectStyle 先看料理名稱，再看食材判定料理風格
func DetectStyle(name string, ingredients []common.Ingredient) Style {
	if s, ok := matchStyle(name); ok {
		return s
	}
	for _, ing := range ingredients {
		if s, ok := matchStyle(ing.Name); ok {
			return s
		}
	}
	return StyleOther
}

func matchStyle(text string) (Style, bool) {
	for _, r := range styleRules {
		if containsAny(text, r.keywords) {
			return r.style, true
		}
	}
	return "", false
}

var sideDishTable = map[Style][]common.SideDish{
	StyleJapanese: {
		{Name: "味噌汁", Category: "汁物", Description: "和食の定番。体が温まります"},
		{Name: "ほうれん草のおひたし", Category: "副菜", Description: "さっぱりとした箸休めに"},
	},
	StyleWestern: {
		{Name: "コーンスープ", Category: "スープ", Description: "まろやかな甘みで洋食によく合います"},
		{Name: "グリーンサラダ", Category: "サラダ", Description: "彩りとシャキッとした食感をプラス"},
	},
	StyleChinese: {
		{Name: "中華スープ", Category: "スープ", Description: "卵とわかめのあっさりスープ"},
		{Name: "春雨サラダ", Category: "サラダ", Description: "酸味が中華のおかずと好相性"},
	},
	StyleOther: {
		{Name: "サラダ", Category: "サラダ", Description: "野菜をプラスしてバランスよく"},
		{Name: "スープ", Category: "スープ", Description: "温かい汁物を添えて"},
	},
}

// SideDishes 依料理風格回傳兩道配菜建議
func SideDishes(style Style) []common.SideDish {
	dishes, ok := sideDishTable[style]
	if !ok {
		dishes = sideDishTable[StyleOther]
	}
	out := make([]common.SideDish, len(dishes))
	copy(out, dishes)
	return out
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
