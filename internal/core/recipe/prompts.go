package recipe

import (
	"fmt"
	"strings"

	"todays-meal/internal/pkg/common"
)

// SystemPrompt 所有對話與生成共用的人設提示
const SystemPrompt = `あなたは「今日のご飯アシスタント」です。ユーザーが今日何を食べるか決める手助けをします。

役割:
1. ユーザーに今日の食事について質問して会話を開始
2. ユーザーが食材を教えてくれたら、その食材を使ったレシピを提案
3. ユーザーが気分や好みを伝えてくれたら、それに合ったレシピを提案
4. レシピには調理時間、カロリー、栄養素の概算を含める

会話の文脈理解ルール:
- 会話履歴から、ユーザーが教えてくれた食材を全て記憶すること
- 新しい食材が追加された場合、以前の食材と合わせて考慮すること
- 食材リストは会話の最初から累積的に増えていく

応答ルール:
- 自然で丁寧な日本語を使う
- 親しみやすい口調だが、過度にカジュアルすぎない
- 絵文字は控えめに使用（1メッセージに1〜2個程度）
- 日本の家庭料理を中心に提案
- 簡単に作れるレシピを優先
- 「〜ですね」「〜いかがですか？」のような自然な敬語を使う`

const greetingPrompt = `会話を開始してください。ユーザーに今日の食事について自然で親しみやすく質問してください。例：「こんにちは！今日は何を食べたいですか？」や「今日のご飯、何にしますか？」のような自然な表現で。`

func joinOrNone(items []string, sep string) string {
	if len(items) == 0 {
		return "なし"
	}
	return strings.Join(items, sep)
}

// buildAnalysisPrompt 意圖分析提示
func buildAnalysisPrompt(text string, known []string) string {
	return fmt.Sprintf(`ユーザーの入力を分析してください。

現在までにユーザーが教えてくれた食材: %s
新しい入力: "%s"

以下のJSON形式で回答してください:
{
  "isValidInput": true/false (食材や料理に関する入力かどうか),
  "ingredients": ["食材1", "食材2"] (今回の入力から新たに抽出された、手元にある食材のリスト。なければ空配列),
  "requestType": "ingredients" | "mood" | "specific_dish" | "substitute" | "other",
  "specificDish": "作りたい料理名 (requestType が specific_dish の場合のみ)",
  "missingIngredient": "足りない食材名 (requestType が substitute の場合のみ)"
}

重要:
- 既存の食材は含めず、今回の入力から新たに追加される食材のみを返してください
- 「〜がない」「代わりは？」のように足りない食材の代用を聞かれた場合は substitute とし、その食材は ingredients に含めないでください
- 「他に何か作れる？」のような質問の場合、ingredientsは空配列にしてください

JSONのみを返してください。`, joinOrNone(known, ", "), text)
}

// recipePromptInput 單道食譜生成提示的參數
type recipePromptInput struct {
	userText       string
	ingredients    []string
	preferences    string
	maxCookingTime int
	specificDish   string
	references     string
	usedNames      []string
	attempt        int
}

// buildRecipePrompt 單道食譜生成提示
func buildRecipePrompt(in recipePromptInput) string {
	var b strings.Builder
	b.WriteString("ユーザーの要望に基づいて、1つのレシピを提案してください。\n\n")
	fmt.Fprintf(&b, "ユーザーの入力: \"%s\"\n", in.userText)
	if len(in.ingredients) > 0 {
		fmt.Fprintf(&b, "手元にある食材（必須ではありません。使えるものを活用してください）: %s\n", strings.Join(in.ingredients, ", "))
	}
	if in.specificDish != "" {
		fmt.Fprintf(&b, "作りたい料理: %s\n", in.specificDish)
	}
	if in.maxCookingTime > 0 {
		fmt.Fprintf(&b, "調理時間制限: %d分以内\n", in.maxCookingTime)
	}
	if in.preferences != "" {
		fmt.Fprintf(&b, "\nユーザーの好み:\n%s\n", in.preferences)
	}
	if in.references != "" {
		fmt.Fprintf(&b, "\n以下の参考レシピを発想のヒントにしてください（そのまま写さないでください）:\n%s\n", in.references)
	}
	if len(in.usedNames) > 0 {
		fmt.Fprintf(&b, "\n既に提案したレシピ: %s\nこれらと料理名・調理法・味付けが重ならない、別のレシピを提案してください。\n", strings.Join(in.usedNames, "、"))
	}

	b.WriteString(`
調理手順は必ず5〜8ステップの詳細な手順で記載してください。

以下のJSON形式で1つのレシピを返してください:
{
  "recipe": {
    "name": "料理名",
    "ingredients": [
      {"name": "材料名", "amount": "分量"}
    ],
    "steps": [
      "材料の下準備を具体的に記載",
      "次の具体的な作業",
      "さらに詳しい手順",
      "調理の具体的な方法",
      "仕上げの工程"
    ],
    "cookingTime": 調理時間(分),
    "calories": カロリー(kcal),
    "nutrition": {
      "protein": タンパク質(g),
      "fat": 脂質(g),
      "carbs": 炭水化物(g)
    }
  }
}

重要事項:
- stepsは必ず5〜8個の詳細な手順を含めてください
- 火加減、時間、目安となる状態なども含めてください
- 手順には「手順1:」「手順2:」などの番号を付けないでください
`)
	fmt.Fprintf(&b, "- ユニークなレシピを提案してください（レシピ番号: %d）\n\nJSONのみを返してください。", in.attempt)
	return b.String()
}

// buildInvalidPrompt 無法理解輸入時的回覆提示
func buildInvalidPrompt(text string) string {
	return fmt.Sprintf(`ユーザーが「%s」と言いました。
これは食材や料理に関する入力ではないようです。
自然な日本語で、丁寧に再度質問してください。例: 「申し訳ございません、よく理解できませんでした。どんな食材をお持ちですか？または、どんな料理が食べたいか教えていただけますか？」`, text)
}

// buildSubstitutePrompt 代用食材建議提示
func buildSubstitutePrompt(text, missing string, ingredients []string) string {
	return fmt.Sprintf(`ユーザーが「%s」と言いました。
足りない食材: %s
これまでに教えてもらった食材: %s

「%s」の代わりに使える身近な食材や調味料を2〜3個、使い方のコツと一緒に提案してください。
手元の食材で代用できるものがあれば優先して紹介してください。
絵文字は控えめに（1〜2個程度）使ってください。`, text, missing, joinOrNone(ingredients, "、"), missing)
}

// buildSummaryPrompt 食譜生成後的總結提示
func buildSummaryPrompt(text string, ingredients []string, recipes []common.Recipe) string {
	if len(recipes) == 0 {
		return fmt.Sprintf(`ユーザーが「%s」と言いました。
レシピを提案できませんでした。
自然な日本語で、もう少し詳しく教えてもらうよう丁寧にお願いしてください。`, text)
	}

	lines := make([]string, len(recipes))
	for i, r := range recipes {
		lines[i] = fmt.Sprintf("%d. %s (%d分, %dkcal)", i+1, r.Name, r.CookingTime, r.Calories)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "ユーザーが「%s」と言いました。\n", text)
	if len(ingredients) > 0 {
		fmt.Fprintf(&b, "これまでに教えてもらった食材: %s\n", strings.Join(ingredients, ", "))
	}
	fmt.Fprintf(&b, "\n以下のレシピを提案します:\n%s\n\n", strings.Join(lines, "\n"))
	if len(ingredients) > 0 {
		fmt.Fprintf(&b, "「%s」を使った", strings.Join(ingredients, "、"))
	}
	b.WriteString(`レシピを、自然で親しみやすい口調で紹介してください。
詳細を見たい場合はレシピ名をタップするよう促してください。
絵文字は控えめに（1〜2個程度）使ってください。`)
	return b.String()
}
