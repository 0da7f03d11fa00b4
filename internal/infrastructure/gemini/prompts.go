package gemini

import (
	"strings"

	"google.golang.org/genai"
)

const transcriptionPrompt = `<goal>ボイスメモの内容をできるだけ正確に文字に起こしてください。</goal>
<role>あなたは話し言葉を正確にテキストへ変換する音声文字起こしの専門家です。</role>
<premise>この音声は考え事をしながら話している独り言のボイスメモです。話題は突然変わったり元に戻ったりします。</premise>
<rules>
  <1>「ええと」「あーー」などの言い淀みは除去して構いません。</1>
  <2>話し手の感情や語調のニュアンスを残してください。</2>
  <3>整形や要約はせず、話し言葉の自然な流れのまま日本語で書き起こしてください。</3>
</rules>
<output-format>{"transcription": "文字起こしの内容"}</output-format>`

const summaryPromptTemplate = `<goal>文字起こしされたボイスメモを、Notion向けの読みやすいメモに整理してください。</goal>
<role>あなたは聞き上手で、独り言から情報の整理されたメモを作るのが得意です。</role>
<premise>独り言のボイスメモです。話題が行き来し、結論よりもアイディアを言い連ねています。</premise>
<rules>
  <1>話題ごとに見出し（###）を作り、話した順番に関わらず該当する見出しへ内容をまとめてください。見出しは話題の気づきや結論を短い文にしたものにしてください。</1>
  <2>1つの見出しの本文は150文字程度までにしてください。</2>
  <3>感情や心情は省略せず、話し言葉の口調のまま文章でまとめてください。箇条書きにはしないでください。</3>
  <4>整理はしても内容の本質は削らないでください。</4>
  <5>「〇〇する！」「〇〇してみようかな」のような次の行動を nextActions に0〜3個まとめてください。</5>
  <6>話題を特定できる具体的で短いタグを重要な順に最大3つ tags に入れてください（例：プログラミング、英語、AI、転職）。</6>
</rules>
<output-format>{"markdown": "### 話題1\n内容\n### 話題2\n内容", "nextActions": ["やること1"], "tags": ["タグ1"]}</output-format>
<transcription>
{{transcription}}
</transcription>`

func summaryPrompt(transcription string) string {
	return strings.Replace(summaryPromptTemplate, "{{transcription}}", transcription, 1)
}

var transcriptionSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"transcription": {Type: genai.TypeString, Description: "ボイスメモの正確な文字起こし"},
	},
	Required: []string{"transcription"},
}

var summarySchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"markdown": {
			Type:        genai.TypeString,
			Description: "Notionに最適化されたMarkdown形式のまとめノート",
		},
		"nextActions": {
			Type:        genai.TypeArray,
			Items:       &genai.Schema{Type: genai.TypeString},
			Description: "ボイスメモの内容から次にするべき行動(0〜3個)",
		},
		"tags": {
			Type:        genai.TypeArray,
			Items:       &genai.Schema{Type: genai.TypeString},
			Description: "話題を特定できる具体的で短いタグ(最大3個)",
		},
	},
	Required:         []string{"markdown", "nextActions", "tags"},
	PropertyOrdering: []string{"markdown", "nextActions", "tags"},
}
