package game

import "math/rand"

// Built-in prompt lists per mode. Custom rooms ignore these and draw from
// the topics players wrote during TOPIC_CREATION.
var promptsByMode = map[Mode][]string{
	ModeClassic: {
		"人に言えない小さな自慢",
		"実はちょっと後悔していること",
		"今まで誰にも話していない失敗談",
		"子どもの頃の恥ずかしい思い出",
		"こっそり続けている習慣",
		"本当は苦手なもの",
		"最近ついた小さな嘘",
	},
	ModeLove: {
		"初恋の人の第一印象",
		"理想のデートプラン",
		"恋人にされて嬉しかったこと",
		"実は今気になっている人の特徴",
		"過去の恋愛で学んだこと",
	},
	ModeWork: {
		"仕事中にこっそりやっていること",
		"上司に言えない本音",
		"会議中に考えていること",
		"仕事を辞めたいと思った瞬間",
		"職場でのひそかな楽しみ",
	},
}

// PromptProvider supplies topic strings per mode so rooms can pick one at
// random at round start. Tests inject a deterministic implementation.
type PromptProvider interface {
	PromptsForMode(mode Mode) []string
}

type promptProvider struct{}

func NewPromptProvider() PromptProvider {
	return promptProvider{}
}

func (promptProvider) PromptsForMode(mode Mode) []string {
	return promptsByMode[mode]
}

func pickPrompt(prompts []string) string {
	if len(prompts) == 0 {
		return ""
	}
	return prompts[rand.Intn(len(prompts))]
}
