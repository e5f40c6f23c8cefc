package tutor

import "fmt"

// The spoken persona instruction. Responses must stay conversational and
// symbol-free because everything the model says is synthesized to audio.
const tutorPromptFormat = `You are a language tutor. You will be engaging in spoken conversations with a person who wants to learn %[1]s.
Please make sure to engage in interesting conversations and bounce off of what they are saying.
Make sure that your vocabulary matches their level and use proper grammar. Be natural.
Additionally, it is important that you do not include any symbols such as asterisks in your responses.
Your responses should of paramount importance be conversational. That means on the shorter end and casual.
Answer all conversations in %[1]s`

func systemPrompt(language string) string {
	if language == "" {
		language = "English"
	}
	return fmt.Sprintf(tutorPromptFormat, language)
}

var greetings = map[string]string{
	"English":  "Hi there! What would you like to talk about today?",
	"French":   "Bonjour ! De quoi veux-tu parler aujourd'hui ?",
	"Spanish":  "¡Hola! ¿De qué te gustaría hablar hoy?",
	"Mandarin": "你好！今天想聊点什么呢？",
	"Japanese": "こんにちは！今日は何について話しましょうか？",
	"German":   "Hallo! Worüber möchtest du heute sprechen?",
	"Italian":  "Ciao! Di cosa ti piacerebbe parlare oggi?",
}

var apologies = map[string]string{
	"English":  "Sorry, I didn't catch that. Could you say it again?",
	"French":   "Désolé, je n'ai pas bien compris. Peux-tu répéter ?",
	"Spanish":  "Perdona, no te he entendido bien. ¿Puedes repetirlo?",
	"Mandarin": "抱歉，我没听清楚。可以再说一遍吗？",
	"Japanese": "すみません、聞き取れませんでした。もう一度言ってもらえますか？",
	"German":   "Entschuldigung, das habe ich nicht verstanden. Kannst du das wiederholen?",
	"Italian":  "Scusa, non ho capito bene. Puoi ripetere?",
}

func greetingLine(language string) string {
	if line, ok := greetings[language]; ok {
		return line
	}
	return greetings["English"]
}

func apologyLine(language string) string {
	if line, ok := apologies[language]; ok {
		return line
	}
	return apologies["English"]
}
