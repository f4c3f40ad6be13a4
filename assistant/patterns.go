package assistant

import "strings"

// ====== 查询归一化 ======

// Normalize 转小写并去除首尾空白
func Normalize(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

// PatternSet 一组字面量短语
type PatternSet []string

// MatchPhrase 判断 q 是否等于某个短语，或以 "短语 " 开头，或以 " 短语" 结尾。
// q 需已归一化。
func (p PatternSet) MatchPhrase(q string) bool {
	for _, phrase := range p {
		if q == phrase ||
			strings.HasPrefix(q, phrase+" ") ||
			strings.HasSuffix(q, " "+phrase) {
			return true
		}
	}
	return false
}

// MatchSubstring 判断 q 是否包含任一短语
func (p PatternSet) MatchSubstring(q string) bool {
	for _, phrase := range p {
		if strings.Contains(q, phrase) {
			return true
		}
	}
	return false
}

func concat(sets ...PatternSet) PatternSet {
	var out PatternSet
	for _, s := range sets {
		out = append(out, s...)
	}
	return out
}

// ====== 内置短语集 ======

var (
	// GreetingPatterns 问候语
	GreetingPatterns = PatternSet{
		"hi", "hello", "hey", "good morning", "good afternoon", "good evening",
		"how are you", "what's up", "greetings", "nice to meet you",
	}

	// FarewellPatterns 致谢与告别
	FarewellPatterns = PatternSet{"thanks", "thank you", "bye", "goodbye", "see you"}

	// AcknowledgmentPatterns 确认语
	AcknowledgmentPatterns = PatternSet{"ok", "okay", "alright", "got it"}

	// AgePatterns 年龄相关追问
	AgePatterns = PatternSet{"so how old", "how old", "what age", "his age", "age now", "current age"}

	// ContextualPatterns 上下文追问，一律视为与主题相关
	ContextualPatterns = concat(AgePatterns, PatternSet{
		"so what", "and what", "tell me more", "more info", "more details",
		"when was that", "what year", "which year", "how many", "how much",
	})

	// ClassifierGreetingPatterns 相关性判定直接放行的会话短语
	ClassifierGreetingPatterns = concat(GreetingPatterns, FarewellPatterns, PatternSet{"ok", "okay"})

	// ShortcutPatterns 路由层跳过检索的会话短语
	ShortcutPatterns = concat(GreetingPatterns, FarewellPatterns, AcknowledgmentPatterns)
)
