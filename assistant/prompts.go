package assistant

import (
	"fmt"
	"strings"
	"time"

	"github.com/BaSui01/wikichat/config"
)

// Persona 描述问答服务围绕的人物
type Persona struct {
	Topic       string
	Description string
	BirthDate   time.Time
}

// PersonaFromConfig 从 wiki 配置构造 Persona
func PersonaFromConfig(cfg config.WikiConfig) (Persona, error) {
	birth, err := cfg.Birthday()
	if err != nil {
		return Persona{}, fmt.Errorf("parse wiki.birth_date %q: %w", cfg.BirthDate, err)
	}
	return Persona{
		Topic:       cfg.Topic,
		Description: cfg.Description,
		BirthDate:   birth,
	}, nil
}

// AgeOn 计算 now 时刻的周岁
func (p Persona) AgeOn(now time.Time) int {
	age := now.Year() - p.BirthDate.Year()
	if now.Month() < p.BirthDate.Month() ||
		(now.Month() == p.BirthDate.Month() && now.Day() < p.BirthDate.Day()) {
		age--
	}
	return age
}

// render 单次替换 {{.X}} 占位符，用户输入中的占位符不会被二次展开
func (p Persona) render(tmpl string, vars map[string]string) string {
	pairs := []string{"{{.Topic}}", p.Topic, "{{.Description}}", p.Description}
	for k, v := range vars {
		pairs = append(pairs, "{{."+k+"}}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

// RelevancePrompt 渲染相关性判定提示词
func (p Persona) RelevancePrompt(query string) string {
	return p.render(relevancePromptTemplate, map[string]string{"Query": query})
}

// SummaryPrompt 渲染摘要提示词
func (p Persona) SummaryPrompt(query, context string) string {
	return p.render(summaryPromptTemplate, map[string]string{"Query": query, "Context": context})
}

// GreetingReply 问候回复
func (p Persona) GreetingReply() string {
	return p.render("Hello! I'm your AI assistant for {{.Topic}}. I can help you learn about his music, movies, career, and personal life. What would you like to know about him?", nil)
}

// FarewellReply 告别回复
func (p Persona) FarewellReply() string {
	return p.render("You're welcome! Feel free to ask me anything else about {{.Topic}} anytime. Have a great day!", nil)
}

// AcknowledgmentReply 确认回复
func (p Persona) AcknowledgmentReply() string {
	return p.render("Great! Is there anything else you'd like to know about {{.Topic}}? I can tell you about his albums, movies, career highlights, or personal life.", nil)
}

// AgeReply 年龄回复
func (p Persona) AgeReply(now time.Time) string {
	return fmt.Sprintf("%s is currently %d years old. He was born on %s.",
		p.Topic, p.AgeOn(now), p.BirthDate.Format("January 2, 2006"))
}

// EmptyDocumentsReply 无可用文档时的引导回复
func (p Persona) EmptyDocumentsReply() string {
	return p.render("I'd be happy to help you learn about {{.Topic}}! Could you ask me something specific about his music, movies, or career?", nil)
}

// OffTopicMessage 无关问题提示
func (p Persona) OffTopicMessage() string {
	return p.render("Your question doesn't seem to be related to {{.Topic}}. Please ask about his music, movies, career, or personal life.", nil)
}

// NoResultsSummary 检索为空时的摘要
func (p Persona) NoResultsSummary() string {
	return p.render("I couldn't find specific information about that topic in the available content about {{.Topic}}.", nil)
}

const (
	// SummaryErrorReply LLM 调用失败时的摘要
	SummaryErrorReply = "I found some relevant information, but couldn't generate a summary at the moment."

	// NoResultsMessage 检索为空时的 message 字段
	NoResultsMessage = "No matching content found."
)

// ====== 提示词模板 ======

const relevancePromptTemplate = `
You are a relevance checker for a Wikipedia search system about "{{.Topic}}", {{.Description}}.

Analyze this query and determine if it's asking about {{.Topic}} or topics related to him (his music, movies, career, personal life, etc.).

IMPORTANT: Always respond "YES" to:
- Greetings (hi, hello, hey, etc.)
- Polite phrases (thank you, please, etc.)
- Questions about {{.Topic}} (explicit or with pronouns like "his", "he", "him")
- Questions about music, albums, movies, films, acting, career when in context of an entertainment figure
- Follow-up questions about age, dates, numbers, details (like "how old?", "so what?", "when?")
- General conversational responses

Query: "{{.Query}}"

CONTEXT: This is a chatbot specifically about {{.Topic}}, so:
1. Questions using pronouns like "his albums", "his movies", "he acted" are referring to him
2. Follow-up questions like "how old?", "so what age?", "when was that?" are asking for more details about him
3. Short contextual questions are likely continuing a conversation about him

Respond with only "YES" if the query is relevant to {{.Topic}} OR is a greeting/polite phrase, or "NO" if it's asking about something completely unrelated.

Examples:
- "Hi" → YES (greeting)
- "Hello" → YES (greeting)
- "Thank you" → YES (polite phrase)
- "Who is {{.Topic}}?" → YES
- "What movies did he act in?" → YES
- "Tell me about his music career" → YES
- "List his albums" → YES (referring to his albums)
- "What songs did he sing?" → YES (referring to him)
- "His filmography" → YES (referring to him)
- "How old?" → YES (follow-up question about age)
- "So how old?" → YES (follow-up question)
- "When was that?" → YES (follow-up about dates)
- "What is the weather today?" → NO
- "How to cook pasta?" → NO
- "What is Python programming?" → NO

Response:`

const summaryPromptTemplate = `
Based on the following information about {{.Topic}}, provide a well-formatted answer to the user's question.

User Question: "{{.Query}}"

Information from Wikipedia:
{{.Context}}

Instructions:
1. Analyze if the user is asking for structured data (lists, tables, chronological info, etc.)
2. If they want structured data (like "list albums", "show movies", "timeline", etc.), format as:
   - Use bullet points (•) for lists
   - Use table format with | separators for tabular data
   - Use numbered lists for chronological items
   - Example table format: | Album Name | Year | Notes |
3. If it's a general question, provide a conversational 2-4 sentence answer
4. Focus on directly answering the user's question
5. Use only the information provided
6. If information is incomplete, mention what you found

Detect these structured request patterns:
- "list", "show", "enumerate", "table" → Use structured format
- "albums", "movies", "films", "songs" + "names/titles/years" → Use table/list
- "chronology", "timeline", "order" → Use numbered list
- General questions → Use conversational format

Answer:`
