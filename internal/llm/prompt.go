package llm

import (
	"fmt"
	"strings"

	"github.com/kalambet/engram/internal/content"
)

const defaultMaxContentChars = 8000

// Prompter assembles the message sequences sent to the model. Raw
// content is truncated to a character budget before injection; the
// stored session always keeps the full text.
type Prompter struct {
	MaxContentChars int
}

// NewPrompter creates a Prompter with the given content budget.
// If maxContentChars <= 0, the default (8000) is used.
func NewPrompter(maxContentChars int) *Prompter {
	if maxContentChars <= 0 {
		maxContentChars = defaultMaxContentChars
	}
	return &Prompter{MaxContentChars: maxContentChars}
}

// Summary builds the messages for the initial summarization of freshly
// captured content. An optional instruction steers the summary.
func (p *Prompter) Summary(unit *content.Unit, instruction string) []Message {
	var sb strings.Builder
	sb.WriteString("You are a knowledge capture assistant. Summarize the following content ")
	sb.WriteString("into a concise digest: key points, notable arguments, and any concrete ")
	sb.WriteString("recommendations. Use short paragraphs or bullet points.")
	if instruction != "" {
		sb.WriteString("\n\nThe user asked specifically: ")
		sb.WriteString(instruction)
	}

	user := fmt.Sprintf("Title: %s\nSource: %s\n\n%s",
		unit.Title, unit.SourceKind, p.truncate(unit.RawText))

	return []Message{
		{Role: "system", Content: sb.String()},
		{Role: "user", Content: user},
	}
}

// Conversation builds the messages for a follow-up question: a system
// message carrying the content and its summary, then the full history,
// then the new question. The summary is the first assistant turn of the
// history and is not repeated there.
func (p *Prompter) Conversation(unit *content.Unit, summary string, history []Message, question string) []Message {
	system := fmt.Sprintf(`You are a knowledge capture assistant. The user has just read a summary of the content below and may ask follow-up questions.

Title: %s
Source: %s

Summary:
%s

Original content (may be truncated):
%s

Answer based on this content. If a question goes beyond it, say so plainly.`,
		unit.Title, unit.SourceKind, summary, p.truncate(unit.RawText))

	msgs := make([]Message, 0, len(history)+2)
	msgs = append(msgs, Message{Role: "system", Content: system})
	msgs = append(msgs, history...)
	msgs = append(msgs, Message{Role: "user", Content: question})
	return msgs
}

func (p *Prompter) truncate(text string) string {
	runes := []rune(text)
	if len(runes) <= p.MaxContentChars {
		return text
	}
	return string(runes[:p.MaxContentChars]) + "\n[... truncated]"
}
