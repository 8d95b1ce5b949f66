// Package prompt assembles the bounded instruction block sent to engines.
package prompt

import (
	"fmt"
	"strings"

	"github.com/khanglvm/profile-qa/internal/conversation"
	"github.com/khanglvm/profile-qa/internal/errkind"
	"github.com/khanglvm/profile-qa/internal/knowledge"
	"github.com/khanglvm/profile-qa/internal/search"
)

const (
	DefaultPersona    = "the profile owner"
	DefaultMaxWords   = 150
	DefaultMaxHistory = 2

	// FallbackStyleInstruction applies to styles outside the known set.
	FallbackStyleInstruction = "Respond in a professional and friendly tone."
)

var styleInstructions = map[knowledge.Style]string{
	knowledge.StyleHR:        "Respond for a recruiter. Emphasize achievements and business impact in plain language.",
	knowledge.StyleDeveloper: "Respond for a fellow engineer. Name the concrete technologies and explain the trade-offs.",
	knowledge.StyleFriend:    "Respond casually and warmly, as if chatting with a friend.",
}

// StyleInstruction returns the tone instruction for style.
func StyleInstruction(style knowledge.Style) string {
	if s, ok := styleInstructions[style]; ok {
		return s
	}
	return FallbackStyleInstruction
}

// Builder renders prompts. The zero value uses the defaults.
type Builder struct {
	Persona    string
	MaxWords   int
	MaxHistory int
}

// NewBuilder returns a Builder with defaults filled in.
func NewBuilder(persona string, maxWords, maxHistory int) *Builder {
	b := &Builder{Persona: persona, MaxWords: maxWords, MaxHistory: maxHistory}
	b.normalize()
	return b
}

func (b *Builder) normalize() {
	if strings.TrimSpace(b.Persona) == "" {
		b.Persona = DefaultPersona
	}
	if b.MaxWords <= 0 {
		b.MaxWords = DefaultMaxWords
	}
	if b.MaxHistory <= 0 || b.MaxHistory > DefaultMaxHistory {
		b.MaxHistory = DefaultMaxHistory
	}
}

// Build renders the instruction block. Output is deterministic for equal inputs.
func (b Builder) Build(question string, matches []search.Match, style knowledge.Style, history []conversation.Turn) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", errkind.InvalidInput("question is empty")
	}
	b.normalize()

	var sb strings.Builder
	fmt.Fprintf(&sb, "You are %s, answering questions about your own background and work.\n", b.Persona)
	fmt.Fprintf(&sb, "Tone: %s\n\n", StyleInstruction(style))

	sb.WriteString("Context:\n")
	if len(matches) == 0 {
		sb.WriteString("(no relevant context found)\n")
	}
	for _, m := range matches {
		if m.Entry == nil {
			continue
		}
		fmt.Fprintf(&sb, "- [%s] %s\n", m.Entry.ID, m.Entry.Response(style))
	}

	if len(history) > b.MaxHistory {
		history = history[len(history)-b.MaxHistory:]
	}
	if len(history) > 0 {
		sb.WriteString("\nRecent conversation:\n")
		for _, t := range history {
			fmt.Fprintf(&sb, "User: %s\nAssistant: %s\n", t.Question, t.Answer)
		}
	}

	fmt.Fprintf(&sb, "\nQuestion: %s\n\n", question)
	sb.WriteString("Instructions:\n")
	fmt.Fprintf(&sb, "1. Answer in the first person as %s.\n", b.Persona)
	sb.WriteString("2. Use only the information in the context above.\n")
	sb.WriteString("3. If the context has nothing relevant, say so honestly instead of guessing.\n")
	fmt.Fprintf(&sb, "4. Keep the answer under %d words.\n", b.MaxWords)
	sb.WriteString("5. Include concrete examples and details when possible.\n")

	return sb.String(), nil
}
