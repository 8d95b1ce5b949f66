package escalation

import "github.com/khanglvm/profile-qa/internal/knowledge"

// Response is the user-facing text for an escalation action.
type Response struct {
	Action          Action   `json:"action"`
	Message         string   `json:"message"`
	Suggestions     []string `json:"suggestions,omitempty"`
	ShowContactForm bool     `json:"show_contact_form,omitempty"`
}

type styleText struct {
	rephrase    string
	suggestions []string
	email       string
}

var texts = map[knowledge.Style]styleText{
	knowledge.StyleHR: {
		rephrase: "I don't have a confident answer to that yet. Could you rephrase it around a specific role, project or result?",
		suggestions: []string{
			"What impact did you have in your last role?",
			"Which projects are you most proud of?",
			"How do you work with cross-functional teams?",
		},
		email: "I still can't answer that well. Leave your name and email and I'll follow up personally.",
	},
	knowledge.StyleDeveloper: {
		rephrase: "I couldn't map that to anything in my background. Try naming a language, framework or system.",
		suggestions: []string{
			"Which languages do you use day to day?",
			"Describe the architecture of a system you built.",
			"How do you approach testing?",
		},
		email: "That one is outside what I can answer here. Send me your contact details and we can dig in over email.",
	},
	knowledge.StyleFriend: {
		rephrase: "Hmm, I'm not sure I got that one. Mind asking it another way?",
		suggestions: []string{
			"What do you do for fun?",
			"What are you working on lately?",
			"What got you into programming?",
		},
		email: "Okay, I'm stumped! Drop your name and email and I'll get back to you.",
	},
}

func textsFor(style knowledge.Style) styleText {
	if t, ok := texts[style]; ok {
		return t
	}
	return texts[knowledge.DefaultStyle]
}

// Response builds the message for action in style.
func (h *Handler) Response(action Action, style knowledge.Style) Response {
	t := textsFor(style)
	switch action {
	case ActionRephrase:
		return Response{
			Action:      ActionRephrase,
			Message:     t.rephrase,
			Suggestions: append([]string(nil), t.suggestions...),
		}
	case ActionEmail:
		return Response{
			Action:          ActionEmail,
			Message:         t.email,
			ShowContactForm: true,
		}
	default:
		return Response{Action: ActionNone}
	}
}
