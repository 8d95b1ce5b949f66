package escalation

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/khanglvm/profile-qa/internal/conversation"
	"github.com/khanglvm/profile-qa/internal/knowledge"
)

const (
	maxInputLength   = 200
	maxExcerptLength = 120
)

var (
	tagPattern         = regexp.MustCompile(`<[^>]*>`)
	simpleEmailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

	validate = newValidator()
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("simple_email", func(fl validator.FieldLevel) bool {
		return simpleEmailPattern.MatchString(fl.Field().String())
	})
	return v
}

// Contact is a sanitized contact form submission.
type Contact struct {
	Name  string `json:"name" validate:"required,min=2,max=50"`
	Email string `json:"email" validate:"required,simple_email"`
}

// FieldErrors maps a form field to a user-facing message.
type FieldErrors map[string]string

// Sanitize trims s, strips angle-bracket sequences and caps it at 200 characters.
func Sanitize(s string) string {
	s = tagPattern.ReplaceAllString(s, "")
	s = strings.NewReplacer("<", "", ">", "").Replace(s)
	s = strings.TrimSpace(s)
	if r := []rune(s); len(r) > maxInputLength {
		s = strings.TrimSpace(string(r[:maxInputLength]))
	}
	return s
}

// ValidateContact sanitizes and checks a contact submission.
// A nil FieldErrors means the contact is valid.
func ValidateContact(name, email string) (Contact, FieldErrors) {
	c := Contact{Name: Sanitize(name), Email: Sanitize(email)}

	err := validate.Struct(c)
	if err == nil {
		return c, nil
	}

	fe := FieldErrors{}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		fe["form"] = "invalid submission"
		return c, fe
	}
	for _, v := range verrs {
		switch v.Field() {
		case "Name":
			fe["name"] = "Name must be between 2 and 50 characters."
		case "Email":
			fe["email"] = "Please enter a valid email address."
		}
	}
	return c, fe
}

// MailtoLink builds a percent-encoded mail link carrying the failed query
// and a short excerpt of recent conversation.
func (h *Handler) MailtoLink(name, email, query string, style knowledge.Style, recent []conversation.Turn) string {
	name, email, query = Sanitize(name), Sanitize(email), Sanitize(query)

	var body strings.Builder
	switch style {
	case knowledge.StyleFriend:
		body.WriteString("Hey!\n\n")
	default:
		body.WriteString("Hello,\n\n")
	}
	fmt.Fprintf(&body, "My name is %s (%s).\n", name, email)
	fmt.Fprintf(&body, "The assistant couldn't answer my question: \"%s\"\n", query)

	if n := h.cfg.ExcerptTurns; n > 0 && len(recent) > 0 {
		if len(recent) > n {
			recent = recent[len(recent)-n:]
		}
		body.WriteString("\nRecent conversation:\n")
		for _, t := range recent {
			fmt.Fprintf(&body, "Q: %s\nA: %s\n", excerpt(t.Question), excerpt(t.Answer))
		}
	}

	return fmt.Sprintf("mailto:%s?subject=%s&body=%s",
		encodeComponent(h.cfg.ContactEmail),
		encodeComponent(h.cfg.Subject),
		encodeComponent(body.String()),
	)
}

// encodeComponent percent-encodes s with spaces as %20.
func encodeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func excerpt(s string) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= maxExcerptLength {
		return string(r)
	}
	return string(r[:maxExcerptLength]) + "..."
}
