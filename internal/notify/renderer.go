package notify

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"

	"mediagen/internal/domain"
)

var supported = []language.Tag{language.English, language.Indonesian}

// Renderer derives the localized, human-readable text posted into a
// conversation when a generation changes status.
type Renderer struct {
	matcher language.Matcher
}

// NewRenderer builds a renderer supporting the service locales.
func NewRenderer() *Renderer {
	return &Renderer{matcher: language.NewMatcher(supported)}
}

// StatusMessage renders the message body and kind for the record's current
// status. The locale is a best-effort BCP-47 tag; unknown values fall back
// to English.
func (r *Renderer) StatusMessage(locale string, gen *domain.Generation) (string, domain.MessageKind) {
	lang := r.resolve(locale)
	switch gen.Status {
	case domain.StatusPendingClarification:
		return r.clarificationPrompt(lang, gen), domain.MessageKindInfo
	case domain.StatusPendingConfirmation:
		return text(lang,
			"Thanks! Please review your answers and confirm to start the %s generation.",
			"Terima kasih! Silakan periksa jawaban Anda dan konfirmasi untuk memulai pembuatan %s.",
			mediaLabel(gen.MediaType)), domain.MessageKindInfo
	case domain.StatusQueued:
		return text(lang,
			"Your %s generation has been queued.",
			"Pembuatan %s Anda telah masuk antrean.",
			mediaLabel(gen.MediaType)), domain.MessageKindInfo
	case domain.StatusProcessing:
		return text(lang,
			"Your %s is being generated (%d%%).",
			"%s Anda sedang dibuat (%d%%).",
			mediaLabel(gen.MediaType), gen.Progress), domain.MessageKindInfo
	case domain.StatusCompleted:
		url := ""
		if gen.Result != nil {
			url = gen.Result.ResultURL
		}
		return text(lang,
			"Your %s is ready: %s",
			"%s Anda sudah siap: %s",
			mediaLabel(gen.MediaType), url), domain.MessageKindResult
	case domain.StatusFailed:
		reason := gen.ErrorMessage
		if reason == "" {
			reason = text(lang, "unknown error", "kesalahan tidak diketahui")
		}
		return text(lang,
			"Generation failed: %s",
			"Pembuatan gagal: %s",
			reason), domain.MessageKindError
	case domain.StatusCancelled:
		return text(lang,
			"The generation request was cancelled.",
			"Permintaan pembuatan telah dibatalkan."), domain.MessageKindInfo
	default:
		return text(lang,
			"Generation status: %s",
			"Status pembuatan: %s",
			string(gen.Status)), domain.MessageKindInfo
	}
}

func (r *Renderer) clarificationPrompt(lang language.Tag, gen *domain.Generation) string {
	var b strings.Builder
	b.WriteString(text(lang,
		"A few details are needed before your %s can be generated:",
		"Beberapa detail diperlukan sebelum %s Anda dapat dibuat:",
		mediaLabel(gen.MediaType)))
	for _, q := range gen.ClarificationQuestions {
		b.WriteString("\n- ")
		b.WriteString(q.Question)
		if len(q.Options) > 0 {
			b.WriteString(" (")
			b.WriteString(strings.Join(q.Options, ", "))
			b.WriteString(")")
		}
	}
	return b.String()
}

func (r *Renderer) resolve(locale string) language.Tag {
	if strings.TrimSpace(locale) == "" {
		return language.English
	}
	tag, _ := language.MatchStrings(r.matcher, locale)
	return tag
}

func mediaLabel(media domain.MediaType) string {
	if media == domain.MediaTypeAudio {
		return "audio"
	}
	return "video"
}

func text(lang language.Tag, en, id string, args ...any) string {
	format := en
	if base, _ := lang.Base(); base.String() == "id" {
		format = id
	}
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}
