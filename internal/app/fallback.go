package app

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"trivia-quiz-service/internal/domain"
)

// FallbackGenerator serves a fixed question when the wrapped source reports the
// upstream as unavailable. Every substitution is logged. Other errors pass through.
type FallbackGenerator struct {
	next QuestionSource
	log  zerolog.Logger
}

func NewFallbackGenerator(next QuestionSource, log zerolog.Logger) *FallbackGenerator {
	return &FallbackGenerator{next: next, log: log}
}

func (f *FallbackGenerator) Generate(ctx context.Context, topics []string, lang domain.Language) (domain.GeneratedQuestion, error) {
	q, err := f.next.Generate(ctx, topics, lang)
	if err == nil || !errors.Is(err, domain.ErrUpstreamUnavailable) {
		return q, err
	}

	f.log.Warn().
		Err(err).
		Strs("topics", topics).
		Str("language", string(lang)).
		Msg("knowledge query unavailable, serving fallback question")
	return fallbackQuestion(lang), nil
}

func fallbackQuestion(lang domain.Language) domain.GeneratedQuestion {
	if lang == domain.LanguageES {
		return domain.GeneratedQuestion{
			Text:          "¿Cuál es la capital de España?",
			CorrectAnswer: "Madrid",
			Options:       []string{"Barcelona", "Madrid", "Sevilla", "Valencia"},
			Topics:        []string{"geography"},
			Language:      domain.LanguageES,
		}
	}
	return domain.GeneratedQuestion{
		Text:          "What is the capital of Spain?",
		CorrectAnswer: "Madrid",
		Options:       []string{"Barcelona", "Madrid", "Seville", "Valencia"},
		Topics:        []string{"geography"},
		Language:      domain.LanguageEN,
	}
}
