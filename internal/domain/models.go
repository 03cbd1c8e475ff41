package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Language is a supported question language.
type Language string

const (
	LanguageES Language = "es"
	LanguageEN Language = "en"
)

// ParseLanguage normalises raw into a supported Language.
func ParseLanguage(raw string) (Language, error) {
	switch Language(strings.ToLower(strings.TrimSpace(raw))) {
	case LanguageES:
		return LanguageES, nil
	case LanguageEN:
		return LanguageEN, nil
	}
	return "", fmt.Errorf("%w: unsupported language %q", ErrInvalidInput, raw)
}

// Template is a parametrized question blueprint bound to topics and a language.
type Template struct {
	ID              string   `json:"id" yaml:"id"`
	Topics          []string `json:"topics" yaml:"topics"`
	Language        Language `json:"language" yaml:"language"`
	Query           string   `json:"query" yaml:"query"`
	QuestionPattern string   `json:"questionPattern" yaml:"question"`
}

// HasAnyTopic reports whether the template is tagged with at least one of topics.
func (t Template) HasAnyTopic(topics []string) bool {
	for _, want := range topics {
		for _, have := range t.Topics {
			if want == have {
				return true
			}
		}
	}
	return false
}

// Candidate is one raw entity returned by a knowledge-graph query.
type Candidate struct {
	Label       string `json:"label"`
	ResourceURL string `json:"resourceUrl,omitempty"`
}

// GeneratedQuestion is a multiple-choice question built from a template and candidates.
// Options holds CorrectAnswer exactly once and no duplicate labels.
type GeneratedQuestion struct {
	Text          string   `json:"text"`
	CorrectAnswer string   `json:"correctAnswer"`
	Image         string   `json:"image,omitempty"`
	Options       []string `json:"options"`
	Topics        []string `json:"topics"`
	Language      Language `json:"language"`
}

// SessionConfig is the per-game configuration kept in the session cache.
type SessionConfig struct {
	Topics          []string  `json:"topics"`
	Language        Language  `json:"language"`
	QuestionCount   int       `json:"questionCount,omitempty"`
	TimePerQuestion int       `json:"timePerQuestion,omitempty"` // seconds
	CreatedAt       time.Time `json:"createdAt"`
}

// Answer is one option of a persisted question.
type Answer struct {
	Text      string `json:"text" validate:"required"`
	IsCorrect bool   `json:"isCorrect"`
}

// QuestionRecord is a question as it was asked within a finished game.
type QuestionRecord struct {
	ID             string   `json:"id,omitempty"`
	Text           string   `json:"text"`
	ImageURL       string   `json:"imageUrl,omitempty"`
	SelectedAnswer string   `json:"selectedAnswer"`
	Answers        []Answer `json:"answers"`
	Topics         []string `json:"topics,omitempty"`
}

// GameRecord is the persisted summary of a finished game.
type GameRecord struct {
	ID                     string    `json:"id,omitempty"`
	UserID                 string    `json:"userId,omitempty"`
	NumberOfQuestions      int       `json:"numberOfQuestions"`
	NumberOfCorrectAnswers int       `json:"numberOfCorrectAnswers"`
	GameMode               string    `json:"gameMode"`
	Points                 int       `json:"points"`
	Topics                 []string  `json:"topics"`
	QuestionIDs            []string  `json:"questions"`
	GameDate               time.Time `json:"gameDate"`
}

// GameSummary is the history view of a game, without its question references.
type GameSummary struct {
	ID                     string    `json:"id"`
	NumberOfQuestions      int       `json:"numberOfQuestions"`
	NumberOfCorrectAnswers int       `json:"numberOfCorrectAnswers"`
	GameMode               string    `json:"gameMode"`
	Points                 int       `json:"points"`
	Topics                 []string  `json:"topics"`
	GameDate               time.Time `json:"gameDate"`
}

// Summary projects a game record into its history view.
func (g GameRecord) Summary() GameSummary {
	return GameSummary{
		ID:                     g.ID,
		NumberOfQuestions:      g.NumberOfQuestions,
		NumberOfCorrectAnswers: g.NumberOfCorrectAnswers,
		GameMode:               g.GameMode,
		Points:                 g.Points,
		Topics:                 g.Topics,
		GameDate:               g.GameDate,
	}
}

// TopicList decodes from either a JSON string or a JSON array of strings.
type TopicList []string

func (l *TopicList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if single == "" {
			*l = nil
			return nil
		}
		*l = TopicList{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("topics must be a string or a list of strings")
	}
	*l = many
	return nil
}

// ParseTopics splits a comma-separated topic string, dropping blanks.
func ParseTopics(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	topics := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			topics = append(topics, trimmed)
		}
	}
	return topics
}
