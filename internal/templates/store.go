package templates

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"trivia-quiz-service/internal/domain"
)

//go:embed catalogue.yaml
var defaultCatalogue []byte

type catalogueFile struct {
	Templates []domain.Template `yaml:"templates"`
}

// Store is the read-only question template catalogue.
type Store struct {
	templates []domain.Template
	topics    []string
}

// NewStore validates templates and builds a store over them.
func NewStore(templates []domain.Template) (*Store, error) {
	seen := make(map[string]struct{}, len(templates))
	topicSet := make(map[string]struct{})
	kept := make([]domain.Template, 0, len(templates))

	for i, tmpl := range templates {
		lang, err := validate(tmpl)
		if err != nil {
			return nil, fmt.Errorf("template %d (%s): %w", i, tmpl.ID, err)
		}
		tmpl.Language = lang
		if tmpl.ID != "" {
			if _, dup := seen[tmpl.ID]; dup {
				return nil, fmt.Errorf("duplicate template id %q", tmpl.ID)
			}
			seen[tmpl.ID] = struct{}{}
		}
		for _, topic := range tmpl.Topics {
			topicSet[topic] = struct{}{}
		}
		tmpl.Topics = append([]string(nil), tmpl.Topics...)
		tmpl.Query = strings.TrimSpace(tmpl.Query)
		kept = append(kept, tmpl)
	}

	topics := make([]string, 0, len(topicSet))
	for topic := range topicSet {
		topics = append(topics, topic)
	}
	sort.Strings(topics)

	return &Store{templates: kept, topics: topics}, nil
}

// LoadDefault builds a store from the embedded catalogue.
func LoadDefault() (*Store, error) {
	return Parse(defaultCatalogue)
}

// LoadFile builds a store from a YAML catalogue on disk.
func LoadFile(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalogue: %w", err)
	}
	return Parse(data)
}

// Parse builds a store from YAML catalogue bytes.
func Parse(data []byte) (*Store, error) {
	var file catalogueFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse catalogue: %w", err)
	}
	return NewStore(file.Templates)
}

// Find returns every template tagged with any of topics and written in lang,
// in catalogue order. An empty result is not an error.
func (s *Store) Find(topics []string, lang domain.Language) []domain.Template {
	var matches []domain.Template
	for _, tmpl := range s.templates {
		if tmpl.Language == lang && tmpl.HasAnyTopic(topics) {
			matches = append(matches, tmpl)
		}
	}
	return matches
}

// Topics returns the sorted set of topics known to the catalogue.
func (s *Store) Topics() []string {
	return append([]string(nil), s.topics...)
}

// All returns every template in catalogue order.
func (s *Store) All() []domain.Template {
	return append([]domain.Template(nil), s.templates...)
}

func validate(tmpl domain.Template) (domain.Language, error) {
	if len(tmpl.Topics) == 0 {
		return "", fmt.Errorf("topics are required")
	}
	if strings.TrimSpace(tmpl.Query) == "" {
		return "", fmt.Errorf("query is required")
	}
	if strings.TrimSpace(tmpl.QuestionPattern) == "" {
		return "", fmt.Errorf("question is required")
	}
	return domain.ParseLanguage(string(tmpl.Language))
}
