package app

import (
	"context"
	"fmt"
	"math/rand"
	"regexp"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"trivia-quiz-service/internal/domain"
)

// OptionCount is the number of options a question carries when upstream yields enough
// distinct candidates.
const OptionCount = 4

// DefaultTopics is used when a request names no topic.
var DefaultTopics = []string{"geography", "history", "science", "sports"}

// bare entity ids come back as labels when an entity has no label in the requested language
var entityIDLabel = regexp.MustCompile(`^Q[0-9]+$`)

// TemplateFinder selects question templates (implemented by templates.Store).
type TemplateFinder interface {
	Find(topics []string, lang domain.Language) []domain.Template
}

// KnowledgeQuerier runs a template query against a random result window.
type KnowledgeQuerier interface {
	Execute(ctx context.Context, query string) ([]domain.Candidate, error)
}

// QuestionSource produces one question for topics in a language.
type QuestionSource interface {
	Generate(ctx context.Context, topics []string, lang domain.Language) (domain.GeneratedQuestion, error)
}

// Generator builds multiple-choice questions from templates and knowledge query results.
type Generator struct {
	templates TemplateFinder
	querier   KnowledgeQuerier
	log       zerolog.Logger

	mu  sync.Mutex
	rnd *rand.Rand
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithRand makes template choice and shuffling deterministic.
func WithRand(rnd *rand.Rand) GeneratorOption {
	return func(g *Generator) {
		g.rnd = rnd
	}
}

func NewGenerator(templates TemplateFinder, querier KnowledgeQuerier, log zerolog.Logger, opts ...GeneratorOption) *Generator {
	g := &Generator{
		templates: templates,
		querier:   querier,
		log:       log,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate picks a random matching template, queries upstream and packages up to
// OptionCount distinct candidates as a shuffled question. Upstream failures are
// returned as is.
func (g *Generator) Generate(ctx context.Context, topics []string, lang domain.Language) (domain.GeneratedQuestion, error) {
	if len(topics) == 0 {
		topics = DefaultTopics
	}

	matches := g.templates.Find(topics, lang)
	if len(matches) == 0 {
		return domain.GeneratedQuestion{}, fmt.Errorf("%w: topics=%v language=%s", domain.ErrNoTemplate, topics, lang)
	}
	tmpl := matches[g.intn(len(matches))]

	rows, err := g.querier.Execute(ctx, tmpl.Query)
	if err != nil {
		return domain.GeneratedQuestion{}, fmt.Errorf("template %s: %w", tmpl.ID, err)
	}

	unique := UniqueCandidates(rows, OptionCount)
	if len(unique) == 0 {
		g.log.Error().
			Str("template", tmpl.ID).
			Int("rows", len(rows)).
			Strs("sample_labels", sampleLabels(rows, 3)).
			Msg("no usable candidates in upstream result")
		return domain.GeneratedQuestion{}, fmt.Errorf("%w: template %s returned no usable candidates", domain.ErrMalformedUpstreamData, tmpl.ID)
	}
	if len(unique) < OptionCount {
		g.log.Warn().
			Str("template", tmpl.ID).
			Int("options", len(unique)).
			Msg("degraded question with fewer options")
	}

	options := make([]string, len(unique))
	for i, c := range unique {
		options[i] = c.Label
	}

	g.mu.Lock()
	correct := unique[g.rnd.Intn(len(unique))]
	g.rnd.Shuffle(len(options), func(i, j int) {
		options[i], options[j] = options[j], options[i]
	})
	g.mu.Unlock()

	return domain.GeneratedQuestion{
		Text:          tmpl.QuestionPattern,
		CorrectAnswer: correct.Label,
		Image:         correct.ResourceURL,
		Options:       options,
		Topics:        append([]string(nil), tmpl.Topics...),
		Language:      tmpl.Language,
	}, nil
}

func sampleLabels(rows []domain.Candidate, n int) []string {
	if len(rows) < n {
		n = len(rows)
	}
	labels := make([]string, n)
	for i := range labels {
		labels[i] = rows[i].Label
	}
	return labels
}

func (g *Generator) intn(n int) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rnd.Intn(n)
}

// UniqueCandidates keeps candidates in order whose label has not been seen yet,
// stopping after max entries. Blank and bare entity-id labels are skipped.
func UniqueCandidates(rows []domain.Candidate, max int) []domain.Candidate {
	if max <= 0 {
		return nil
	}
	seen := make(map[string]struct{}, max)
	unique := make([]domain.Candidate, 0, max)
	for _, row := range rows {
		if len(unique) == max {
			break
		}
		if row.Label == "" || entityIDLabel.MatchString(row.Label) {
			continue
		}
		if _, dup := seen[row.Label]; dup {
			continue
		}
		seen[row.Label] = struct{}{}
		unique = append(unique, row)
	}
	return unique
}
