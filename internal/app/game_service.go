package app

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"trivia-quiz-service/internal/domain"
)

// DefaultGameMode is recorded when a finished game does not name its mode.
const DefaultGameMode = "classic"

// SessionCache abstracts where per-game configuration lives (in-memory, Redis, etc).
type SessionCache interface {
	Put(ctx context.Context, sessionID string, cfg domain.SessionConfig) error
	// Get returns domain.ErrSessionNotFound on a miss.
	Get(ctx context.Context, sessionID string) (domain.SessionConfig, error)
	Delete(ctx context.Context, sessionID string) error
}

// GameRepository persists finished games and the questions asked within them.
type GameRepository interface {
	// InsertQuestions stores records in order and returns their ids in the same order.
	InsertQuestions(ctx context.Context, records []domain.QuestionRecord) ([]string, error)
	InsertGame(ctx context.Context, game domain.GameRecord) (string, error)
	FindGamesByUser(ctx context.Context, userID string) ([]domain.GameRecord, error)
	// FindGameByID returns domain.ErrGameNotFound for unknown ids.
	FindGameByID(ctx context.Context, gameID string) (domain.GameRecord, error)
	// FindQuestionsByIDs returns records ordered like ids.
	FindQuestionsByIDs(ctx context.Context, ids []string) ([]domain.QuestionRecord, error)
}

// TxRunner is implemented by repositories able to run several writes atomically.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, repo GameRepository) error) error
}

// TopicCatalog lists the topics a game may be configured with.
type TopicCatalog interface {
	Topics() []string
}

// NewGameInput configures a session.
type NewGameInput struct {
	SessionID       string           `json:"sessionId" validate:"required"`
	Topics          domain.TopicList `json:"topics" validate:"required,min=1,dive,required"`
	Language        string           `json:"language" validate:"required,oneof=es en"`
	QuestionCount   int              `json:"questionCount" validate:"gte=0,lte=100"`
	TimePerQuestion int              `json:"timePerQuestion" validate:"gte=0,lte=600"`
}

// QuestionInput is one answered question of a finished game.
type QuestionInput struct {
	Text           string           `json:"text" validate:"required"`
	ImageURL       string           `json:"imageUrl"`
	SelectedAnswer string           `json:"selectedAnswer"`
	Answers        []domain.Answer  `json:"answers" validate:"min=2,dive"`
	Topics         domain.TopicList `json:"topics"`
}

// EndGameInput is the full transcript of a finished game.
type EndGameInput struct {
	SessionID              string          `json:"sessionId"`
	UserID                 string          `json:"userId" validate:"required"`
	NumberOfQuestions      int             `json:"numberOfQuestions" validate:"gte=1"`
	NumberOfCorrectAnswers int             `json:"numberOfCorrectAnswers" validate:"gte=0,ltefield=NumberOfQuestions"`
	GameMode               string          `json:"gameMode"`
	Points                 int             `json:"points" validate:"gte=0"`
	Questions              []QuestionInput `json:"questions" validate:"required,min=1,dive"`
}

// GameService drives game sessions: configuration, question delivery and completion.
type GameService struct {
	sessions      SessionCache
	questions     QuestionSource
	games         GameRepository
	allowedTopics map[string]struct{}
	validate      *validator.Validate
	log           zerolog.Logger
	now           func() time.Time
	requireUUID   bool
}

// ServiceOption configures a GameService.
type ServiceOption func(*GameService)

// WithClock sets the clock used for session and game timestamps.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *GameService) {
		s.now = now
	}
}

// WithUUIDSessionIDs rejects session ids that are not UUIDs.
func WithUUIDSessionIDs(required bool) ServiceOption {
	return func(s *GameService) {
		s.requireUUID = required
	}
}

func NewGameService(sessions SessionCache, questions QuestionSource, games GameRepository, topics TopicCatalog, log zerolog.Logger, opts ...ServiceOption) *GameService {
	allowed := make(map[string]struct{})
	for _, topic := range topics.Topics() {
		allowed[topic] = struct{}{}
	}

	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	s := &GameService{
		sessions:      sessions,
		questions:     questions,
		games:         games,
		allowedTopics: allowed,
		validate:      v,
		log:           log,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewGame validates the configuration and stores it under the caller's session id.
// Durable storage is not touched.
func (s *GameService) NewGame(ctx context.Context, in NewGameInput) (domain.SessionConfig, error) {
	in.SessionID = strings.TrimSpace(in.SessionID)
	in.Language = strings.ToLower(strings.TrimSpace(in.Language))
	if err := s.validate.Struct(in); err != nil {
		return domain.SessionConfig{}, invalidInput(err)
	}
	if s.requireUUID {
		if _, err := uuid.Parse(in.SessionID); err != nil {
			return domain.SessionConfig{}, fmt.Errorf("%w: sessionId must be a UUID", domain.ErrInvalidInput)
		}
	}
	for _, topic := range in.Topics {
		if _, ok := s.allowedTopics[topic]; !ok {
			return domain.SessionConfig{}, fmt.Errorf("%w: unknown topic %q", domain.ErrInvalidInput, topic)
		}
	}

	cfg := domain.SessionConfig{
		Topics:          dedupe(in.Topics),
		Language:        domain.Language(in.Language),
		QuestionCount:   in.QuestionCount,
		TimePerQuestion: in.TimePerQuestion,
		CreatedAt:       s.now().UTC(),
	}
	if err := s.sessions.Put(ctx, in.SessionID, cfg); err != nil {
		return domain.SessionConfig{}, fmt.Errorf("store session %s: %w", in.SessionID, err)
	}
	s.log.Debug().
		Str("session_id", in.SessionID).
		Strs("topics", cfg.Topics).
		Str("language", string(cfg.Language)).
		Msg("game configured")
	return cfg, nil
}

// Session returns the stored configuration of a session.
func (s *GameService) Session(ctx context.Context, sessionID string) (domain.SessionConfig, error) {
	key, err := sessionKey(sessionID)
	if err != nil {
		return domain.SessionConfig{}, err
	}
	return s.sessions.Get(ctx, key)
}

// Next generates a question for a configured session. It never writes durable state.
func (s *GameService) Next(ctx context.Context, sessionID string) (domain.GeneratedQuestion, error) {
	key, err := sessionKey(sessionID)
	if err != nil {
		return domain.GeneratedQuestion{}, err
	}
	cfg, err := s.sessions.Get(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return domain.GeneratedQuestion{}, err
		}
		return domain.GeneratedQuestion{}, fmt.Errorf("load session %s: %w", key, err)
	}
	return s.questions.Generate(ctx, cfg.Topics, cfg.Language)
}

// Generate produces a question without a session.
func (s *GameService) Generate(ctx context.Context, topics []string, lang domain.Language) (domain.GeneratedQuestion, error) {
	for _, topic := range topics {
		if _, ok := s.allowedTopics[topic]; !ok {
			return domain.GeneratedQuestion{}, fmt.Errorf("%w: unknown topic %q", domain.ErrInvalidInput, topic)
		}
	}
	return s.questions.Generate(ctx, topics, lang)
}

// EndAndSaveGame validates a finished game transcript and persists its questions,
// then the game record referencing them. Both writes share a transaction when the
// repository supports it; otherwise a failed game insert leaves the questions behind.
func (s *GameService) EndAndSaveGame(ctx context.Context, in EndGameInput) (domain.GameRecord, error) {
	in.SessionID = strings.TrimSpace(in.SessionID)
	in.UserID = strings.TrimSpace(in.UserID)
	if err := s.validateEndGame(in); err != nil {
		return domain.GameRecord{}, err
	}

	records := make([]domain.QuestionRecord, len(in.Questions))
	var topics []string
	for i, q := range in.Questions {
		records[i] = domain.QuestionRecord{
			Text:           q.Text,
			ImageURL:       q.ImageURL,
			SelectedAnswer: q.SelectedAnswer,
			Answers:        q.Answers,
			Topics:         dedupe(q.Topics),
		}
		topics = append(topics, q.Topics...)
	}
	topics = dedupe(topics)
	sort.Strings(topics)

	mode := strings.TrimSpace(in.GameMode)
	if mode == "" {
		mode = DefaultGameMode
	}
	game := domain.GameRecord{
		UserID:                 in.UserID,
		NumberOfQuestions:      in.NumberOfQuestions,
		NumberOfCorrectAnswers: in.NumberOfCorrectAnswers,
		GameMode:               mode,
		Points:                 in.Points,
		Topics:                 topics,
		GameDate:               s.now().UTC(),
	}

	save := func(ctx context.Context, repo GameRepository) error {
		ids, err := repo.InsertQuestions(ctx, records)
		if err != nil {
			return fmt.Errorf("insert questions: %w", err)
		}
		if len(ids) != len(records) {
			return fmt.Errorf("insert questions: got %d ids for %d records", len(ids), len(records))
		}
		game.QuestionIDs = ids
		id, err := repo.InsertGame(ctx, game)
		if err != nil {
			return fmt.Errorf("insert game: %w", err)
		}
		game.ID = id
		return nil
	}

	var err error
	if tx, ok := s.games.(TxRunner); ok {
		err = tx.RunInTx(ctx, save)
	} else {
		err = save(ctx, s.games)
	}
	if err != nil {
		s.log.Error().Err(err).Str("user_id", in.UserID).Msg("failed to save game")
		return domain.GameRecord{}, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}

	if in.SessionID != "" {
		if err := s.sessions.Delete(ctx, in.SessionID); err != nil {
			s.log.Warn().Err(err).Str("session_id", in.SessionID).Msg("failed to evict finished session")
		}
	}
	s.log.Info().
		Str("game_id", game.ID).
		Str("user_id", game.UserID).
		Int("questions", game.NumberOfQuestions).
		Msg("game saved")
	return game, nil
}

// GameHistory lists a user's games, newest first.
func (s *GameService) GameHistory(ctx context.Context, userID string) ([]domain.GameSummary, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: userId is required", domain.ErrInvalidInput)
	}
	games, err := s.games.FindGamesByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	sort.SliceStable(games, func(i, j int) bool {
		return games[i].GameDate.After(games[j].GameDate)
	})
	summaries := make([]domain.GameSummary, 0, len(games))
	for _, g := range games {
		summaries = append(summaries, g.Summary())
	}
	return summaries, nil
}

// GameQuestions returns the questions of a game in the order they were asked.
func (s *GameService) GameQuestions(ctx context.Context, gameID string) ([]domain.QuestionRecord, error) {
	if strings.TrimSpace(gameID) == "" {
		return nil, fmt.Errorf("%w: gameId is required", domain.ErrInvalidInput)
	}
	game, err := s.games.FindGameByID(ctx, gameID)
	if err != nil {
		if errors.Is(err, domain.ErrGameNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	questions, err := s.games.FindQuestionsByIDs(ctx, game.QuestionIDs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	return questions, nil
}

func (s *GameService) validateEndGame(in EndGameInput) error {
	if err := s.validate.Struct(in); err != nil {
		return invalidInput(err)
	}
	if len(in.Questions) != in.NumberOfQuestions {
		return fmt.Errorf("%w: numberOfQuestions is %d but %d questions were sent", domain.ErrInvalidInput, in.NumberOfQuestions, len(in.Questions))
	}
	for i, q := range in.Questions {
		correct := 0
		for _, a := range q.Answers {
			if a.IsCorrect {
				correct++
			}
		}
		if correct != 1 {
			return fmt.Errorf("%w: questions[%d] must have exactly one correct answer, has %d", domain.ErrInvalidInput, i, correct)
		}
	}
	return nil
}

// sessionKey is the form under which session ids are stored and looked up.
func sessionKey(sessionID string) (string, error) {
	key := strings.TrimSpace(sessionID)
	if key == "" {
		return "", fmt.Errorf("%w: sessionId is required", domain.ErrInvalidInput)
	}
	return key, nil
}

func invalidInput(err error) error {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		field := fe.Namespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}
		msg := field + " failed " + fe.Tag()
		if fe.Param() != "" {
			msg += "=" + fe.Param()
		}
		msgs = append(msgs, msg)
	}
	return fmt.Errorf("%w: %s", domain.ErrInvalidInput, strings.Join(msgs, "; "))
}

func dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item == "" {
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}
