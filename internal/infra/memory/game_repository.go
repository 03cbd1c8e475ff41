package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"trivia-quiz-service/internal/domain"
)

// GameRepository keeps finished games in memory (useful for tests/demos).
// Writes are not transactional: a failed game insert leaves its questions stored.
type GameRepository struct {
	mu        sync.RWMutex
	games     map[string]domain.GameRecord
	questions map[string]domain.QuestionRecord
}

func NewGameRepository() *GameRepository {
	return &GameRepository{
		games:     make(map[string]domain.GameRecord),
		questions: make(map[string]domain.QuestionRecord),
	}
}

func (r *GameRepository) InsertQuestions(_ context.Context, records []domain.QuestionRecord) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, len(records))
	for i, rec := range records {
		rec.ID = uuid.NewString()
		rec.Answers = append([]domain.Answer(nil), rec.Answers...)
		rec.Topics = append([]string(nil), rec.Topics...)
		r.questions[rec.ID] = rec
		ids[i] = rec.ID
	}
	return ids, nil
}

func (r *GameRepository) InsertGame(_ context.Context, game domain.GameRecord) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range game.QuestionIDs {
		if _, ok := r.questions[id]; !ok {
			return "", fmt.Errorf("question %s not stored", id)
		}
	}
	game.ID = uuid.NewString()
	game.Topics = append([]string(nil), game.Topics...)
	game.QuestionIDs = append([]string(nil), game.QuestionIDs...)
	r.games[game.ID] = game
	return game.ID, nil
}

func (r *GameRepository) FindGamesByUser(_ context.Context, userID string) ([]domain.GameRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var games []domain.GameRecord
	for _, g := range r.games {
		if g.UserID == userID {
			games = append(games, g)
		}
	}
	return games, nil
}

func (r *GameRepository) FindGameByID(_ context.Context, gameID string) (domain.GameRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	game, ok := r.games[gameID]
	if !ok {
		return domain.GameRecord{}, domain.ErrGameNotFound
	}
	return game, nil
}

func (r *GameRepository) FindQuestionsByIDs(_ context.Context, ids []string) ([]domain.QuestionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	records := make([]domain.QuestionRecord, 0, len(ids))
	for _, id := range ids {
		rec, ok := r.questions[id]
		if !ok {
			return nil, fmt.Errorf("question %s not found", id)
		}
		records = append(records, rec)
	}
	return records, nil
}

// QuestionCount reports how many question records are stored, orphans included.
func (r *GameRepository) QuestionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.questions)
}
