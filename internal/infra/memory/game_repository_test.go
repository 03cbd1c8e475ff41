package memory

import (
	"context"
	"errors"
	"testing"

	"trivia-quiz-service/internal/domain"
)

func TestGameRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewGameRepository()

	ids, err := repo.InsertQuestions(ctx, []domain.QuestionRecord{
		{Text: "Q1", Answers: []domain.Answer{{Text: "a", IsCorrect: true}, {Text: "b"}}},
		{Text: "Q2", Answers: []domain.Answer{{Text: "c"}, {Text: "d", IsCorrect: true}}},
	})
	if err != nil {
		t.Fatalf("insert questions: %v", err)
	}
	if len(ids) != 2 || ids[0] == ids[1] {
		t.Fatalf("expected 2 distinct ids, got %v", ids)
	}

	// Reverse order to check FindQuestionsByIDs keeps the requested order.
	gameID, err := repo.InsertGame(ctx, domain.GameRecord{UserID: "u1", NumberOfQuestions: 2, QuestionIDs: []string{ids[1], ids[0]}})
	if err != nil {
		t.Fatalf("insert game: %v", err)
	}

	game, err := repo.FindGameByID(ctx, gameID)
	if err != nil {
		t.Fatalf("find game: %v", err)
	}
	questions, err := repo.FindQuestionsByIDs(ctx, game.QuestionIDs)
	if err != nil {
		t.Fatalf("find questions: %v", err)
	}
	if questions[0].Text != "Q2" || questions[1].Text != "Q1" {
		t.Fatalf("unexpected order %+v", questions)
	}

	games, _ := repo.FindGamesByUser(ctx, "u1")
	if len(games) != 1 {
		t.Fatalf("expected one game for u1, got %d", len(games))
	}
	if games, _ := repo.FindGamesByUser(ctx, "u2"); len(games) != 0 {
		t.Fatalf("expected no games for u2")
	}

	if _, err := repo.FindGameByID(ctx, "missing"); !errors.Is(err, domain.ErrGameNotFound) {
		t.Fatalf("expected game not found, got %v", err)
	}
}

func TestGameRepositoryRejectsUnknownQuestionIDs(t *testing.T) {
	repo := NewGameRepository()
	if _, err := repo.InsertGame(context.Background(), domain.GameRecord{QuestionIDs: []string{"nope"}}); err == nil {
		t.Fatalf("expected error for unknown question id")
	}
}
