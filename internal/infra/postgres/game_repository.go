package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"trivia-quiz-service/internal/app"
	"trivia-quiz-service/internal/domain"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// GameRepository stores finished games in Postgres.
type GameRepository struct {
	pool *pgxpool.Pool
	db   querier
}

func NewGameRepository(pool *pgxpool.Pool) *GameRepository {
	return &GameRepository{pool: pool, db: pool}
}

// RunInTx runs fn against a repository bound to a single transaction.
func (r *GameRepository) RunInTx(ctx context.Context, fn func(ctx context.Context, repo app.GameRepository) error) error {
	return r.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		return fn(ctx, &GameRepository{pool: r.pool, db: tx})
	})
}

const insertQuestionSQL = `INSERT INTO questions (text, image_url, selected_answer, answers, topics)
VALUES ($1, $2, $3, $4::jsonb, $5)
RETURNING id::text`

func (r *GameRepository) InsertQuestions(ctx context.Context, records []domain.QuestionRecord) ([]string, error) {
	batch := &pgx.Batch{}
	for _, q := range records {
		answers, err := json.Marshal(q.Answers)
		if err != nil {
			return nil, fmt.Errorf("marshal answers: %w", err)
		}
		batch.Queue(insertQuestionSQL, q.Text, q.ImageURL, q.SelectedAnswer, string(answers), nonNil(q.Topics))
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	ids := make([]string, 0, len(records))
	for range records {
		var id string
		if err := results.QueryRow().Scan(&id); err != nil {
			return nil, fmt.Errorf("insert question: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *GameRepository) InsertGame(ctx context.Context, game domain.GameRecord) (string, error) {
	var id string
	err := r.db.QueryRow(ctx, `
		INSERT INTO games (user_id, number_of_questions, number_of_correct_answers, game_mode, points, topics, game_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id::text`,
		game.UserID, game.NumberOfQuestions, game.NumberOfCorrectAnswers, game.GameMode, game.Points, nonNil(game.Topics), game.GameDate,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert game: %w", err)
	}

	if len(game.QuestionIDs) > 0 {
		_, err = r.db.Exec(ctx, `
			INSERT INTO game_questions (game_id, question_id, position)
			SELECT $1::uuid, q.id::uuid, q.pos::int
			FROM unnest($2::text[]) WITH ORDINALITY AS q(id, pos)`,
			id, game.QuestionIDs,
		)
		if err != nil {
			return "", fmt.Errorf("link game questions: %w", err)
		}
	}
	return id, nil
}

const selectGameSQL = `
	SELECT g.id::text, g.user_id, g.number_of_questions, g.number_of_correct_answers,
	       g.game_mode, g.points, g.topics, g.game_date,
	       COALESCE(array_agg(gq.question_id::text ORDER BY gq.position)
	                FILTER (WHERE gq.question_id IS NOT NULL), '{}')
	FROM games g
	LEFT JOIN game_questions gq ON gq.game_id = g.id`

func (r *GameRepository) FindGamesByUser(ctx context.Context, userID string) ([]domain.GameRecord, error) {
	rows, err := r.db.Query(ctx, selectGameSQL+`
		WHERE g.user_id = $1
		GROUP BY g.id
		ORDER BY g.game_date DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query games: %w", err)
	}
	defer rows.Close()

	var games []domain.GameRecord
	for rows.Next() {
		game, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		games = append(games, game)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating games: %w", err)
	}
	return games, nil
}

func (r *GameRepository) FindGameByID(ctx context.Context, gameID string) (domain.GameRecord, error) {
	if _, err := uuid.Parse(gameID); err != nil {
		return domain.GameRecord{}, domain.ErrGameNotFound
	}
	row := r.db.QueryRow(ctx, selectGameSQL+`
		WHERE g.id = $1::uuid
		GROUP BY g.id`, gameID)
	game, err := scanGame(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.GameRecord{}, domain.ErrGameNotFound
	}
	return game, err
}

func (r *GameRepository) FindQuestionsByIDs(ctx context.Context, ids []string) ([]domain.QuestionRecord, error) {
	if len(ids) == 0 {
		return []domain.QuestionRecord{}, nil
	}
	rows, err := r.db.Query(ctx, `
		SELECT id::text, text, image_url, selected_answer, answers, topics
		FROM questions
		WHERE id = ANY($1::text[]::uuid[])`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query questions: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]domain.QuestionRecord, len(ids))
	for rows.Next() {
		var (
			q       domain.QuestionRecord
			answers []byte
		)
		if err := rows.Scan(&q.ID, &q.Text, &q.ImageURL, &q.SelectedAnswer, &answers, &q.Topics); err != nil {
			return nil, fmt.Errorf("failed to scan question: %w", err)
		}
		if err := json.Unmarshal(answers, &q.Answers); err != nil {
			return nil, fmt.Errorf("unmarshal answers of %s: %w", q.ID, err)
		}
		byID[q.ID] = q
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating questions: %w", err)
	}

	ordered := make([]domain.QuestionRecord, 0, len(ids))
	for _, id := range ids {
		q, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("question %s not found", id)
		}
		ordered = append(ordered, q)
	}
	return ordered, nil
}

func scanGame(row pgx.Row) (domain.GameRecord, error) {
	var g domain.GameRecord
	err := row.Scan(
		&g.ID,
		&g.UserID,
		&g.NumberOfQuestions,
		&g.NumberOfCorrectAnswers,
		&g.GameMode,
		&g.Points,
		&g.Topics,
		&g.GameDate,
		&g.QuestionIDs,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return g, err
		}
		return g, fmt.Errorf("failed to scan game: %w", err)
	}
	return g, nil
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
