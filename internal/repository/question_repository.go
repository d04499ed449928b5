package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vigil-exam/vigil/internal/model"
)

// QuestionRepository handles question data access.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// ListByExam retrieves all questions of an exam, answer keys included,
// ordered by their position.
func (r *QuestionRepository) ListByExam(ctx context.Context, examID uuid.UUID) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, exam_id, type, question_text, options, answer_key, points, order_num
		 FROM questions WHERE exam_id = $1 ORDER BY order_num ASC`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.ExamID, &q.Type, &q.QuestionText,
			&q.Options, &q.AnswerKey, &q.Points, &q.OrderNum); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// Create inserts a new question.
func (r *QuestionRepository) Create(ctx context.Context, q *model.Question) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO questions (exam_id, type, question_text, options, answer_key, points, order_num)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		q.ExamID, q.Type, q.QuestionText, q.Options, q.AnswerKey, q.Points, q.OrderNum,
	).Scan(&q.ID)
}
