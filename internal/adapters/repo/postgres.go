package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"smm-post-generator/internal/domain"
)

// Postgres реализует аудит-репозиторий конвейера на основе pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ domain.GenerationRepo = (*Postgres)(nil)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// SaveRecord сохраняет аудит-запись одного прохода конвейера.
func (p *Postgres) SaveRecord(ctx context.Context, rec domain.GenerationRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	platforms := make([]string, 0, len(rec.Platforms))
	for _, pl := range rec.Platforms {
		platforms = append(platforms, string(pl))
	}

	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	_, err := p.pool.Exec(ctx, `
		INSERT INTO generation_records
			(id, caller_id, lane, category, platforms, text_model, image_model,
			 prompt_tokens, completion_tokens, overall_score, status, error_reason, duration_ms, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		rec.ID, rec.CallerID, string(rec.Lane), string(rec.Category), platforms,
		rec.TextModel, rec.ImageModel, rec.PromptTokens, rec.CompletionTokens,
		rec.OverallScore, string(rec.Status), rec.ErrorReason, rec.DurationMS, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("сохранение записи генерации: %w", err)
	}
	return nil
}

// GetRecord возвращает аудит-запись по идентификатору.
func (p *Postgres) GetRecord(ctx context.Context, id string) (domain.GenerationRecord, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var rec domain.GenerationRecord
	var lane, category, status string
	var platforms []string
	err := p.pool.QueryRow(ctx, `
		SELECT id, caller_id, lane, category, platforms, text_model, image_model,
		       prompt_tokens, completion_tokens, overall_score, status, error_reason, duration_ms, created_at
		FROM generation_records WHERE id = $1`, id).Scan(
		&rec.ID, &rec.CallerID, &lane, &category, &platforms, &rec.TextModel, &rec.ImageModel,
		&rec.PromptTokens, &rec.CompletionTokens, &rec.OverallScore, &status, &rec.ErrorReason,
		&rec.DurationMS, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.GenerationRecord{}, domain.ErrRecordNotFound
		}
		return domain.GenerationRecord{}, fmt.Errorf("чтение записи генерации: %w", err)
	}

	rec.Lane = domain.Lane(lane)
	rec.Category = domain.Category(category)
	rec.Status = domain.GenerationStatus(status)
	rec.Platforms = make([]domain.Platform, 0, len(platforms))
	for _, pl := range platforms {
		rec.Platforms = append(rec.Platforms, domain.Platform(pl))
	}
	return rec, nil
}
