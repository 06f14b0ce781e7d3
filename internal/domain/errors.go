package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Ошибки входа: возвращаются сразу, без повторных попыток.
var (
	// ErrInvalidRequest нарушен инвариант запроса (lane/url/prompt).
	ErrInvalidRequest = errors.New("некорректный запрос генерации")
	// ErrNoPlatforms в запросе нет ни одной целевой платформы.
	ErrNoPlatforms = errors.New("не указаны целевые платформы")
	// ErrInvalidURL ссылка не http/https.
	ErrInvalidURL = errors.New("ссылка должна быть http или https")
	// ErrUnsupportedImageType тип изображения вне allow-list.
	ErrUnsupportedImageType = errors.New("неподдерживаемый тип изображения")
)

// Ошибки извлечения статьи.
var (
	// ErrFetchTimeout загрузка страницы не уложилась в таймаут.
	ErrFetchTimeout = errors.New("таймаут загрузки страницы")
	// ErrFetchFailed страница вернула не-2xx или недоступна.
	ErrFetchFailed = errors.New("не удалось загрузить страницу")
	// ErrEmptyDocument документ пустой или не содержит текста.
	ErrEmptyDocument = errors.New("документ не содержит текста")
)

// ErrImageGeneration все уровни качества изображения завершились ошибкой.
var ErrImageGeneration = errors.New("генерация изображения не удалась")

// ErrRecordNotFound аудит-запись не найдена.
var ErrRecordNotFound = errors.New("запись генерации не найдена")

// AttemptOutcome классифицирует исход одного обращения к модели.
type AttemptOutcome string

const (
	// OutcomeRateLimited провайдер сообщил об исчерпании квоты.
	OutcomeRateLimited AttemptOutcome = "rate_limited"
	// OutcomeNotFound модель недоступна у провайдера.
	OutcomeNotFound AttemptOutcome = "not_found"
	// OutcomeOther любая другая ошибка.
	OutcomeOther AttemptOutcome = "other"
)

// ModelAttempt хранит исход обращения к конкретной модели.
type ModelAttempt struct {
	Model   string
	Outcome AttemptOutcome
	Err     string
}

// AllModelsFailedError возвращается шлюзом после исчерпания списка моделей.
type AllModelsFailedError struct {
	Task     CompletionTask
	Attempts []ModelAttempt
}

func (e *AllModelsFailedError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s (%s): %s", a.Model, a.Outcome, a.Err))
	}
	return fmt.Sprintf("все модели задачи %q недоступны: %s", e.Task, strings.Join(parts, "; "))
}

// OnlyRateLimited сообщает, что каждая попытка упёрлась в квоту.
func (e *AllModelsFailedError) OnlyRateLimited() bool {
	if len(e.Attempts) == 0 {
		return false
	}
	for _, a := range e.Attempts {
		if a.Outcome != OutcomeRateLimited {
			return false
		}
	}
	return true
}
