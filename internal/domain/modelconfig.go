package domain

// CompletionTask различает назначение обращения к текстовой модели.
// У каждой задачи собственный упорядоченный список моделей.
type CompletionTask string

const (
	// TaskText генерация текста поста.
	TaskText CompletionTask = "text"
	// TaskPromptRefine уплотнение пользовательского промпта.
	TaskPromptRefine CompletionTask = "prompt-refine"
	// TaskURLSummarize суммаризация извлечённой статьи.
	TaskURLSummarize CompletionTask = "url-summarize"
)

// ModelConfig — неизменяемая таблица моделей по задачам.
// Конструируется один раз на старте процесса и передаётся по ссылке.
type ModelConfig struct {
	tasks map[CompletionTask][]string
}

// NewModelConfig копирует списки моделей, защищая таблицу от мутаций извне.
func NewModelConfig(tasks map[CompletionTask][]string) *ModelConfig {
	copied := make(map[CompletionTask][]string, len(tasks))
	for task, models := range tasks {
		copied[task] = append([]string(nil), models...)
	}
	return &ModelConfig{tasks: copied}
}

// Models возвращает копию списка [primary, fallbacks...] для задачи.
// Для незнакомой задачи действует список задачи text.
func (c *ModelConfig) Models(task CompletionTask) []string {
	models, ok := c.tasks[task]
	if !ok {
		models = c.tasks[TaskText]
	}
	return append([]string(nil), models...)
}
