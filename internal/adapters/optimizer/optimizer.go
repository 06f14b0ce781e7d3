package optimizer

import (
	"fmt"
	"strings"

	"smm-post-generator/internal/adapters/textgen"
	"smm-post-generator/internal/domain"
)

// Чистые функции без сети и побочных эффектов: последняя линия защиты
// ограничений платформ перед возвратом результата.

// ValidationResult содержит итог проверки текста под платформу.
// Превышение лимита символов — ошибка, отклонение числа хэштегов от
// рекомендованного диапазона — предупреждение.
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// Validate проверяет текст против ограничений платформы.
func Validate(content string, platform domain.Platform) ValidationResult {
	limits := domain.LimitsFor(platform)
	result := ValidationResult{Valid: true}

	chars := len([]rune(content))
	if chars > limits.MaxChars {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("текст длиной %d символов превышает лимит %s в %d", chars, platform, limits.MaxChars))
	}

	_, tags := textgen.ExtractHashtags(content)
	if len(tags) < limits.HashtagsMin {
		result.Warnings = append(result.Warnings, fmt.Sprintf("для %s рекомендуется не меньше %d хэштегов, сейчас %d", platform, limits.HashtagsMin, len(tags)))
	}
	if len(tags) > limits.HashtagsMax {
		result.Warnings = append(result.Warnings, fmt.Sprintf("для %s рекомендуется не больше %d хэштегов, сейчас %d", platform, limits.HashtagsMax, len(tags)))
	}
	return result
}

// OptimizeFormat приводит текст к формату платформы: тело без хэштегов
// обрезается до limit-50 по границе предложения, хэштеги возвращаются в
// конец, затем один финальный жёсткий срез по лимиту. Функция идемпотентна.
func OptimizeFormat(content string, platform domain.Platform) string {
	limits := domain.LimitsFor(platform)

	body, tags := textgen.ExtractHashtags(content)
	if len(tags) > domain.MaxHashtags {
		tags = tags[:domain.MaxHashtags]
	}

	bodyBudget := limits.MaxChars - 50
	body = textgen.TruncateAtBoundary(body, bodyBudget)

	combined := body
	if len(tags) > 0 {
		tagLine := strings.Join(tags, " ")
		if combined == "" {
			combined = tagLine
		} else {
			combined = combined + "\n\n" + tagLine
		}
	}

	runes := []rune(combined)
	if len(runes) > limits.MaxChars {
		combined = strings.TrimSpace(string(runes[:limits.MaxChars]))
		// Срез мог оставить одинокую решётку от разрезанного хэштега.
		combined = strings.TrimRight(combined, "# \n")
	}
	return combined
}
