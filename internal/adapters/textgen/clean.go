package textgen

import (
	"regexp"
	"strings"
)

// Детерминированная очистка сырого ответа модели от мета-комментариев.
// Порядок шагов фиксированный: маркеры разметки, преамбулы, хвосты после
// маркеров конца ответа, отдельно стоящий заголовок первой строкой.

var (
	codeFenceRe = regexp.MustCompile("(?m)^```[a-zA-Z]*\\s*$")
	boldRe      = regexp.MustCompile(`\*\*(.*?)\*\*`)
	preambleRe  = regexp.MustCompile(`(?i)^(here'?s|here is|sure[,!]|certainly[,!]?)\b.*$`)
	hashtagRe   = regexp.MustCompile(`#\w+`)
	spacesRe    = regexp.MustCompile(`[ \t]{2,}`)
)

// Маркеры, после которых модель объясняет собственный ответ.
var endMarkers = []string{
	"\n---",
	"\n***",
	"\n___",
	"why this works",
	"would you like",
	"let me know",
	"hope this helps",
	"feel free to",
	"alternative version",
}

// CleanModelOutput убирает из ответа модели всё, что не является телом поста.
func CleanModelOutput(raw string) string {
	text := strings.TrimSpace(raw)
	if text == "" {
		return ""
	}

	text = stripMarkdown(text)
	text = stripPreamble(text)
	text = cutAtEndMarkers(text)
	text = stripLeadingTitle(text)

	return strings.TrimSpace(text)
}

func stripMarkdown(text string) string {
	text = codeFenceRe.ReplaceAllString(text, "")
	text = boldRe.ReplaceAllString(text, "$1")
	text = strings.Trim(text, "`")
	return strings.TrimSpace(text)
}

func stripPreamble(text string) string {
	lines := strings.SplitN(text, "\n", 2)
	if len(lines) < 2 {
		return text
	}
	first := strings.TrimSpace(lines[0])
	if preambleRe.MatchString(first) {
		return strings.TrimSpace(lines[1])
	}
	return text
}

func cutAtEndMarkers(text string) string {
	lowered := strings.ToLower(text)
	cut := len(text)
	for _, marker := range endMarkers {
		if idx := strings.Index(lowered, marker); idx >= 0 && idx < cut {
			cut = idx
		}
	}
	return strings.TrimSpace(text[:cut])
}

// Отдельно стоящий заголовок: короткая первая строка с финальной
// пунктуацией и пустой строкой после неё.
func stripLeadingTitle(text string) string {
	parts := strings.SplitN(text, "\n\n", 2)
	if len(parts) < 2 {
		return text
	}
	first := strings.TrimSpace(parts[0])
	if strings.Contains(first, "\n") {
		return text
	}
	runes := []rune(first)
	if len(runes) == 0 || len(runes) >= 80 {
		return text
	}
	switch runes[len(runes)-1] {
	case '.', '?', '!':
		return strings.TrimSpace(parts[1])
	}
	return text
}

// ExtractHashtags вынимает хэштеги из текста и возвращает тело без них.
// Порядок сохраняется, дубликаты убираются без учёта регистра.
func ExtractHashtags(text string) (string, []string) {
	seen := make(map[string]struct{})
	var tags []string
	for _, tag := range hashtagRe.FindAllString(text, -1) {
		key := strings.ToLower(tag)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		tags = append(tags, tag)
	}
	body := hashtagRe.ReplaceAllString(text, "")
	body = spacesRe.ReplaceAllString(body, " ")
	// После вырезания хэштегов остаются висячие пробелы перед пунктуацией.
	body = strings.ReplaceAll(body, " \n", "\n")
	return strings.TrimSpace(body), tags
}

// ComposePost собирает итоговый текст: тело, обрезанное по границе
// предложения под бюджет, плюс не более maxTags хэштегов.
func ComposePost(body string, tags []string, limit, maxTags int) string {
	if maxTags >= 0 && len(tags) > maxTags {
		tags = tags[:maxTags]
	}
	tagLine := strings.Join(tags, " ")

	budget := limit
	if tagLine != "" {
		budget -= len([]rune(tagLine)) + 2
	}
	body = TruncateAtBoundary(body, budget)

	if tagLine == "" {
		return body
	}
	if body == "" {
		return tagLine
	}
	return body + "\n\n" + tagLine
}

// TruncateAtBoundary режет текст под лимит, предпочитая границу
// предложения или перенос строки; без подходящей границы — жёсткий
// срез с многоточием.
func TruncateAtBoundary(text string, limit int) string {
	text = strings.TrimSpace(text)
	if limit <= 0 {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}

	window := runes[:limit]
	boundary := -1
	for i := len(window) - 1; i >= 0; i-- {
		if window[i] == '.' || window[i] == '\n' || window[i] == '!' || window[i] == '?' {
			boundary = i
			break
		}
	}
	// Граница в самом начале текста бессмысленна: остаётся обрывок.
	if boundary >= limit/2 {
		return strings.TrimSpace(string(window[:boundary+1]))
	}
	hard := runes[:limit-1]
	return strings.TrimSpace(string(hard)) + "…"
}
