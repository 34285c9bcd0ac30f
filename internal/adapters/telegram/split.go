package telegram

import "strings"

const messageLimit = 4096

// SplitMessage режет текст на части, не превышающие лимит Telegram.
// Разрез предпочитает границу абзаца, затем границу строки, чтобы
// лидерборды и предформатированные блоки не рвались посередине.
func SplitMessage(text string) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	runes := []rune(trimmed)
	if len(runes) <= messageLimit {
		return []string{trimmed}
	}

	var parts []string
	for start := 0; start < len(runes); {
		end := start + messageLimit
		if end >= len(runes) {
			appendChunk(&parts, runes[start:])
			break
		}

		split := lastBoundary(runes, start, end, true)
		if split == -1 {
			split = lastBoundary(runes, start, end, false)
		}
		if split == -1 {
			split = end
		}

		appendChunk(&parts, runes[start:split])
		start = split
		for start < len(runes) && runes[start] == '\n' {
			start++
		}
	}

	if len(parts) == 0 {
		return []string{trimmed}
	}
	return parts
}

// lastBoundary ищет с конца runes[start:end] границу строки (или абзаца,
// если paragraph) и возвращает позицию сразу за ней, либо -1.
func lastBoundary(runes []rune, start, end int, paragraph bool) int {
	for i := end; i > start; i-- {
		if runes[i-1] != '\n' {
			continue
		}
		if paragraph && (i-2 < start || runes[i-2] != '\n') {
			continue
		}
		return i
	}
	return -1
}

func appendChunk(parts *[]string, runes []rune) {
	chunk := strings.Trim(string(runes), "\n")
	if chunk != "" {
		*parts = append(*parts, chunk)
	}
}
