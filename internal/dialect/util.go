package dialect

import (
	"strings"
)

// GeneratePlaceholders joins count placeholders produced by placeholderFunc.
func GeneratePlaceholders(count int, placeholderFunc func(int) string) string {
	placeholders := make([]string, count)
	for i := 0; i < count; i++ {
		placeholders[i] = placeholderFunc(i)
	}
	return strings.Join(placeholders, ", ")
}

// QuoteWith wraps name in the quote character q, doubling any embedded q.
func QuoteWith(name string, q string) string {
	return q + strings.ReplaceAll(name, q, q+q) + q
}

// TrimStatement removes surrounding whitespace and trailing separators from a DDL fragment.
func TrimStatement(s string) string {
	return strings.TrimRight(strings.TrimSpace(s), ",;")
}
