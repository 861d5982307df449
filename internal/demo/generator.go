package demo

import (
	"fmt"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
)

// Generator produces demo rows. Two generators with the same seed produce the
// same rows.
type Generator struct {
	faker  *gofakeit.Faker
	domain string
}

func NewGenerator(seed int64) *Generator {
	g := &Generator{faker: gofakeit.New(seed)}
	g.domain = strings.ToLower(g.Name(4, 8))
	return g
}

// Name invents a pronounceable capitalized word. Vowels and consonants
// alternate, with a one in five chance of repeating the same kind.
func (g *Generator) Name(minChars, maxChars int) string {
	first, second := Vowels, Consonants
	if g.faker.Bool() {
		first, second = second, first
	}
	n := g.faker.Number(minChars, maxChars)
	var b strings.Builder
	for i := 0; i < n; i++ {
		b.WriteString(g.faker.RandomString(first))
		if g.faker.Number(1, 5) != 5 {
			first, second = second, first
		}
	}
	name := b.String()
	return strings.ToUpper(name[:1]) + name[1:]
}

func (g *Generator) Genre() string {
	return g.faker.RandomString(GenrePrefixes) + g.Name(4, 6) + g.faker.RandomString(GenreSuffixes)
}

func truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) > limit {
		return string(runes[:limit])
	}
	return s
}

// Value generates a value for a column that is not a foreign key.
// index is the zero-based row number.
func (g *Generator) Value(col Column, index int) any {
	if col.IsPK {
		return index + 1
	}
	dataType := strings.ToLower(col.DataType)
	meaning := AnalyzeMeaning(col.Name)

	if strings.Contains(dataType, "char") || strings.Contains(dataType, "text") {
		switch {
		case strings.Contains(meaning, "email"):
			return truncate(fmt.Sprintf("%s@%s-festivals.com", strings.ToLower(g.Name(3, 6)), g.domain), col.Length)
		case strings.Contains(meaning, "first"):
			return truncate(g.Name(3, 6), col.Length)
		case strings.Contains(meaning, "last"):
			return truncate(g.Name(5, 10), col.Length)
		case strings.Contains(meaning, "genre"):
			return truncate(g.Genre(), col.Length)
		case isKey(meaning):
			return truncate(fmt.Sprintf("%d", index+1), col.Length)
		}
		// names, places, cities: any invented word will do
		return truncate(g.Name(3, 9), col.Length)
	}

	if dataType == "date" || strings.Contains(dataType, "datetime") || strings.Contains(dataType, "timestamp") {
		start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
		val := g.faker.DateRange(start, start.AddDate(1, 0, -4))
		if dataType == "date" {
			return val.Format("2006-01-02")
		}
		return val.Format("2006-01-02 15:04:05")
	}
	if dataType == "time" {
		return fmt.Sprintf("%02d:%02d:00", g.faker.RandomInt(StageHours), g.faker.RandomInt(StageMinutes))
	}

	if strings.Contains(dataType, "int") {
		if strings.Contains(dataType, "tinyint") {
			return g.faker.Number(0, 127)
		}
		if strings.Contains(meaning, "count") || strings.Contains(meaning, "number") {
			return g.faker.Number(1, 1000)
		}
		return g.faker.Number(1, 50000)
	}
	if strings.Contains(dataType, "decimal") || strings.Contains(dataType, "float") || strings.Contains(dataType, "double") {
		return g.faker.Price(0.99, 99.99)
	}
	return nil
}

// Row generates the values for t's columns in order. Foreign key columns take
// their values from pool, walking every combination of parent keys as index
// grows. ok is false when a referenced table has no keys yet.
func (g *Generator) Row(t Table, index int, pool map[string][]any) (values []any, ok bool) {
	values = make([]any, len(t.Columns))
	radix := 1
	for i, col := range t.Columns {
		if col.RefTable == "" {
			values[i] = g.Value(col, index)
			continue
		}
		keys := pool[col.RefTable]
		if len(keys) == 0 {
			return nil, false
		}
		values[i] = keys[(index/radix)%len(keys)]
		radix *= len(keys)
	}
	g.personalEmail(t, values)
	return values, true
}

// personalEmail rewrites an email column as first.last@domain when the row
// also carries first and last names.
func (g *Generator) personalEmail(t Table, values []any) {
	first, last, email := -1, -1, -1
	for i, col := range t.Columns {
		switch meaning := AnalyzeMeaning(col.Name); {
		case strings.Contains(meaning, "email"):
			email = i
		case strings.Contains(meaning, "first"):
			first = i
		case strings.Contains(meaning, "last"):
			last = i
		}
	}
	if first < 0 || last < 0 || email < 0 {
		return
	}
	addr := fmt.Sprintf("%v.%v@%s-festivals.com", values[first], values[last], g.domain)
	values[email] = truncate(strings.ToLower(addr), t.Columns[email].Length)
}

// RowCount is the number of rows to generate for t: n for a table without
// foreign keys, otherwise one row per combination of parent keys.
func RowCount(t Table, n int, pool map[string][]any) int {
	count := 0
	for _, col := range t.Columns {
		if col.RefTable == "" {
			continue
		}
		if count == 0 {
			count = 1
		}
		count *= len(pool[col.RefTable])
	}
	if count == 0 {
		return n
	}
	return count
}
