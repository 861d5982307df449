package demo

import "strings"

var abbreviations = map[string]string{
	"nm": "name", "dt": "date", "no": "number", "cd": "code",
	"desc": "description", "amt": "amount", "cnt": "count", "qty": "quantity",
	"addr": "address", "tel": "phone", "ph": "phone",
	"fn": "first", "ln": "last", "fname": "first name", "lname": "last name",
	"mail": "email", "zip": "zipcode", "loc": "location", "venue": "place",
	"tm": "time", "hr": "hour", "cat": "category", "typ": "type",
	"mid": "id", "uid": "id", "pid": "id", "int": "number", "num": "number",
}

// AnalyzeMeaning expands the abbreviations in a snake_case column name,
// e.g. "mgr_fname" becomes "mgr first name".
func AnalyzeMeaning(colName string) string {
	parts := strings.Split(strings.ToLower(colName), "_")
	decoded := make([]string, 0, len(parts))
	for _, part := range parts {
		if full, ok := abbreviations[part]; ok {
			decoded = append(decoded, full)
		} else {
			decoded = append(decoded, part)
		}
	}
	return strings.Join(decoded, " ")
}

// isKey reports whether the meaning names an identifier column.
func isKey(meaning string) bool {
	return meaning == "id" || strings.HasSuffix(meaning, " id")
}
