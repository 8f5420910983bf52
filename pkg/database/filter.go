package database

import (
	"strconv"
	"strings"
)

// Filter accumulates WHERE conditions written with ? placeholders and numbers
// them as $1, $2, ... in order.
type Filter struct {
	conds []string
	args  []any
}

// NewFilter returns a filter that already excludes soft-deleted rows of alias.
func NewFilter(alias string) *Filter {
	f := &Filter{}
	f.conds = append(f.conds, Active(alias))
	return f
}

// Where adds a condition; each ? in cond consumes one of args.
func (f *Filter) Where(cond string, args ...any) *Filter {
	var b strings.Builder
	i := 0
	for _, r := range cond {
		if r == '?' && i < len(args) {
			f.args = append(f.args, args[i])
			b.WriteString("$" + strconv.Itoa(len(f.args)))
			i++
			continue
		}
		b.WriteRune(r)
	}
	f.conds = append(f.conds, b.String())
	return f
}

// Search adds a case-insensitive substring match across columns. Blank terms are ignored.
func (f *Filter) Search(term string, columns ...string) *Filter {
	term = strings.TrimSpace(term)
	if term == "" || len(columns) == 0 {
		return f
	}
	pattern := "%" + escapeLike(term) + "%"
	parts := make([]string, len(columns))
	args := make([]any, len(columns))
	for i, col := range columns {
		parts[i] = col + " ILIKE ?"
		args[i] = pattern
	}
	return f.Where("("+strings.Join(parts, " OR ")+")", args...)
}

// SQL returns the WHERE clause including its leading space, or "" when empty.
func (f *Filter) SQL() string {
	if len(f.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(f.conds, " AND ")
}

// Args returns the positional arguments in placeholder order.
func (f *Filter) Args() []any {
	out := make([]any, len(f.args))
	copy(out, f.args)
	return out
}

// Page returns a LIMIT/OFFSET suffix and the full argument list including them.
func (f *Filter) Page(limit, offset int) (string, []any) {
	args := append(f.Args(), limit, offset)
	n := len(args)
	return " LIMIT $" + strconv.Itoa(n-1) + " OFFSET $" + strconv.Itoa(n), args
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
