package walloffame

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	pkgerrors "deligma/pkg/errors"
)

const (
	membersTable = "fame_members"
	// maxNameLength matches fame_members.name VARCHAR(100).
	maxNameLength = 100
)

// checkName trims name and rejects blank or over-long values.
func checkName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", pkgerrors.Validation("El nombre es obligatorio")
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return "", pkgerrors.Validation(fmt.Sprintf("El nombre no puede exceder %d caracteres", maxNameLength))
	}
	return name, nil
}

type assignment struct {
	column string
	// raw is a SQL expression used instead of a bound parameter.
	raw   string
	value any
}

// updateBuilder compiles column assignments into a parameterized UPDATE.
// Column names only ever come from the constants in compilePatch.
type updateBuilder struct {
	table       string
	assignments []assignment
}

func (b *updateBuilder) set(column string, value any) {
	b.assignments = append(b.assignments, assignment{column: column, value: value})
}

func (b *updateBuilder) setRaw(column, expr string) {
	b.assignments = append(b.assignments, assignment{column: column, raw: expr})
}

func (b *updateBuilder) build(keyColumn string, key any) (string, []any) {
	clauses := make([]string, 0, len(b.assignments))
	args := make([]any, 0, len(b.assignments)+1)
	for _, a := range b.assignments {
		if a.raw != "" {
			clauses = append(clauses, fmt.Sprintf("%s = %s", a.column, a.raw))
			continue
		}
		args = append(args, a.value)
		clauses = append(clauses, fmt.Sprintf("%s = $%d", a.column, len(args)))
	}
	args = append(args, key)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = $%d",
		b.table, strings.Join(clauses, ", "), keyColumn, len(args))
	return query, args
}

// compilePatch turns the present scalar fields of p into an UPDATE of the
// member row. updated_at is always refreshed, so the statement also serves
// as the existence check.
func compilePatch(id uuid.UUID, p MemberPatch) (string, []any, error) {
	b := &updateBuilder{table: membersTable}

	if raw, ok := p.Name.Get(); ok {
		name, err := checkName(raw)
		if err != nil {
			return "", nil, err
		}
		b.set("name", name)
	}
	if image, ok := p.Image.Get(); ok {
		b.set("image", image)
	}
	if desc, ok := p.Description.Get(); ok {
		b.set("description", desc)
	}
	if order, ok := p.DisplayOrder.Get(); ok {
		b.set("display_order", order)
	}
	if active, ok := p.Active.Get(); ok {
		b.set("active", active)
	}
	b.setRaw("updated_at", "NOW()")

	query, args := b.build("id", id)
	return query, args, nil
}

// normalizeNewAchievements trims texts and drops blanks. The index of each
// kept entry plus one is its position.
func normalizeNewAchievements(texts []string) []string {
	out := make([]string, 0, len(texts))
	for _, t := range texts {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
