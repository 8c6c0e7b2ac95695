package querybuilder

// Condition is one AND-ed term of a WHERE clause.
type Condition interface {
	render(s *statement)
}

type compare struct {
	column string
	op     string
	value  any
}

func (c compare) render(s *statement) {
	s.write(c.column, " ", c.op, " ")
	s.bind(c.value)
}

func Eq(column string, value any) Condition {
	return compare{column: column, op: "=", value: value}
}

func Gt(column string, value any) Condition {
	return compare{column: column, op: ">", value: value}
}

type in struct {
	column string
	values []any
}

// In matches any of values. An empty list matches nothing.
func In(column string, values []any) Condition {
	return in{column: column, values: values}
}

func (c in) render(s *statement) {
	if len(c.values) == 0 {
		s.write("1=0")
		return
	}
	s.write(c.column, " IN (")
	for i, v := range c.values {
		if i > 0 {
			s.write(", ")
		}
		s.bind(v)
	}
	s.write(")")
}

type nullCheck struct {
	column string
	not    bool
}

func IsNull(column string) Condition {
	return nullCheck{column: column}
}

func IsNotNull(column string) Condition {
	return nullCheck{column: column, not: true}
}

func (c nullCheck) render(s *statement) {
	if c.not {
		s.write(c.column, " IS NOT NULL")
		return
	}
	s.write(c.column, " IS NULL")
}

type expr struct {
	sql  string
	args []any
}

// Expr is raw SQL with '?' placeholders.
func Expr(sql string, args ...any) Condition {
	return expr{sql: sql, args: args}
}

func (c expr) render(s *statement) {
	s.expand(c.sql, c.args)
}
