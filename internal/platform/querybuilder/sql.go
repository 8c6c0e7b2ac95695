// Package querybuilder renders postgres statements with numbered placeholders.
package querybuilder

import (
	"strconv"
	"strings"
)

// statement accumulates SQL text and its bound arguments.
type statement struct {
	buf  strings.Builder
	args []any
}

func (s *statement) write(parts ...string) {
	for _, part := range parts {
		s.buf.WriteString(part)
	}
}

// bind appends value and writes its placeholder.
func (s *statement) bind(value any) {
	s.args = append(s.args, value)
	s.buf.WriteString("$")
	s.buf.WriteString(strconv.Itoa(len(s.args)))
}

// expand writes expr, replacing each '?' with the next of values.
func (s *statement) expand(expr string, values []any) {
	next := 0
	for i := 0; i < len(expr); i++ {
		if expr[i] == '?' && next < len(values) {
			s.bind(values[next])
			next++
			continue
		}
		s.buf.WriteByte(expr[i])
	}
}

func (s *statement) where(conditions []Condition) {
	if len(conditions) == 0 {
		return
	}
	s.write(" WHERE ")
	for i, c := range conditions {
		if i > 0 {
			s.write(" AND ")
		}
		c.render(s)
	}
}

func (s *statement) list(keyword string, parts []string) {
	if len(parts) == 0 {
		return
	}
	s.write(" ", keyword, " ", strings.Join(parts, ", "))
}

func (s *statement) suffix(sql string) {
	if sql == "" {
		return
	}
	s.write(" ", sql)
}

func (s *statement) result() (string, []any, error) {
	return s.buf.String(), s.args, nil
}
