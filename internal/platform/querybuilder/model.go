package querybuilder

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
)

// InsertModel inserts one row built from the `db` tags of model.
func InsertModel(table string, model any, suffix string) (string, []any, error) {
	return InsertModels(table, []any{model}, suffix)
}

// InsertModels inserts one row per model. All models must share a column set.
func InsertModels(table string, models []any, suffix string) (string, []any, error) {
	if len(models) == 0 {
		return "", nil, fmt.Errorf("insert %s: no models", table)
	}

	b := InsertInto(table).Suffix(suffix)
	var columns []string
	for i, model := range models {
		cols, vals, err := modelColumns(model)
		if err != nil {
			return "", nil, err
		}
		if i == 0 {
			columns = cols
			b.Columns(cols...)
		} else if !slices.Equal(columns, cols) {
			return "", nil, fmt.Errorf("insert %s: model %d has a different column set", table, i)
		}
		b.Values(vals...)
	}
	return b.ToSQL()
}

// UpdateModel sets every column of model except keys, matching rows on the key columns.
func UpdateModel(table string, model any, keys ...string) (string, []any, error) {
	if len(keys) == 0 {
		return "", nil, fmt.Errorf("update %s: key columns are required", table)
	}
	cols, vals, err := modelColumns(model)
	if err != nil {
		return "", nil, err
	}

	b := Update(table)
	where := make([]Condition, 0, len(keys))
	for i, col := range cols {
		if slices.Contains(keys, col) {
			where = append(where, Eq(col, vals[i]))
			continue
		}
		b.Set(col, vals[i])
	}
	if len(where) != len(keys) {
		return "", nil, fmt.Errorf("update %s: model lacks key columns %v", table, keys)
	}
	return b.Where(where...).ToSQL()
}

func modelColumns(model any) ([]string, []any, error) {
	value := reflect.ValueOf(model)
	for value.Kind() == reflect.Pointer {
		if value.IsNil() {
			return nil, nil, fmt.Errorf("model cannot be nil")
		}
		value = value.Elem()
	}
	if value.Kind() != reflect.Struct {
		return nil, nil, fmt.Errorf("model must be struct, got %s", value.Kind())
	}

	typ := value.Type()
	cols := make([]string, 0, typ.NumField())
	vals := make([]any, 0, typ.NumField())
	for i := range typ.NumField() {
		field := typ.Field(i)
		if !field.IsExported() {
			continue
		}
		col, _, _ := strings.Cut(field.Tag.Get("db"), ",")
		col = strings.TrimSpace(col)
		if col == "" || col == "-" {
			continue
		}
		cols = append(cols, col)
		vals = append(vals, value.Field(i).Interface())
	}
	if len(cols) == 0 {
		return nil, nil, fmt.Errorf("model %s has no db columns", typ.Name())
	}
	return cols, vals, nil
}
