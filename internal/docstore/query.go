package docstore

import "fmt"

type Direction int

const (
	Ascending Direction = iota
	Descending
)

type Filter struct {
	Field string
	Value any
}

type Sort struct {
	Field     string
	Direction Direction
}

// Query selects documents of one collection whose fields equal every filter.
type Query struct {
	Collection string
	Filters    []Filter
	Sort       *Sort
}

func NewQuery(collection string) Query {
	return Query{Collection: collection}
}

func (q Query) Where(field string, value any) Query {
	filters := make([]Filter, len(q.Filters), len(q.Filters)+1)
	copy(filters, q.Filters)
	q.Filters = append(filters, Filter{Field: field, Value: value})
	return q
}

func (q Query) OrderBy(field string, direction Direction) Query {
	q.Sort = &Sort{Field: field, Direction: direction}
	return q
}

func (q Query) validate() error {
	if q.Collection == "" {
		return fmt.Errorf("%w: empty collection", ErrInvalidQuery)
	}
	for _, f := range q.Filters {
		if f.Field == "" {
			return fmt.Errorf("%w: empty filter field", ErrInvalidQuery)
		}
	}
	if q.Sort != nil && q.Sort.Field == "" {
		return fmt.Errorf("%w: empty sort field", ErrInvalidQuery)
	}
	return nil
}

// normalizedFilters returns the filters with values in their stored form.
func (q Query) normalizedFilters() (Fields, error) {
	out := make(Fields, len(q.Filters))
	for _, f := range q.Filters {
		v, err := normalizeValue(f.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: filter %q: %v", ErrInvalidQuery, f.Field, err)
		}
		out[f.Field] = v
	}
	return out, nil
}
