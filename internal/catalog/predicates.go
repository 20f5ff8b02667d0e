package catalog

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/felixgeelhaar/sqlvalley/internal/domain"
)

// CheckSpec declares a test predicate. Exactly one field must be set.
type CheckSpec struct {
	MinRows      *int          `yaml:"min_rows"`
	RowCount     *int          `yaml:"row_count"`
	ColumnCount  *int          `yaml:"column_count"`
	AllRows      *Condition    `yaml:"all_rows"`
	Sorted       *SortSpec     `yaml:"sorted"`
	Contains     *ContainsSpec `yaml:"contains"`
	ApproxValues *ApproxSpec   `yaml:"approx_values"`
	WhereAll     *WhereSpec    `yaml:"where_all"`
}

// Condition constrains the value in one column of a row
type Condition struct {
	Column int      `yaml:"column"`
	Equals any      `yaml:"equals"`
	GT     *float64 `yaml:"gt"`
	GTE    *float64 `yaml:"gte"`
	LT     *float64 `yaml:"lt"`
	LTE    *float64 `yaml:"lte"`
}

// SortSpec requires a column to be ordered
type SortSpec struct {
	Column int    `yaml:"column"`
	Order  string `yaml:"order"`
}

// ContainsSpec requires a column to include the given values
type ContainsSpec struct {
	Column int   `yaml:"column"`
	Values []any `yaml:"values"`
	Exact  bool  `yaml:"exact"`
}

// ApproxSpec maps key column values to expected numbers
type ApproxSpec struct {
	KeyColumn   int                `yaml:"key_column"`
	ValueColumn int                `yaml:"value_column"`
	Expected    map[string]float64 `yaml:"expected"`
	Tolerance   float64            `yaml:"tolerance"`
}

// WhereSpec applies Then to every row matching Match. At least one row must match.
type WhereSpec struct {
	Match Condition `yaml:"match"`
	Then  Condition `yaml:"then"`
}

var errCheckShape = errors.New("check must declare exactly one predicate")

// Compile turns the declaration into a predicate
func (c CheckSpec) Compile() (domain.Predicate, error) {
	var preds []domain.Predicate

	if c.MinRows != nil {
		n := *c.MinRows
		preds = append(preds, func(r domain.QueryResult) bool { return r.RowCount() >= n })
	}
	if c.RowCount != nil {
		n := *c.RowCount
		preds = append(preds, func(r domain.QueryResult) bool { return r.RowCount() == n })
	}
	if c.ColumnCount != nil {
		n := *c.ColumnCount
		preds = append(preds, func(r domain.QueryResult) bool {
			return r.RowCount() > 0 && r.ColumnCount() == n
		})
	}
	if c.AllRows != nil {
		cond := *c.AllRows
		preds = append(preds, func(r domain.QueryResult) bool {
			for _, row := range r.Rows {
				if !cond.Matches(row) {
					return false
				}
			}
			return true
		})
	}
	if c.Sorted != nil {
		p, err := c.Sorted.compile()
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	if c.Contains != nil {
		spec := *c.Contains
		if len(spec.Values) == 0 {
			return nil, errors.New("contains: values required")
		}
		preds = append(preds, spec.predicate)
	}
	if c.ApproxValues != nil {
		spec := *c.ApproxValues
		if len(spec.Expected) == 0 {
			return nil, errors.New("approx_values: expected required")
		}
		preds = append(preds, spec.predicate)
	}
	if c.WhereAll != nil {
		spec := *c.WhereAll
		preds = append(preds, spec.predicate)
	}

	if len(preds) != 1 {
		return nil, fmt.Errorf("%w, got %d", errCheckShape, len(preds))
	}
	return preds[0], nil
}

// Matches reports whether the row satisfies every constraint
func (c Condition) Matches(row []domain.Cell) bool {
	v := row[c.Column]
	if c.Equals != nil && !cellEqual(v, c.Equals) {
		return false
	}
	if c.GT == nil && c.GTE == nil && c.LT == nil && c.LTE == nil {
		return true
	}
	f, ok := toFloat(v)
	if !ok {
		return false
	}
	switch {
	case c.GT != nil && !(f > *c.GT):
		return false
	case c.GTE != nil && !(f >= *c.GTE):
		return false
	case c.LT != nil && !(f < *c.LT):
		return false
	case c.LTE != nil && !(f <= *c.LTE):
		return false
	}
	return true
}

func (s SortSpec) compile() (domain.Predicate, error) {
	desc := false
	switch s.Order {
	case "", "asc":
	case "desc":
		desc = true
	default:
		return nil, fmt.Errorf("sorted: unknown order %q", s.Order)
	}
	col := s.Column
	return func(r domain.QueryResult) bool {
		for i := 1; i < len(r.Rows); i++ {
			cmp, ok := compareCells(r.Rows[i][col], r.Rows[i-1][col])
			if !ok {
				return false
			}
			if (desc && cmp > 0) || (!desc && cmp < 0) {
				return false
			}
		}
		return true
	}, nil
}

func (s ContainsSpec) predicate(r domain.QueryResult) bool {
	if s.Exact && r.RowCount() != len(s.Values) {
		return false
	}
	column := r.Column(s.Column)
	for _, want := range s.Values {
		found := false
		for _, got := range column {
			if cellEqual(got, want) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (s ApproxSpec) predicate(r domain.QueryResult) bool {
	for _, row := range r.Rows {
		key, ok := row[s.KeyColumn].(string)
		if !ok {
			return false
		}
		want, ok := s.Expected[key]
		if !ok {
			return false
		}
		got, ok := toFloat(row[s.ValueColumn])
		if !ok {
			return false
		}
		diff := math.Abs(got - want)
		if s.Tolerance > 0 {
			if !(diff < s.Tolerance) {
				return false
			}
		} else if diff != 0 {
			return false
		}
	}
	return true
}

func (s WhereSpec) predicate(r domain.QueryResult) bool {
	matched := 0
	for _, row := range r.Rows {
		if !s.Match.Matches(row) {
			continue
		}
		matched++
		if !s.Then.Matches(row) {
			return false
		}
	}
	return matched > 0
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, !math.IsNaN(n)
	}
	return 0, false
}

// cellEqual compares numbers by value and everything else strictly.
func cellEqual(a, b any) bool {
	if af, ok := toFloat(a); ok {
		bf, ok := toFloat(b)
		return ok && af == bf
	}
	if _, ok := toFloat(b); ok {
		return false
	}
	if at, ok := a.(time.Time); ok {
		bt, ok := b.(time.Time)
		return ok && at.Equal(bt)
	}
	return a == b
}

func compareCells(a, b any) (int, bool) {
	if af, ok := toFloat(a); ok {
		bf, ok := toFloat(b)
		if !ok {
			return 0, false
		}
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		}
		return 0, true
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		switch {
		case av < bv:
			return -1, true
		case av > bv:
			return 1, true
		}
		return 0, true
	case time.Time:
		bv, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return av.Compare(bv), true
	}
	return 0, false
}
