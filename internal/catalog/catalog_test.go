package catalog

import (
	"testing"
	"testing/fstest"

	"github.com/felixgeelhaar/sqlvalley/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	assert.Equal(t, "SQL Valley", c.Name())
	assert.Equal(t, 7, c.Len())
	assert.Equal(t, 195, c.TotalPoints())

	ids := make([]int, 0, c.Len())
	for _, ex := range c.Exercises() {
		ids = append(ids, ex.ID)
		assert.NotEmpty(t, ex.Solution, "exercise %d solution", ex.ID)
		assert.NotEmpty(t, ex.Hints, "exercise %d hints", ex.ID)
		assert.True(t, ex.Difficulty.IsValid(), "exercise %d difficulty %q", ex.ID, ex.Difficulty)
	}
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7}, ids)
	assert.Equal(t, ids, c.IDs())

	root := c.Root()
	require.NotNil(t, root)
	assert.Equal(t, 1, root.ID)

	six, ok := c.Lookup(6)
	require.True(t, ok)
	assert.Equal(t, []int{3, 5}, six.Prerequisites)
	assert.Equal(t, []string{"sql_master", "aggregation_expert"}, six.AchievementTriggers)

	one := c.Get(1)
	assert.Len(t, one.Bonuses, 2)
	assert.Equal(t, 10, one.Points)
}

func TestCatalog_GetUnknown(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	ex := c.Get(999)
	assert.Equal(t, 999, ex.ID)
	assert.Empty(t, ex.TestCases)

	_, ok := c.Lookup(999)
	assert.False(t, ok)
}

func TestCatalog_Achievements(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	ids := map[string]bool{}
	for _, a := range c.Achievements() {
		ids[a.ID] = true
		assert.NotEmpty(t, a.Name)
	}
	for _, want := range []string{"first_select", "filter_master", "data_analyst", "join_master",
		"subquery_expert", "sql_master", "aggregation_expert", "join_wizard"} {
		assert.True(t, ids[want], "missing badge %s", want)
	}
}

func passAll(domain.QueryResult) bool { return true }

func ex(id int, prereqs ...int) *domain.Exercise {
	return &domain.Exercise{
		ID:            id,
		Title:         "Exercise",
		Points:        10,
		Prerequisites: prereqs,
		TestCases:     []domain.TestCase{{Name: "ok", Weight: 1, Predicate: passAll}},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		exercises []*domain.Exercise
		wantErr   bool
	}{
		{"valid chain", []*domain.Exercise{ex(1), ex(2, 1), ex(3, 1, 2)}, false},
		{"empty", nil, true},
		{"duplicate id", []*domain.Exercise{ex(1), ex(1)}, true},
		{"unknown prerequisite", []*domain.Exercise{ex(1), ex(2, 9)}, true},
		{"self dependency", []*domain.Exercise{ex(1), ex(2, 2)}, true},
		{"cycle", []*domain.Exercise{ex(1), ex(2, 3), ex(3, 2)}, true},
		{"no root", []*domain.Exercise{ex(1, 2), ex(2, 1)}, true},
		{"zero weight", []*domain.Exercise{func() *domain.Exercise {
			e := ex(1)
			e.TestCases[0].Weight = 0
			return e
		}()}, true},
		{"no tests", []*domain.Exercise{func() *domain.Exercise {
			e := ex(1)
			e.TestCases = nil
			return e
		}()}, true},
		{"zero points", []*domain.Exercise{func() *domain.Exercise {
			e := ex(1)
			e.Points = 0
			return e
		}()}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.exercises)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, domain.ErrInvalidCatalog)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestLoad_CustomPack(t *testing.T) {
	fsys := fstest.MapFS{
		"pack.yaml": {Data: []byte("id: mini\nname: Mini\nversion: \"0.1\"\nexercises: [one]\n")},
		"exercises/one.yaml": {Data: []byte(`id: 1
title: Count
difficulty: beginner
points: 5
tests:
  - name: Returns results
    weight: 1
    check:
      min_rows: 1
`)},
	}

	c, err := Load(fsys)
	require.NoError(t, err)
	assert.Equal(t, "Mini", c.Name())
	assert.Equal(t, domain.DefaultInitialCode, c.Get(1).PristineCode())
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		fsys fstest.MapFS
	}{
		{"missing pack", fstest.MapFS{}},
		{"bad yaml", fstest.MapFS{"pack.yaml": {Data: []byte("id: [")}}},
		{"missing exercise", fstest.MapFS{"pack.yaml": {Data: []byte("id: x\nexercises: [nope]\n")}}},
		{"two predicates", fstest.MapFS{
			"pack.yaml": {Data: []byte("id: x\nexercises: [a]\n")},
			"exercises/a.yaml": {Data: []byte(`id: 1
title: A
points: 5
tests:
  - name: t
    weight: 1
    check:
      min_rows: 1
      row_count: 2
`)},
		}},
		{"unknown bonus", fstest.MapFS{
			"pack.yaml": {Data: []byte("id: x\nexercises: [a]\n")},
			"exercises/a.yaml": {Data: []byte(`id: 1
title: A
points: 5
tests:
  - name: t
    weight: 1
    check:
      min_rows: 1
bonuses:
  - description: fly
    points: 1
    kind: flying
`)},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.fsys)
			assert.Error(t, err)
		})
	}
}
