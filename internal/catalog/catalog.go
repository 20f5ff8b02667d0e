package catalog

import (
	"fmt"
	"io/fs"
	"sort"

	"github.com/felixgeelhaar/sqlvalley/internal/domain"
)

// Catalog is the immutable, validated set of exercises
type Catalog struct {
	name         string
	version      string
	exercises    []*domain.Exercise
	byID         map[int]*domain.Exercise
	achievements map[string]domain.Achievement
}

// New validates the exercises and builds a catalog
func New(exercises []*domain.Exercise, badges []domain.Achievement) (*Catalog, error) {
	if err := Validate(exercises); err != nil {
		return nil, err
	}

	c := &Catalog{
		exercises:    make([]*domain.Exercise, len(exercises)),
		byID:         make(map[int]*domain.Exercise, len(exercises)),
		achievements: make(map[string]domain.Achievement, len(badges)),
	}
	copy(c.exercises, exercises)
	sort.Slice(c.exercises, func(i, j int) bool {
		return c.exercises[i].ID < c.exercises[j].ID
	})
	for _, ex := range c.exercises {
		c.byID[ex.ID] = ex
	}
	for _, b := range badges {
		c.achievements[b.ID] = b
	}
	return c, nil
}

// Load reads and validates a pack from fsys
func Load(fsys fs.FS) (*Catalog, error) {
	pack, err := NewLoader(fsys).LoadPack()
	if err != nil {
		return nil, err
	}
	c, err := New(pack.Exercises, pack.Achievements)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", pack.ID, err)
	}
	c.name = pack.Name
	c.version = pack.Version
	return c, nil
}

// Default loads the built-in pack
func Default() (*Catalog, error) {
	return Load(Content())
}

// Name returns the pack name
func (c *Catalog) Name() string { return c.name }

// Version returns the pack version
func (c *Catalog) Version() string { return c.version }

// Len returns the number of exercises
func (c *Catalog) Len() int { return len(c.exercises) }

// IDs returns every exercise id in ascending order
func (c *Catalog) IDs() []int {
	ids := make([]int, len(c.exercises))
	for i, ex := range c.exercises {
		ids[i] = ex.ID
	}
	return ids
}

// Exercises returns every exercise in ascending id order
func (c *Catalog) Exercises() []*domain.Exercise {
	out := make([]*domain.Exercise, len(c.exercises))
	copy(out, c.exercises)
	return out
}

// Lookup returns the exercise with the given id
func (c *Catalog) Lookup(id int) (*domain.Exercise, bool) {
	ex, ok := c.byID[id]
	return ex, ok
}

// Get returns the exercise or the safe placeholder for unknown ids
func (c *Catalog) Get(id int) *domain.Exercise {
	if ex, ok := c.byID[id]; ok {
		return ex
	}
	return domain.UnknownExercise(id)
}

// Root returns the lowest-id exercise without prerequisites
func (c *Catalog) Root() *domain.Exercise {
	for _, ex := range c.exercises {
		if !ex.HasPrerequisites() {
			return ex
		}
	}
	return nil
}

// Achievements returns the badges declared by exercises
func (c *Catalog) Achievements() []domain.Achievement {
	out := make([]domain.Achievement, 0, len(c.achievements))
	for _, a := range c.achievements {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// TotalPoints returns the sum of base points across the catalog
func (c *Catalog) TotalPoints() int {
	total := 0
	for _, ex := range c.exercises {
		total += ex.Points
	}
	return total
}
