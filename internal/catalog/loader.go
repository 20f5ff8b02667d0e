package catalog

import (
	"fmt"
	"io/fs"
	"path"

	"github.com/felixgeelhaar/sqlvalley/internal/domain"
	"gopkg.in/yaml.v3"
)

// PackFile represents the YAML structure for an exercise pack
type PackFile struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Version     string   `yaml:"version"`
	Description string   `yaml:"description"`
	Exercises   []string `yaml:"exercises"`
}

// ExerciseFile represents the YAML structure for an exercise
type ExerciseFile struct {
	ID                 int                  `yaml:"id"`
	Title              string               `yaml:"title"`
	Category           string               `yaml:"category"`
	Difficulty         string               `yaml:"difficulty"`
	Points             int                  `yaml:"points"`
	Prerequisites      []int                `yaml:"prerequisites"`
	Description        string               `yaml:"description"`
	LearningObjectives []string             `yaml:"learning_objectives"`
	Theory             string               `yaml:"theory"`
	InitialCode        string               `yaml:"initial_code"`
	Solution           string               `yaml:"solution"`
	MinAwardPercent    int                  `yaml:"min_award_percent"`
	Hints              []HintFile           `yaml:"hints"`
	Tests              []TestFile           `yaml:"tests"`
	Bonuses            []BonusFile          `yaml:"bonuses"`
	Achievements       []domain.Achievement `yaml:"achievements"`
}

// HintFile is a hint as declared in YAML
type HintFile struct {
	Level   int    `yaml:"level"`
	Text    string `yaml:"text"`
	Penalty int    `yaml:"penalty"`
}

// TestFile is a test case as declared in YAML
type TestFile struct {
	Name     string    `yaml:"name"`
	Weight   float64   `yaml:"weight"`
	Check    CheckSpec `yaml:"check"`
	Feedback string    `yaml:"feedback"`
}

// BonusFile is a bonus objective as declared in YAML
type BonusFile struct {
	Description string  `yaml:"description"`
	Points      int     `yaml:"points"`
	Kind        string  `yaml:"kind"`
	Value       float64 `yaml:"value"`
}

// Pack is a loaded exercise pack
type Pack struct {
	ID           string
	Name         string
	Version      string
	Description  string
	Exercises    []*domain.Exercise
	Achievements []domain.Achievement
}

// Loader handles loading exercises from YAML files
type Loader struct {
	fsys fs.FS
}

// NewLoader creates a new exercise loader reading from fsys
func NewLoader(fsys fs.FS) *Loader {
	return &Loader{fsys: fsys}
}

// LoadPack loads pack.yaml and every exercise it lists
func (l *Loader) LoadPack() (*Pack, error) {
	data, err := fs.ReadFile(l.fsys, "pack.yaml")
	if err != nil {
		return nil, fmt.Errorf("read pack file: %w", err)
	}

	var packFile PackFile
	if err := yaml.Unmarshal(data, &packFile); err != nil {
		return nil, fmt.Errorf("parse pack file: %w", err)
	}

	pack := &Pack{
		ID:          packFile.ID,
		Name:        packFile.Name,
		Version:     packFile.Version,
		Description: packFile.Description,
		Exercises:   make([]*domain.Exercise, 0, len(packFile.Exercises)),
	}

	for _, slug := range packFile.Exercises {
		exercise, badges, err := l.LoadExercise(slug)
		if err != nil {
			return nil, fmt.Errorf("load exercise %s: %w", slug, err)
		}
		pack.Exercises = append(pack.Exercises, exercise)
		pack.Achievements = append(pack.Achievements, badges...)
	}

	return pack, nil
}

// LoadExercise loads a single exercise from exercises/<slug>.yaml
func (l *Loader) LoadExercise(slug string) (*domain.Exercise, []domain.Achievement, error) {
	data, err := fs.ReadFile(l.fsys, path.Join("exercises", slug+".yaml"))
	if err != nil {
		return nil, nil, fmt.Errorf("read exercise file: %w", err)
	}

	var exFile ExerciseFile
	if err := yaml.Unmarshal(data, &exFile); err != nil {
		return nil, nil, fmt.Errorf("parse exercise file: %w", err)
	}

	return buildExercise(&exFile)
}

func buildExercise(f *ExerciseFile) (*domain.Exercise, []domain.Achievement, error) {
	exercise := &domain.Exercise{
		ID:                 f.ID,
		Title:              f.Title,
		Category:           f.Category,
		Difficulty:         domain.Difficulty(f.Difficulty),
		Description:        f.Description,
		Theory:             f.Theory,
		LearningObjectives: f.LearningObjectives,
		InitialCode:        f.InitialCode,
		Solution:           f.Solution,
		Points:             f.Points,
		Prerequisites:      f.Prerequisites,
		MinAwardPercent:    f.MinAwardPercent,
	}

	for _, h := range f.Hints {
		exercise.Hints = append(exercise.Hints, domain.Hint{Level: h.Level, Text: h.Text, Penalty: h.Penalty})
	}

	for _, tf := range f.Tests {
		pred, err := tf.Check.Compile()
		if err != nil {
			return nil, nil, fmt.Errorf("test %q: %w", tf.Name, err)
		}
		exercise.TestCases = append(exercise.TestCases, domain.TestCase{
			Name:           tf.Name,
			Weight:         tf.Weight,
			Predicate:      pred,
			FeedbackOnFail: tf.Feedback,
		})
	}

	for _, bf := range f.Bonuses {
		check, err := compileBonus(bf)
		if err != nil {
			return nil, nil, fmt.Errorf("bonus %q: %w", bf.Description, err)
		}
		exercise.Bonuses = append(exercise.Bonuses, domain.BonusObjective{
			Description: bf.Description,
			Points:      bf.Points,
			Check:       check,
		})
	}

	for _, a := range f.Achievements {
		exercise.AchievementTriggers = append(exercise.AchievementTriggers, a.ID)
	}

	return exercise, f.Achievements, nil
}
