package scanner

import (
	"fmt"
	"os"
	"path/filepath"
)

// Routine is a concrete extraction entry point resolved for one region.
type Routine struct {
	Strategy string
	Command  string
	Args     []string
}

// Strategy locates the extraction routine for a region, if it has one.
type Strategy interface {
	Name() string
	Locate(region string) (Routine, bool)
}

// Registry keeps strategies in precedence order and resolves regions through
// them as a fallback chain.
type Registry struct {
	strategies []Strategy
	byName     map[string]int
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: map[string]int{}}
}

// Register appends a strategy, or replaces one with the same name in place.
func (r *Registry) Register(strategy Strategy) {
	if r.byName == nil {
		r.byName = map[string]int{}
	}
	if idx, ok := r.byName[strategy.Name()]; ok {
		r.strategies[idx] = strategy
		return
	}
	r.byName[strategy.Name()] = len(r.strategies)
	r.strategies = append(r.strategies, strategy)
}

// Resolve returns the first routine any strategy offers for the region.
func (r *Registry) Resolve(region string) (Routine, error) {
	for _, strategy := range r.strategies {
		if routine, ok := strategy.Locate(region); ok {
			return routine, nil
		}
	}
	return Routine{}, fmt.Errorf("no extraction routine for region %s", region)
}

// FileExists is the default probe used by the script strategies.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// SpecializedScripts finds <dir>/<region>/<region>_scraper.py.
type SpecializedScripts struct {
	Dir         string
	Interpreter string
	Exists      func(string) bool
}

func (s SpecializedScripts) Name() string { return "specialized" }

func (s SpecializedScripts) Locate(region string) (Routine, bool) {
	path := filepath.Join(s.Dir, region, region+"_scraper.py")
	return scriptRoutine(s.Name(), s.Interpreter, path, s.Exists, nil)
}

// RegionalScripts finds <dir>/<region>_scraper.py.
type RegionalScripts struct {
	Dir         string
	Interpreter string
	Exists      func(string) bool
}

func (s RegionalScripts) Name() string { return "regional" }

func (s RegionalScripts) Locate(region string) (Routine, bool) {
	path := filepath.Join(s.Dir, region+"_scraper.py")
	return scriptRoutine(s.Name(), s.Interpreter, path, s.Exists, nil)
}

// UniversalScript runs one generic script parameterized by region.
type UniversalScript struct {
	Path        string
	Interpreter string
	Exists      func(string) bool
}

func (s UniversalScript) Name() string { return "universal" }

func (s UniversalScript) Locate(region string) (Routine, bool) {
	return scriptRoutine(s.Name(), s.Interpreter, s.Path, s.Exists, []string{"--region", region})
}

func scriptRoutine(name, interpreter, path string, exists func(string) bool, extra []string) (Routine, bool) {
	if path == "" {
		return Routine{}, false
	}
	if exists == nil {
		exists = FileExists
	}
	if !exists(path) {
		return Routine{}, false
	}

	routine := Routine{Strategy: name, Command: path}
	if interpreter != "" {
		routine.Command = interpreter
		routine.Args = append(routine.Args, path)
	}
	routine.Args = append(routine.Args, extra...)
	return routine, true
}
