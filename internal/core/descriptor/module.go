package descriptor

import (
	"errors"
	"path"
	"strings"
)

// ContextDir is where a Go module root is staged when it differs from the
// project directory.
const ContextDir = ".agentkit/context"

// ErrNoModuleRoot is returned when no go.mod exists between the entry point
// and the project directory.
var ErrNoModuleRoot = errors.New("no go.mod found between entry point and project directory")

// ModulePlan describes how a Go project is laid out for a build.
type ModulePlan struct {
	// ModuleRoot is the directory holding go.mod, relative to the project
	// directory ("." when they are the same).
	ModuleRoot string
	// EntryPoint is the entry point rewritten relative to ModuleRoot.
	EntryPoint string
}

// Relocate reports whether the module root has to be staged into ContextDir.
func (p ModulePlan) Relocate() bool {
	return p.ModuleRoot != "."
}

// PlanGoModule finds the nearest directory at or above the entry point that
// holds a go.mod, bounded by the project directory. hasGoMod is called with
// slash-separated directories relative to the project directory.
func PlanGoModule(entryPoint string, hasGoMod func(dir string) bool) (ModulePlan, error) {
	entry := path.Clean(strings.TrimPrefix(entryPoint, "./"))
	if strings.HasPrefix(entry, "..") || path.IsAbs(entry) {
		return ModulePlan{}, errors.New("entry point must be inside the project directory")
	}
	dir := entry
	if strings.HasSuffix(entry, ".go") {
		dir = path.Dir(entry)
	}

	for {
		if hasGoMod(dir) {
			rel := entry
			if dir != "." {
				rel = strings.TrimPrefix(strings.TrimPrefix(entry, dir), "/")
				if rel == "" {
					rel = "."
				}
			}
			return ModulePlan{ModuleRoot: dir, EntryPoint: rel}, nil
		}
		if dir == "." {
			return ModulePlan{}, ErrNoModuleRoot
		}
		dir = path.Dir(dir)
	}
}
