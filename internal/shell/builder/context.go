// Package builder produces container images from an agent project, either on
// the local container engine or on the remote build pipeline.
//
// Both builders share the same context preparation: the build descriptor is
// rendered from the project settings and written next to the sources unless
// an identical generated descriptor (or a hand-written one) is already there,
// and Go projects whose module root is below the project directory are staged
// into descriptor.ContextDir first.
package builder

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/artpar/agentkit/internal/core/config"
	"github.com/artpar/agentkit/internal/core/descriptor"
	"github.com/artpar/agentkit/internal/core/domain"
	"github.com/artpar/agentkit/internal/shell/reporter"
)

// DefaultExclude lists paths never sent as build context.
var DefaultExclude = []string{
	".git",
	".agentkit",
	".venv",
	"venv",
	"**/__pycache__",
	"**/*.pyc",
	config.DefaultFileName,
}

// Project holds the resolved build inputs shared by every builder.
type Project struct {
	AgentName        string
	Description      string
	EntryPoint       string
	Language         string
	LanguageVersion  string
	DependenciesFile string
	BaseImage        string
	Port             int
}

// ProjectFromConfig collects the build inputs from the common section.
func ProjectFromConfig(c config.CommonConfig, baseImage string, port int) Project {
	return Project{
		AgentName:        c.AgentName,
		Description:      c.Description,
		EntryPoint:       c.EntryPoint,
		Language:         c.Language,
		LanguageVersion:  c.ResolvedLanguageVersion(),
		DependenciesFile: c.DependenciesFile,
		BaseImage:        baseImage,
		Port:             port,
	}
}

// buildContext is a prepared build context on disk.
type buildContext struct {
	Dir        string // absolute context directory
	Dockerfile string // descriptor path relative to Dir
	Action     descriptor.Action
}

// preparer stages build contexts inside a fixed working directory.
type preparer struct {
	fs      afero.Fs
	workDir string
	rep     reporter.Reporter
}

func (p *preparer) prepare(proj Project, force bool) (*buildContext, error) {
	if proj.EntryPoint == "" {
		return nil, domain.NewError(domain.ErrorCodeConfigInvalid, "Build", "entry_point is required", nil)
	}

	ctxDir := p.workDir
	entry := proj.EntryPoint
	if proj.Language == config.LanguageGo {
		plan, err := descriptor.PlanGoModule(entry, p.hasGoMod)
		if err != nil {
			return nil, domain.NewError(domain.ErrorCodeConfigInvalid, "Build", "locate go module", err)
		}
		entry = plan.EntryPoint
		if plan.Relocate() {
			ctxDir = filepath.Join(p.workDir, filepath.FromSlash(descriptor.ContextDir))
			if err := p.stage(filepath.Join(p.workDir, filepath.FromSlash(plan.ModuleRoot)), ctxDir); err != nil {
				return nil, domain.NewError(domain.ErrorCodeBuildFailed, "Build", "stage go module", err)
			}
			p.rep.Info(fmt.Sprintf("Staged Go module %s into %s", plan.ModuleRoot, descriptor.ContextDir))
		}
	}

	want, err := descriptor.Render(descriptor.Params{
		Language:         proj.Language,
		LanguageVersion:  proj.LanguageVersion,
		EntryPoint:       entry,
		DependenciesFile: proj.DependenciesFile,
		BaseImage:        proj.BaseImage,
		Port:             proj.Port,
	})
	if err != nil {
		return nil, domain.NewError(domain.ErrorCodeConfigInvalid, "Build", "render build descriptor", err)
	}

	descPath := filepath.Join(ctxDir, descriptor.FileName)
	existing, err := afero.ReadFile(p.fs, descPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, domain.NewError(domain.ErrorCodeBuildFailed, "Build", "read build descriptor", err)
		}
		existing = nil
	}

	action := descriptor.Decide(existing, want, force)
	switch action {
	case descriptor.ActionWrite:
		if err := afero.WriteFile(p.fs, descPath, []byte(want.Content), 0o644); err != nil {
			return nil, domain.NewError(domain.ErrorCodeBuildFailed, "Build", "write build descriptor", err)
		}
		p.rep.Info(fmt.Sprintf("Generated %s", descriptor.FileName))
	case descriptor.ActionReuse:
		p.rep.Info(fmt.Sprintf("Reusing generated %s", descriptor.FileName))
	case descriptor.ActionUserManaged:
		p.rep.Info(fmt.Sprintf("Using the existing %s as written", descriptor.FileName))
	}

	return &buildContext{Dir: ctxDir, Dockerfile: descriptor.FileName, Action: action}, nil
}

func (p *preparer) hasGoMod(dir string) bool {
	ok, _ := afero.Exists(p.fs, filepath.Join(p.workDir, filepath.FromSlash(dir), "go.mod"))
	return ok
}

// stage replaces dst with a copy of src. The previous staged descriptor is
// kept so an unchanged build can reuse it.
func (p *preparer) stage(src, dst string) error {
	keep, err := afero.ReadFile(p.fs, filepath.Join(dst, descriptor.FileName))
	if err != nil {
		keep = nil
	}
	if err := p.fs.RemoveAll(dst); err != nil {
		return err
	}
	if err := p.fs.MkdirAll(dst, 0o755); err != nil {
		return err
	}

	err = afero.Walk(p.fs, src, func(name string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, name)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if excluded(filepath.ToSlash(rel)) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return p.fs.MkdirAll(target, 0o755)
		}
		if rel == descriptor.FileName {
			// A descriptor inside the module root belongs to the user.
			keep = nil
		}
		data, err := afero.ReadFile(p.fs, name)
		if err != nil {
			return err
		}
		return afero.WriteFile(p.fs, target, data, info.Mode().Perm())
	})
	if err != nil {
		return err
	}

	if keep != nil {
		return afero.WriteFile(p.fs, filepath.Join(dst, descriptor.FileName), keep, 0o644)
	}
	return nil
}

// excluded reports whether a slash-separated relative path matches
// DefaultExclude.
func excluded(rel string) bool {
	base := path.Base(rel)
	for _, pattern := range DefaultExclude {
		pattern = strings.TrimPrefix(pattern, "**/")
		if ok, _ := path.Match(pattern, rel); ok {
			return true
		}
		if ok, _ := path.Match(pattern, base); ok {
			return true
		}
	}
	return false
}
