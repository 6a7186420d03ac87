package descriptor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"text/template"

	"github.com/zeebo/blake3"
)

// FileName is the descriptor file name inside the build context.
const FileName = "Dockerfile"

// HashHeaderPrefix starts the first line of a generated descriptor.
const HashHeaderPrefix = "# agentkit-descriptor-hash: "

// Params are the render inputs. Every field takes part in the hash.
type Params struct {
	Language         string            `json:"language"`
	LanguageVersion  string            `json:"language_version"`
	EntryPoint       string            `json:"entry_point"`
	DependenciesFile string            `json:"dependencies_file"`
	BaseImage        string            `json:"base_image,omitempty"`
	Port             int               `json:"port"`
	Envs             map[string]string `json:"envs,omitempty"`
}

// Descriptor is a rendered build descriptor.
type Descriptor struct {
	Hash    string
	Content string
}

// Hash returns the blake3 hash of the canonical JSON form of p.
// encoding/json sorts map keys, so equal params always hash equally.
func Hash(p Params) (string, error) {
	canonical, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("canonicalize descriptor params: %w", err)
	}
	hasher := blake3.New()
	if _, err := hasher.Write(canonical); err != nil {
		return "", fmt.Errorf("hash descriptor params: %w", err)
	}
	return fmt.Sprintf("%x", hasher.Sum(nil)), nil
}

// Render produces the descriptor for p.
func Render(p Params) (Descriptor, error) {
	var tmpl *template.Template
	switch p.Language {
	case "python", "":
		tmpl = pythonTemplate
	case "golang":
		tmpl = goTemplate
	default:
		return Descriptor{}, fmt.Errorf("no build descriptor for language %q", p.Language)
	}
	if p.EntryPoint == "" {
		return Descriptor{}, fmt.Errorf("entry point is required")
	}
	if p.Port <= 0 {
		return Descriptor{}, fmt.Errorf("invalid port %d", p.Port)
	}

	hash, err := Hash(p)
	if err != nil {
		return Descriptor{}, err
	}

	var buf bytes.Buffer
	buf.WriteString(HashHeaderPrefix + hash + "\n")
	if err := tmpl.Execute(&buf, newView(p)); err != nil {
		return Descriptor{}, fmt.Errorf("render descriptor: %w", err)
	}
	return Descriptor{Hash: hash, Content: buf.String()}, nil
}

// ExistingHash extracts the hash header from descriptor content.
// ok is false for a hand-written descriptor.
func ExistingHash(content []byte) (hash string, ok bool) {
	line, _, _ := strings.Cut(string(content), "\n")
	line = strings.TrimRight(line, "\r")
	if !strings.HasPrefix(line, HashHeaderPrefix) {
		return "", false
	}
	hash = strings.TrimSpace(strings.TrimPrefix(line, HashHeaderPrefix))
	return hash, hash != ""
}

// =============================================================================
// Reuse Decision
// =============================================================================

// Action is what the builder should do with the descriptor on disk.
type Action string

const (
	ActionWrite       Action = "write"        // no descriptor or stale generated one
	ActionReuse       Action = "reuse"        // generated descriptor with matching hash
	ActionUserManaged Action = "user_managed" // hand-written, leave alone
)

// Decide chooses the descriptor action. existing is nil when no descriptor
// exists.
func Decide(existing []byte, want Descriptor, force bool) Action {
	if force || existing == nil {
		return ActionWrite
	}
	hash, ok := ExistingHash(existing)
	if !ok {
		return ActionUserManaged
	}
	if hash == want.Hash {
		return ActionReuse
	}
	return ActionWrite
}

// =============================================================================
// Templates
// =============================================================================

type view struct {
	Params
	BaseImage    string
	EntryPackage string
	InstallCmd   string
	EnvLines     []string
}

func newView(p Params) view {
	v := view{Params: p}
	v.BaseImage = p.BaseImage
	switch p.Language {
	case "golang":
		if v.BaseImage == "" {
			v.BaseImage = "golang:" + p.LanguageVersion
		}
		v.EntryPackage = GoEntryPackage(p.EntryPoint)
	default:
		if v.BaseImage == "" {
			v.BaseImage = "python:" + p.LanguageVersion + "-slim"
		}
		v.InstallCmd = pythonInstall(p.DependenciesFile)
	}
	for _, k := range sortedKeys(p.Envs) {
		v.EnvLines = append(v.EnvLines, fmt.Sprintf("%s=%q", k, p.Envs[k]))
	}
	return v
}

func pythonInstall(depsFile string) string {
	switch {
	case depsFile == "":
		return ""
	case path.Base(depsFile) == "pyproject.toml":
		return "pip install --no-cache-dir ."
	default:
		return "pip install --no-cache-dir -r " + depsFile
	}
}

// GoEntryPackage converts a Go entry point (file or directory) into the
// package path passed to go build.
//
// Example:
//
//	GoEntryPackage("cmd/agent/main.go") // returns "./cmd/agent"
//	GoEntryPackage("main.go")           // returns "."
func GoEntryPackage(entry string) string {
	entry = path.Clean(strings.TrimPrefix(entry, "./"))
	if strings.HasSuffix(entry, ".go") {
		entry = path.Dir(entry)
	}
	if entry == "." || entry == "" {
		return "."
	}
	return "./" + entry
}

var pythonTemplate = template.Must(template.New("python").Parse(`FROM {{.BaseImage}}

WORKDIR /app
ENV PYTHONUNBUFFERED=1
{{- range .EnvLines}}
ENV {{.}}
{{- end}}
{{if .InstallCmd}}
COPY {{.DependenciesFile}} ./
RUN {{.InstallCmd}}
{{end}}
COPY . .

EXPOSE {{.Port}}
CMD ["python", "{{.EntryPoint}}"]
`))

var goTemplate = template.Must(template.New("golang").Parse(`FROM {{.BaseImage}} AS build

WORKDIR /src
COPY go.mod go.sum* ./
RUN go mod download
COPY . .
RUN CGO_ENABLED=0 go build -trimpath -o /out/agent {{.EntryPackage}}

FROM gcr.io/distroless/static-debian12
{{- range .EnvLines}}
ENV {{.}}
{{- end}}
COPY --from=build /out/agent /agent
EXPOSE {{.Port}}
ENTRYPOINT ["/agent"]
`))
