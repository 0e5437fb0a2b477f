// Package recipe loads the declarative description of a bootstrap run.
//
// A recipe is a YAML document naming the template source, the environment
// requirements and the steps of each pipeline phase. Documents are checked
// against an embedded JSON schema before decoding, then semantically
// (regular expressions compile, version constraints parse, durations parse).
// Default returns the built-in Rails bootstrap recipe.
package recipe

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"

	"github.com/simonhull/firebird-suite/hatch/internal/manifest"
	"github.com/simonhull/firebird-suite/hatch/internal/mutate"
)

//go:embed default.yml
var defaultRecipe []byte

// DefaultCommitMessage is used when a recipe does not set commit_message.
const DefaultCommitMessage = "Initial commit"

// DefaultManifest is used when a recipe does not set manifest.
const DefaultManifest = "Gemfile"

// InvalidError reports a recipe that failed validation.
type InvalidError struct {
	Path   string
	Issues []ValidationIssue
}

func (e *InvalidError) Error() string {
	var b strings.Builder
	name := e.Path
	if name == "" {
		name = "recipe"
	}
	fmt.Fprintf(&b, "%s is invalid:", name)
	for _, issue := range e.Issues {
		b.WriteString("\n  ")
		if issue.Path != "" {
			b.WriteString(issue.Path)
			b.WriteString(": ")
		}
		b.WriteString(issue.Message)
	}
	return b.String()
}

// Default returns the embedded Rails bootstrap recipe.
func Default() *Recipe {
	r, err := Parse(defaultRecipe)
	if err != nil {
		panic(fmt.Sprintf("embedded recipe: %v", err))
	}
	return r
}

// DefaultYAML returns the embedded recipe document.
func DefaultYAML() []byte {
	return bytes.Clone(defaultRecipe)
}

// Load reads and validates the recipe at path. Relative template paths
// resolve against the recipe's directory.
func Load(path string) (*Recipe, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}

	r, err := Parse(data)
	if err != nil {
		var invalid *InvalidError
		if errors.As(err, &invalid) {
			invalid.Path = path
			return nil, invalid
		}
		return nil, fmt.Errorf("loading recipe %s: %w", path, err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	r.Dir = filepath.Dir(abs)
	return r, nil
}

// Parse validates and decodes a recipe document.
func Parse(data []byte) (*Recipe, error) {
	result, err := Validate(data)
	if err != nil {
		return nil, err
	}
	if !result.Valid {
		return nil, &InvalidError{Issues: result.Issues}
	}

	var r Recipe
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&r); err != nil {
		return nil, fmt.Errorf("decoding recipe: %w", err)
	}

	if issues := r.check(); len(issues) > 0 {
		return nil, &InvalidError{Issues: issues}
	}
	r.applyDefaults()
	return &r, nil
}

func (r *Recipe) applyDefaults() {
	if r.Manifest == "" {
		r.Manifest = DefaultManifest
	}
	if r.CommitMessage == "" {
		r.CommitMessage = DefaultCommitMessage
	}
}

// check validates what the schema cannot express.
func (r *Recipe) check() []ValidationIssue {
	var issues []ValidationIssue
	add := func(path, format string, args ...any) {
		issues = append(issues, ValidationIssue{Path: path, Message: fmt.Sprintf(format, args...), Keyword: "semantic"})
	}

	if req := r.Requires; req != nil {
		if req.Constraint != "" {
			if _, err := semver.NewConstraint(req.Constraint); err != nil {
				add("/requires/constraint", "invalid version constraint %q: %v", req.Constraint, err)
			}
		}
		if req.ManifestMarker != "" {
			if _, err := regexp.Compile(req.ManifestMarker); err != nil {
				add("/requires/manifest_marker", "invalid pattern: %v", err)
			}
		}
	}

	for _, phase := range r.Phases.Named() {
		for i, s := range phase.Steps {
			at := fmt.Sprintf("/phases/%s/%d", phase.Name, i)

			if s.Timeout != "" {
				if d, err := time.ParseDuration(s.Timeout); err != nil || d <= 0 {
					add(at+"/timeout", "invalid timeout %q", s.Timeout)
				}
			}
			if s.Kind() == KindGenerate && len(r.Generator) == 0 {
				add(at+"/generate", "generate steps need a recipe-level generator")
			}
			if s.Remove != "" {
				if _, err := regexp.Compile(s.Remove); err != nil {
					add(at+"/remove", "invalid pattern: %v", err)
				}
			}
			if s.Gem != nil {
				d := manifest.Directive{Name: s.Gem.Name, Versions: s.Gem.Version, Group: manifest.Group(s.Gem.Group), Options: s.Gem.Options}
				if err := d.Validate(); err != nil {
					add(at+"/gem", "%v", err)
				}
			}
			if s.Mutate != nil {
				if _, err := s.Mutate.Operation(); err != nil {
					add(at+"/mutate", "%v", err)
				}
			}
			for _, c := range []*Copy{s.Directory, s.Copy} {
				if c != nil && (filepath.IsAbs(c.Target()) || escapes(c.Target())) {
					add(at, "target %q must stay inside the project", c.Target())
				}
			}
		}
	}
	return issues
}

// Operation converts m to a mutate operation and checks it compiles.
func (m Mutation) Operation() (mutate.Operation, error) {
	kind, err := mutate.ParseKind(m.Kind)
	if err != nil {
		return mutate.Operation{}, err
	}
	policy, err := mutate.ParsePolicy(m.OnMissing)
	if err != nil {
		return mutate.Operation{}, err
	}
	op := mutate.Operation{
		Kind:      kind,
		File:      m.File,
		Anchor:    m.Anchor,
		Literal:   m.Literal,
		Payload:   m.Payload,
		OnMissing: policy,
	}
	if err := op.Validate(); err != nil {
		return mutate.Operation{}, err
	}
	return op, nil
}

// Directive converts g to a manifest directive.
func (g Gem) Directive() manifest.Directive {
	return manifest.Directive{
		Name:     g.Name,
		Versions: g.Version,
		Group:    manifest.NormalizeGroup(g.Group),
		Options:  g.Options,
	}
}

// TimeoutOr returns the step's timeout, or def when none is set.
func (s Step) TimeoutOr(def time.Duration) time.Duration {
	if d, err := time.ParseDuration(s.Timeout); err == nil && d > 0 {
		return d
	}
	return def
}

func escapes(rel string) bool {
	clean := filepath.Clean(rel)
	return clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator))
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading recipe: %w", err)
	}
	return data, nil
}
