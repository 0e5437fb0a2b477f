package recipe

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Recipe describes how to bootstrap a project: where the template lives,
// which environment it needs, and the steps of every phase.
type Recipe struct {
	Name          string       `yaml:"name" json:"name"`
	Description   string       `yaml:"description,omitempty" json:"description,omitempty"`
	Source        string       `yaml:"source,omitempty" json:"source,omitempty"`
	Manifest      string       `yaml:"manifest,omitempty" json:"manifest,omitempty"`
	Generator     Args         `yaml:"generator,omitempty" json:"generator,omitempty"`
	Requires      *Requirement `yaml:"requires,omitempty" json:"requires,omitempty"`
	Phases        Phases       `yaml:"phases" json:"phases"`
	CommitMessage string       `yaml:"commit_message,omitempty" json:"commit_message,omitempty"`

	// Dir is the directory the recipe was loaded from. A recipe without a
	// source uses it as the template directory.
	Dir string `yaml:"-" json:"-"`
}

// Requirement is the environment a recipe expects.
type Requirement struct {
	Tool           string `yaml:"tool,omitempty" json:"tool,omitempty"`
	VersionCommand Args   `yaml:"version_command,omitempty" json:"version_command,omitempty"`
	Constraint     string `yaml:"constraint,omitempty" json:"constraint,omitempty"`
	ManifestMarker string `yaml:"manifest_marker,omitempty" json:"manifest_marker,omitempty"`
}

// Phases holds the steps of each configurable pipeline phase.
type Phases struct {
	EditManifest   []Step `yaml:"edit_manifest,omitempty" json:"edit_manifest,omitempty"`
	Install        []Step `yaml:"install,omitempty" json:"install,omitempty"`
	ApplyMutations []Step `yaml:"apply_mutations,omitempty" json:"apply_mutations,omitempty"`
	RunGenerators  []Step `yaml:"run_generators,omitempty" json:"run_generators,omitempty"`
	PostInstall    []Step `yaml:"post_install,omitempty" json:"post_install,omitempty"`
	Finalize       []Step `yaml:"finalize,omitempty" json:"finalize,omitempty"`
}

// Named returns the phases in execution order, keyed by their YAML name.
func (p Phases) Named() []NamedSteps {
	return []NamedSteps{
		{"edit_manifest", p.EditManifest},
		{"install", p.Install},
		{"apply_mutations", p.ApplyMutations},
		{"run_generators", p.RunGenerators},
		{"post_install", p.PostInstall},
		{"finalize", p.Finalize},
	}
}

// NamedSteps pairs a phase name with its steps.
type NamedSteps struct {
	Name  string
	Steps []Step
}

// Step kinds.
const (
	KindRun       = "run"
	KindGenerate  = "generate"
	KindMutate    = "mutate"
	KindGem       = "gem"
	KindRemove    = "remove"
	KindDirectory = "directory"
	KindCopy      = "copy"
	KindVCS       = "vcs"
)

// Step is a single action. Exactly one of the action fields is set.
type Step struct {
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	Run       Args      `yaml:"run,omitempty" json:"run,omitempty"`
	Generate  Args      `yaml:"generate,omitempty" json:"generate,omitempty"`
	Mutate    *Mutation `yaml:"mutate,omitempty" json:"mutate,omitempty"`
	Gem       *Gem      `yaml:"gem,omitempty" json:"gem,omitempty"`
	Remove    string    `yaml:"remove,omitempty" json:"remove,omitempty"`
	Directory *Copy     `yaml:"directory,omitempty" json:"directory,omitempty"`
	Copy      *Copy     `yaml:"copy,omitempty" json:"copy,omitempty"`
	VCS       string    `yaml:"vcs,omitempty" json:"vcs,omitempty"`

	// Command options, used by run and generate.
	BestEffort bool   `yaml:"best_effort,omitempty" json:"best_effort,omitempty"`
	Timeout    string `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	Dir        string `yaml:"dir,omitempty" json:"dir,omitempty"`
}

// Kinds lists the action fields set on s.
func (s Step) Kinds() []string {
	var kinds []string
	if len(s.Run) > 0 {
		kinds = append(kinds, KindRun)
	}
	if len(s.Generate) > 0 {
		kinds = append(kinds, KindGenerate)
	}
	if s.Mutate != nil {
		kinds = append(kinds, KindMutate)
	}
	if s.Gem != nil {
		kinds = append(kinds, KindGem)
	}
	if s.Remove != "" {
		kinds = append(kinds, KindRemove)
	}
	if s.Directory != nil {
		kinds = append(kinds, KindDirectory)
	}
	if s.Copy != nil {
		kinds = append(kinds, KindCopy)
	}
	if s.VCS != "" {
		kinds = append(kinds, KindVCS)
	}
	return kinds
}

// Kind returns the step's single action kind, or "" when zero or several
// actions are set.
func (s Step) Kind() string {
	if kinds := s.Kinds(); len(kinds) == 1 {
		return kinds[0]
	}
	return ""
}

// Mutation is an anchor-based edit of a file in the target project.
type Mutation struct {
	Kind      string `yaml:"kind" json:"kind"`
	File      string `yaml:"file" json:"file"`
	Anchor    string `yaml:"anchor,omitempty" json:"anchor,omitempty"`
	Literal   bool   `yaml:"literal,omitempty" json:"literal,omitempty"`
	Payload   string `yaml:"payload" json:"payload"`
	OnMissing string `yaml:"on_missing,omitempty" json:"on_missing,omitempty"`
}

// Gem is a manifest directive.
type Gem struct {
	Name    string   `yaml:"name" json:"name"`
	Version List     `yaml:"version,omitempty" json:"version,omitempty"`
	Group   string   `yaml:"group,omitempty" json:"group,omitempty"`
	Options []string `yaml:"options,omitempty" json:"options,omitempty"`
}

// Copy copies a path from the template source into the target project.
// To defaults to From.
type Copy struct {
	From  string `yaml:"from" json:"from"`
	To    string `yaml:"to,omitempty" json:"to,omitempty"`
	Force bool   `yaml:"force,omitempty" json:"force,omitempty"`
}

// Target returns the destination path relative to the project.
func (c Copy) Target() string {
	if c.To != "" {
		return c.To
	}
	return c.From
}

// Args is a command line. In YAML it is either a sequence of arguments or a
// single string split on whitespace ("bundle install").
type Args []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (a *Args) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*a = strings.Fields(value.Value)
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := value.Decode(&items); err != nil {
			return err
		}
		*a = items
		return nil
	default:
		return fmt.Errorf("line %d: expected a string or a list of strings", value.Line)
	}
}

// List is a list of strings that also accepts a single string.
type List []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *List) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*l = List{value.Value}
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := value.Decode(&items); err != nil {
			return err
		}
		*l = items
		return nil
	default:
		return fmt.Errorf("line %d: expected a string or a list of strings", value.Line)
	}
}
