package recipe

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simonhull/firebird-suite/hatch/internal/manifest"
	"github.com/simonhull/firebird-suite/hatch/internal/mutate"
)

func TestDefault(t *testing.T) {
	r := Default()

	assert.Equal(t, "rails-bootstrap", r.Name)
	assert.Equal(t, "Gemfile", r.Manifest)
	assert.Equal(t, Args{"rails", "generate"}, r.Generator)
	assert.Equal(t, "Initial commit :star:", r.CommitMessage)
	require.NotNil(t, r.Requires)
	assert.Equal(t, "^6.0", r.Requires.Constraint)
	assert.Equal(t, `^\s*gem ['"]pg['"]`, r.Requires.ManifestMarker)

	assert.Equal(t, `gem 'tzinfo-data'.*\n`, r.Phases.EditManifest[0].Remove)
	assert.Equal(t, Args{"bundle", "install"}, r.Phases.Install[1].Run)
	assert.True(t, r.Phases.PostInstall[0].BestEffort, "spring stop is opportunistic")
	assert.Equal(t, Args{"devise", "User", "first_name:string", "last_name:string"}, r.Phases.RunGenerators[3].Generate)

	var vcs []string
	for _, s := range r.Phases.Finalize {
		vcs = append(vcs, s.VCS)
	}
	assert.Equal(t, []string{"init", "add", "commit"}, vcs)
}

func TestDefault_StepsHaveExactlyOneKind(t *testing.T) {
	for _, phase := range Default().Phases.Named() {
		for i, s := range phase.Steps {
			assert.NotEmpty(t, s.Kind(), "%s step %d", phase.Name, i)
		}
	}
}

func TestDefault_GemGroups(t *testing.T) {
	var faker, rubocop *Gem
	for _, s := range Default().Phases.EditManifest {
		if s.Gem == nil {
			continue
		}
		switch s.Gem.Name {
		case "faker":
			faker = s.Gem
		case "rubocop":
			rubocop = s.Gem
		}
	}
	require.NotNil(t, faker)
	require.NotNil(t, rubocop)

	assert.Equal(t, manifest.Group("development,test"), faker.Directive().Group)
	assert.Equal(t, "gem 'rubocop', require: false", rubocop.Directive().Render())
}

func TestDefault_WebpackPayloadKeepsBlankLine(t *testing.T) {
	var payload string
	for _, s := range Default().Phases.PostInstall {
		if s.Mutate != nil && s.Mutate.File == "config/webpack/environment.js" {
			payload = s.Mutate.Payload
		}
	}
	assert.Contains(t, payload, "const webpack = require('webpack')\n\nenvironment.plugins.append(")
	assert.Contains(t, payload, ")\n\n")
}

func TestParse_ScalarAndListArgs(t *testing.T) {
	r, err := Parse([]byte(`
name: demo
phases:
  install:
    - run: bundle install --jobs 4
    - run: [sh, -c, "echo hi there"]
      timeout: 90s
      best_effort: true
`))

	require.NoError(t, err)
	assert.Equal(t, Args{"bundle", "install", "--jobs", "4"}, r.Phases.Install[0].Run)
	assert.Equal(t, Args{"sh", "-c", "echo hi there"}, r.Phases.Install[1].Run)
	assert.Equal(t, 90*time.Second, r.Phases.Install[1].TimeoutOr(time.Minute))
	assert.Equal(t, time.Minute, r.Phases.Install[0].TimeoutOr(time.Minute))
	assert.Equal(t, DefaultManifest, r.Manifest)
	assert.Equal(t, DefaultCommitMessage, r.CommitMessage)
}

func TestParse_SchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		path string
	}{
		{"missing name", "phases: {}\n", ""},
		{"bad name", "name: Bad Name\nphases: {}\n", "/name"},
		{"unknown phase", "name: x\nphases:\n  cleanup: []\n", "/phases"},
		{"two actions", "name: x\nphases:\n  install:\n    - run: make\n      vcs: init\n", "/phases/install/0"},
		{"no action", "name: x\nphases:\n  install:\n    - best_effort: true\n", "/phases/install/0"},
		{"bad vcs", "name: x\nphases:\n  finalize:\n    - vcs: push\n", "/phases/finalize/0/vcs"},
		{"bad mutate kind", "name: x\nphases:\n  apply_mutations:\n    - mutate: {kind: prepend, file: a, payload: b}\n", "/phases/apply_mutations/0/mutate/kind"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))

			var invalid *InvalidError
			require.ErrorAs(t, err, &invalid)
			require.NotEmpty(t, invalid.Issues)
			if tt.path != "" {
				var paths []string
				for _, issue := range invalid.Issues {
					paths = append(paths, issue.Path)
				}
				assert.Contains(t, paths, tt.path)
			}
		})
	}
}

func TestParse_SemanticViolations(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"bad constraint", "name: x\nrequires: {version_command: [x, -v], constraint: 'not a range'}\nphases: {}\n"},
		{"bad marker", "name: x\nrequires: {manifest_marker: '('}\nphases: {}\n"},
		{"bad anchor", "name: x\nphases:\n  apply_mutations:\n    - mutate: {kind: insert-after, file: a, anchor: '(', payload: b}\n"},
		{"missing anchor", "name: x\nphases:\n  apply_mutations:\n    - mutate: {kind: insert-after, file: a, payload: b}\n"},
		{"generate without generator", "name: x\nphases:\n  run_generators:\n    - generate: devise:install\n"},
		{"bad remove", "name: x\nphases:\n  edit_manifest:\n    - remove: '('\n"},
		{"escaping copy", "name: x\nphases:\n  post_install:\n    - copy: {from: a, to: ../outside}\n"},
		{"zero timeout", "name: x\nphases:\n  install:\n    - run: make\n      timeout: 0s\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))

			var invalid *InvalidError
			require.ErrorAs(t, err, &invalid)
			assert.Equal(t, "semantic", invalid.Issues[0].Keyword)
		})
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("name: [unclosed\n"))
	assert.ErrorContains(t, err, "parsing YAML")
}

func TestParse_Empty(t *testing.T) {
	_, err := Parse(nil)
	var invalid *InvalidError
	assert.ErrorAs(t, err, &invalid)
}

func TestLoad_SetsDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hatch.recipe.yml")
	require.NoError(t, os.WriteFile(path, []byte("name: local\nphases: {}\n"), 0o644))

	r, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, dir, r.Dir)
	assert.Empty(t, r.Source)
}

func TestLoad_InvalidNamesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yml")
	require.NoError(t, os.WriteFile(path, []byte("phases: {}\n"), 0o644))

	_, err := Load(path)

	assert.ErrorContains(t, err, path)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestMutation_Operation(t *testing.T) {
	op, err := Mutation{Kind: "insert_after", File: "a.rb", Anchor: "x", Payload: "y", OnMissing: "skip"}.Operation()

	require.NoError(t, err)
	assert.Equal(t, mutate.InsertAfter, op.Kind)
	assert.Equal(t, mutate.PolicySkip, op.OnMissing)

	_, err = Mutation{Kind: "append", File: "a.rb", Payload: "y"}.Operation()
	assert.NoError(t, err, "append without anchor writes at end of file")
}

func TestCopy_Target(t *testing.T) {
	assert.Equal(t, "lib", Copy{From: "lib"}.Target())
	assert.Equal(t, "config/x", Copy{From: "x", To: "config/x"}.Target())
}

func TestValidateFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "r.yml")
	require.NoError(t, os.WriteFile(path, DefaultYAML(), 0o644))

	result, err := ValidateFile(path)

	require.NoError(t, err)
	assert.True(t, result.Valid, "%v", result.Issues)
}
