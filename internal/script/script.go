// Package script runs batches of store operations described in YAML.
//
// A script is a list of steps executed in order against one store:
//
//	name: seed users
//	steps:
//	  - op: create
//	    path: /
//	    key: users
//	    value: {}
//	  - op: create
//	    path: /users
//	    value: {name: ada}
//	    message: {source: script}
//	  - op: update
//	    path: /users/*/name
//	    value: grace
//	    force: true
//	  - op: read
//	    path: //
//
// Mapping values keep the key order written in the script.
package script

import (
	"bytes"
	"io"
	"strconv"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/dshills/arbor/internal/middleware"
	"github.com/dshills/arbor/internal/value"
)

// ErrInvalidStep is returned for a step that cannot run.
var ErrInvalidStep = errors.New("invalid step")

// Script is a named list of steps.
type Script struct {
	Name  string `yaml:"name"`
	Steps []Step `yaml:"steps"`
}

// Step is a single store operation.
type Step struct {
	Op      string         `yaml:"op"`
	Path    string         `yaml:"path"`
	Value   yaml.Node      `yaml:"value"`
	Key     *string        `yaml:"key"`
	Index   *int           `yaml:"index"`
	Force   bool           `yaml:"force"`
	Message map[string]any `yaml:"message"`

	// ExpectError makes a failing step count as success. The value is
	// matched against the error text.
	ExpectError string `yaml:"expectError"`

	line int
}

// Kind returns the operation kind.
func (s *Step) Kind() middleware.Kind {
	return middleware.Kind(s.Op)
}

// Line returns the line the step starts on, or 0 when unknown.
func (s *Step) Line() int {
	return s.line
}

// HasValue reports whether the step carries a value.
func (s *Step) HasValue() bool {
	return s.Value.Kind != 0
}

// Document converts the step value. A missing value is null.
func (s *Step) Document() (value.Value, error) {
	if !s.HasValue() {
		return value.Null(), nil
	}
	return value.DecodeYAMLNode(&s.Value)
}

// CreateKey returns the key option for a create step.
func (s *Step) CreateKey() (string, bool) {
	switch {
	case s.Key != nil:
		return *s.Key, true
	case s.Index != nil:
		return strconv.Itoa(*s.Index), true
	}
	return "", false
}

// Validate checks the step shape. Key legality and path resolution are
// left to the store.
func (s *Step) Validate() error {
	kind := s.Kind()
	if !kind.Valid() {
		return s.invalid("unknown op %q", s.Op)
	}
	if s.Path == "" {
		return s.invalid("%s needs a path", kind)
	}
	if s.Key != nil && s.Index != nil {
		return s.invalid("key and index are mutually exclusive")
	}
	if (s.Key != nil || s.Index != nil) && kind != middleware.Create {
		return s.invalid("key and index only apply to create")
	}
	if s.Force && kind != middleware.Update {
		return s.invalid("force only applies to update")
	}
	if s.HasValue() && (kind == middleware.Read || kind == middleware.Delete) {
		return s.invalid("%s takes no value", kind)
	}
	return nil
}

func (s *Step) invalid(format string, args ...any) error {
	err := errors.Wrapf(ErrInvalidStep, format, args...)
	if s.line > 0 {
		err = errors.WithMessagef(err, "line %d", s.line)
	}
	return err
}

// Parse reads a YAML script. Unknown fields are rejected.
func Parse(r io.Reader) (*Script, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "read script")
	}

	var sc Script
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&sc); err != nil {
		if err == io.EOF {
			return &Script{}, nil
		}
		return nil, errors.Wrap(err, "parse script")
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err == nil {
		attachLines(&root, &sc)
	}

	for i := range sc.Steps {
		if err := sc.Steps[i].Validate(); err != nil {
			return nil, errors.WithMessagef(err, "step %d", i+1)
		}
	}
	return &sc, nil
}

// attachLines records the source line of every step.
func attachLines(root *yaml.Node, sc *Script) {
	doc := root
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		doc = doc.Content[0]
	}
	if doc.Kind != yaml.MappingNode {
		return
	}
	for i := 0; i+1 < len(doc.Content); i += 2 {
		if doc.Content[i].Value != "steps" {
			continue
		}
		seq := doc.Content[i+1]
		for j, n := range seq.Content {
			if j < len(sc.Steps) {
				sc.Steps[j].line = n.Line
			}
		}
	}
}
