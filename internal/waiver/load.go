package waiver

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ajranjith/fixzit-agent/internal/support"
)

// ValidationError lists every problem found in a waiver file.
type ValidationError struct {
	File     string
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid waiver file %s: %s", e.File, strings.Join(e.Problems, "; "))
}

// Load reads and validates a waiver file. A missing file yields an empty set
// unless explicit is true, in which case it is an error.
func Load(path string, explicit bool) (Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			return Set{}, nil
		}
		return Set{}, &ValidationError{File: path, Problems: []string{err.Error()}}
	}
	set, err := Parse(path, data)
	if err != nil {
		return Set{}, err
	}
	return set, nil
}

// Parse decodes and validates waiver content. The format is chosen by the
// file extension of name; unknown keys are rejected.
func Parse(name string, data []byte) (Set, error) {
	data = support.StripBOM(data)
	if len(bytes.TrimSpace(data)) == 0 {
		return Set{}, &ValidationError{File: name, Problems: []string{"file is empty"}}
	}
	var set Set
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yml", ".yaml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&set); err != nil {
			return Set{}, &ValidationError{File: name, Problems: []string{err.Error()}}
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&set); err != nil {
			return Set{}, &ValidationError{File: name, Problems: []string{err.Error()}}
		}
		if _, err := dec.Token(); err != io.EOF {
			return Set{}, &ValidationError{File: name, Problems: []string{"trailing data after JSON document"}}
		}
	}
	if problems := set.validate(); len(problems) > 0 {
		return Set{}, &ValidationError{File: name, Problems: problems}
	}
	return set, nil
}

func (s Set) validate() []string {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}
	reason := func(cat string, i int, r string) {
		if strings.TrimSpace(r) == "" {
			add("%s[%d]: reason is required", cat, i)
		}
	}
	for i, w := range s.Routes {
		if w.Path == "" && w.Pattern == "" {
			add("routes[%d]: path or pattern is required", i)
		}
		reason(CategoryRoutes, i, w.Reason)
	}
	for i, w := range s.Console {
		if w.Pattern != "console" && !strings.HasPrefix(w.Pattern, "console.") {
			add("console[%d]: pattern must be console, console.* or console.<method>", i)
		}
		for _, t := range w.AllowedTypes {
			if strings.TrimSpace(t) == "" {
				add("console[%d]: allowedTypes must not contain empty entries", i)
				break
			}
		}
		reason(CategoryConsole, i, w.Reason)
	}
	for i, w := range s.Duplicates {
		if w.Path == "" {
			add("duplicates[%d]: path is required", i)
		}
		reason(CategoryDuplicates, i, w.Reason)
	}
	for i, w := range s.Imports {
		if w.Pattern == "" {
			add("imports[%d]: pattern is required", i)
		}
		reason(CategoryImports, i, w.Reason)
	}
	for i, w := range s.I18n {
		switch {
		case w.Path == "" && w.Key == "":
			add("i18n[%d]: path or key is required", i)
		case w.Path != "" && w.Key != "":
			add("i18n[%d]: path and key cannot be combined; use two entries", i)
		}
		reason(CategoryI18n, i, w.Reason)
	}
	for i, w := range s.Structure {
		if w.Path == "" {
			add("structure[%d]: path is required", i)
		}
		reason(CategoryStructure, i, w.Reason)
	}
	for i, w := range s.Waivers {
		if w.Scope == "" {
			add("waivers[%d]: scope is required", i)
		}
		if len(w.AppliesTo) == 0 {
			add("waivers[%d]: appliesTo must name at least one scanner", i)
		}
		for _, c := range w.AppliesTo {
			if !knownCategory(c) {
				add("waivers[%d]: unknown scanner %q in appliesTo", i, c)
			}
		}
		reason("waivers", i, w.Reason)
	}
	return problems
}

func knownCategory(c string) bool {
	for _, k := range Categories {
		if k == c {
			return true
		}
	}
	return false
}
