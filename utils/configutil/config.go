// Copyright (c) 2016-2019 Uber Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package configutil loads YAML configuration files with an "extends" chain
// (a file may declare a base file whose values it overrides) and validates
// the merged result once, using struct "validate" tags.
package configutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/validator.v2"
	"gopkg.in/yaml.v2"
)

// ErrCycleRef is returned when an extends chain refers back to a file
// already in the chain.
var ErrCycleRef = errors.New("cyclic reference in configuration extends detected")

type extendsHeader struct {
	Extends string `yaml:"extends"`
}

// Load reads filename, follows any extends chain rooted at it, unmarshals
// the merged YAML into dest, and validates the result.
func Load(filename string, dest interface{}) error {
	filenames, err := resolveExtends(filename, readExtends)
	if err != nil {
		return err
	}
	return loadFiles(dest, filenames)
}

// readExtends returns the raw "extends:" value declared in filename's YAML
// header, or "" if it declares none. The value is returned exactly as
// written, relative or absolute; resolveExtends is responsible for joining
// a relative value against filename's directory.
func readExtends(filename string) (string, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return "", err
	}
	var h extendsHeader
	if err := yaml.Unmarshal(b, &h); err != nil {
		return "", fmt.Errorf("parse %s: %s", filename, err)
	}
	return h.Extends, nil
}

// resolveExtends walks the extends chain starting at fpath using lookup to
// read each file's raw extends declaration, returning filenames ordered
// from the root base file to fpath itself (the order loadFiles must apply
// them in). A relative extends value is resolved against the directory of
// the file that declared it.
func resolveExtends(fpath string, lookup func(string) (string, error)) ([]string, error) {
	var chain []string
	seen := make(map[string]bool)
	cur := fpath
	for {
		if seen[cur] {
			return nil, ErrCycleRef
		}
		seen[cur] = true
		chain = append([]string{cur}, chain...)

		parent, err := lookup(cur)
		if err != nil {
			return nil, err
		}
		if parent == "" {
			return chain, nil
		}
		if !filepath.IsAbs(parent) {
			parent = filepath.Join(filepath.Dir(cur), parent)
		}
		cur = parent
	}
}

// loadFiles unmarshals each file in filenames into dest in order, so that
// later files override fields set by earlier ones, then validates the
// fully-merged result exactly once.
func loadFiles(dest interface{}, filenames []string) error {
	for _, fn := range filenames {
		b, err := os.ReadFile(fn)
		if err != nil {
			return fmt.Errorf("read %s: %s", fn, err)
		}
		if err := yaml.Unmarshal(b, dest); err != nil {
			return fmt.Errorf("parse %s: %s", fn, err)
		}
	}
	if err := validator.Validate(dest); err != nil {
		if errs, ok := err.(validator.ErrorMap); ok {
			return ValidationError{errs: errs}
		}
		return err
	}
	return nil
}

// ValidationError wraps a validator.v2 field-level error map.
type ValidationError struct {
	errs validator.ErrorMap
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid config: %v", map[string]validator.ErrorArray(e.errs))
}

// ErrForField returns the validation errors recorded for the named struct
// field, or nil if that field passed validation.
func (e ValidationError) ErrForField(field string) validator.ErrorArray {
	return e.errs[field]
}
