// Package jobs loads the list of commands to profile.
//
// A jobs file lists named commands in order, as JSON or YAML:
//
//	{"commands": [{"name": "list", "command": "ls -la"}]}
//
//	commands:
//	  - name: list
//	    command: ls -la
package jobs

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/coral-mesh/perfprobe/internal/profiler"
	"github.com/coral-mesh/perfprobe/internal/safe"
)

// MaxFileSize bounds the size of a jobs file.
const MaxFileSize = 1 << 20

// ErrNoJobs is returned when a jobs file contains no commands.
var ErrNoJobs = errors.New("jobs file defines no commands")

// File is the on-disk jobs document.
type File struct {
	Commands []profiler.Job `json:"commands" yaml:"commands" validate:"required,min=1,dive"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads and validates a jobs file. YAML is used for .yaml and .yml files, JSON otherwise.
func Load(path string) ([]profiler.Job, error) {
	data, err := safe.ReadFile(path, &safe.ReadOptions{MaxSize: MaxFileSize, AllowSymlinks: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read jobs file: %w", err)
	}

	format := "json"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		format = "yaml"
	}

	jobs, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return jobs, nil
}

// Parse decodes and validates a jobs document in the given format (json or yaml).
func Parse(data []byte, format string) ([]profiler.Job, error) {
	var file File

	switch format {
	case "json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&file); err != nil {
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}
	case "yaml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("invalid YAML: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported jobs format %q", format)
	}

	if err := file.Validate(); err != nil {
		return nil, err
	}
	return file.Commands, nil
}

// Validate checks that every command has a name and a command line, and that names are unique.
func (f *File) Validate() error {
	if len(f.Commands) == 0 {
		return ErrNoJobs
	}

	for i := range f.Commands {
		f.Commands[i].Name = strings.TrimSpace(f.Commands[i].Name)
		f.Commands[i].Command = strings.TrimSpace(f.Commands[i].Command)
	}

	if err := validate.Struct(f); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s is %s", fieldPath(fe.Namespace()), fe.Tag()))
			}
			return fmt.Errorf("invalid jobs file: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid jobs file: %w", err)
	}

	seen := make(map[string]int, len(f.Commands))
	for i, job := range f.Commands {
		if first, ok := seen[job.Name]; ok {
			return fmt.Errorf("duplicate job name %q (commands[%d] and commands[%d])", job.Name, first, i)
		}
		seen[job.Name] = i
	}

	return nil
}

// fieldPath turns "File.Commands[1].Name" into "commands[1].name".
func fieldPath(namespace string) string {
	namespace = strings.TrimPrefix(namespace, "File.")
	return strings.ToLower(namespace)
}
