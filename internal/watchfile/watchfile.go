// File: internal/watchfile/watchfile.go
// Brief: YAML watch file: the fleet of monitored queues.

// Package watchfile loads the sqswatch.yaml fleet descriptor. Each entry
// names one queue and the email its alarms notify; file-level defaults fill
// entries that do not set their own.
package watchfile

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/example/sqswatch/internal/monitor"
)

const (
	APIVersion = "sqswatch.dev/v1"
	Kind       = "WatchFile"
)

// DefaultNames lists the file names probed by LocateDefault, in order.
var DefaultNames = []string{"sqswatch.yaml", "sqswatch.yml"}

// File is the parsed watch file.
type File struct {
	APIVersion string   `yaml:"apiVersion"`
	Kind       string   `yaml:"kind"`
	Region     string   `yaml:"region"`
	Defaults   Defaults `yaml:"defaults"`
	Queues     []Entry  `yaml:"queues"`

	Path string `yaml:"-"`
}

// Defaults carries file-level values applied to entries that omit them.
type Defaults struct {
	Email string `yaml:"email"`
}

// Entry is one monitored queue.
type Entry struct {
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
}

// Target is one resolved compile input pair.
type Target struct {
	Queue string
	Email string
}

// Load reads and validates a watch file.
func Load(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read watch file: %w", err)
	}
	var f File
	dec := yaml.NewDecoder(strings.NewReader(string(raw)))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	f.Path = path
	if err := f.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &f, nil
}

// LocateDefault probes the working directory for a watch file and returns its
// path, or "" when none exists.
func LocateDefault() string {
	for _, name := range DefaultNames {
		if st, err := os.Stat(name); err == nil && !st.IsDir() {
			return name
		}
	}
	return ""
}

func (f *File) validate() error {
	if f.APIVersion != "" && f.APIVersion != APIVersion {
		return fmt.Errorf("unsupported apiVersion %q (expected %s)", f.APIVersion, APIVersion)
	}
	if f.Kind != "" && f.Kind != Kind {
		return fmt.Errorf("unsupported kind %q (expected %s)", f.Kind, Kind)
	}
	if len(f.Queues) == 0 {
		return fmt.Errorf("no queues declared")
	}
	seen := map[string]struct{}{}
	for i, q := range f.Queues {
		if err := monitor.ValidateQueueName(q.Name); err != nil {
			return fmt.Errorf("queue %d: %w", i, err)
		}
		if _, dup := seen[q.Name]; dup {
			return fmt.Errorf("queue %q declared twice", q.Name)
		}
		seen[q.Name] = struct{}{}
		if strings.TrimSpace(q.Email) == "" && strings.TrimSpace(f.Defaults.Email) == "" {
			return fmt.Errorf("queue %q has no email and the file sets no default", q.Name)
		}
	}
	return nil
}

// Targets resolves entries against the file defaults.
func (f *File) Targets() []Target {
	out := make([]Target, 0, len(f.Queues))
	for _, q := range f.Queues {
		email := strings.TrimSpace(q.Email)
		if email == "" {
			email = strings.TrimSpace(f.Defaults.Email)
		}
		out = append(out, Target{Queue: q.Name, Email: email})
	}
	return out
}
