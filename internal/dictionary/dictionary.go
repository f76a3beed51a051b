// Package dictionary loads the reference tables used by the extractors and the
// query expander. A default set is embedded; an operator may supply a YAML file
// with the same shape to replace it.
package dictionary

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// CertEntry describes one certification.
type CertEntry struct {
	Abbr     string   `yaml:"abbr"`
	FullName string   `yaml:"full_name"`
	Org      string   `yaml:"org"`
	Aliases  []string `yaml:"aliases"`
	// SkipAbbr disables matching on the bare abbreviation when it is too
	// ambiguous in free text (e.g. "A+").
	SkipAbbr bool `yaml:"skip_abbr"`
}

// Terms returns the lowercased phrases that identify the certification.
func (c CertEntry) Terms() []string {
	terms := make([]string, 0, 2+len(c.Aliases))
	if !c.SkipAbbr {
		terms = append(terms, c.Abbr)
	}
	if c.FullName != "" {
		terms = append(terms, c.FullName)
	}
	terms = append(terms, c.Aliases...)
	return normalizeTerms(terms)
}

// SkillEntry describes one technical skill keyword.
type SkillEntry struct {
	Name    string   `yaml:"name"`
	Display string   `yaml:"display"`
	Aliases []string `yaml:"aliases"`
}

// Terms returns the lowercased phrases that identify the skill.
func (s SkillEntry) Terms() []string {
	return normalizeTerms(append([]string{s.Name}, s.Aliases...))
}

// RoleEntry maps a canonical role title to its search queries.
type RoleEntry struct {
	Title   string   `yaml:"title"`
	Queries []string `yaml:"queries"`
}

// Dictionary is the full set of reference tables. Treat it as read-only once loaded.
type Dictionary struct {
	Certifications []CertEntry  `yaml:"certifications"`
	Skills         []SkillEntry `yaml:"skills"`
	Roles          []RoleEntry  `yaml:"roles"`
}

// Default parses the embedded tables.
func Default() (*Dictionary, error) {
	return Parse(defaultYAML)
}

// Load reads tables from path, falling back to the embedded set when path is empty.
func Load(path string) (*Dictionary, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dictionary: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates YAML tables.
func Parse(data []byte) (*Dictionary, error) {
	var d Dictionary
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("decode dictionary: %w", err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// Validate checks that every entry can be matched and canonical keys are unique.
func (d *Dictionary) Validate() error {
	seen := make(map[string]struct{}, len(d.Certifications))
	for i, c := range d.Certifications {
		if strings.TrimSpace(c.Abbr) == "" {
			return fmt.Errorf("certifications[%d].abbr is required", i)
		}
		if len(c.Terms()) == 0 {
			return fmt.Errorf("certification %q has no match terms", c.Abbr)
		}
		key := strings.ToLower(c.Abbr)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("duplicate certification %q", c.Abbr)
		}
		seen[key] = struct{}{}
	}
	for i, s := range d.Skills {
		if strings.TrimSpace(s.Name) == "" {
			return fmt.Errorf("skills[%d].name is required", i)
		}
	}
	for i, r := range d.Roles {
		if strings.TrimSpace(r.Title) == "" {
			return fmt.Errorf("roles[%d].title is required", i)
		}
		if len(r.Queries) == 0 {
			return fmt.Errorf("role %q has no queries", r.Title)
		}
	}
	return nil
}

func normalizeTerms(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, t := range in {
		t = strings.ToLower(strings.Join(strings.Fields(t), " "))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
