package judge

import (
	"embed"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

//go:embed rubrics/*.yaml
var rubricFS embed.FS

// Criterion is a single yes/no question the judge answers with 1 or 0.
type Criterion struct {
	Key      string `yaml:"key"`
	Question string `yaml:"question"`
}

// Section groups the criteria that are judged in one model call.
type Section struct {
	Name     string      `yaml:"name"`
	Criteria []Criterion `yaml:"criteria"`
}

// Keys returns the criterion keys of the section in order.
func (s Section) Keys() []string {
	keys := make([]string, len(s.Criteria))
	for i, c := range s.Criteria {
		keys[i] = c.Key
	}
	return keys
}

// Rubric is an ordered list of sections.  Criterion keys are unique across
// the whole rubric.
type Rubric struct {
	Name     string    `yaml:"name"`
	Sections []Section `yaml:"sections"`
}

// Keys returns every criterion key in rubric order.
func (r *Rubric) Keys() []string {
	var keys []string
	for _, s := range r.Sections {
		keys = append(keys, s.Keys()...)
	}
	return keys
}

// Section looks up a section by name.
func (r *Rubric) Section(name string) (Section, bool) {
	for _, s := range r.Sections {
		if s.Name == name {
			return s, true
		}
	}
	return Section{}, false
}

// LoadRubric decodes and validates a YAML rubric.
func LoadRubric(rd io.Reader) (*Rubric, error) {
	var r Rubric
	dec := yaml.NewDecoder(rd)
	dec.KnownFields(true)
	if err := dec.Decode(&r); err != nil {
		return nil, fmt.Errorf("decode rubric: %w", err)
	}
	if err := r.validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

func (r *Rubric) validate() error {
	if len(r.Sections) == 0 {
		return fmt.Errorf("rubric %q has no sections", r.Name)
	}
	seen := map[string]bool{}
	for _, s := range r.Sections {
		if s.Name == "" {
			return fmt.Errorf("rubric %q: section without name", r.Name)
		}
		if len(s.Criteria) == 0 {
			return fmt.Errorf("rubric %q: section %q has no criteria", r.Name, s.Name)
		}
		for _, c := range s.Criteria {
			if c.Key == "" || c.Question == "" {
				return fmt.Errorf("rubric %q: section %q has an incomplete criterion", r.Name, s.Name)
			}
			if seen[c.Key] {
				return fmt.Errorf("rubric %q: duplicate criterion %q", r.Name, c.Key)
			}
			seen[c.Key] = true
		}
	}
	return nil
}

func mustLoadEmbedded(name string) *Rubric {
	f, err := rubricFS.Open("rubrics/" + name)
	if err != nil {
		panic(err)
	}
	defer f.Close()
	r, err := LoadRubric(f)
	if err != nil {
		panic(fmt.Sprintf("embedded rubric %s: %v", name, err))
	}
	return r
}

// TranscriptRubric returns the built-in rubric for dialogue transcripts.
func TranscriptRubric() *Rubric { return mustLoadEmbedded("transcript.yaml") }

// SummaryRubric returns the built-in rubric for check-in summaries.
func SummaryRubric() *Rubric { return mustLoadEmbedded("summary.yaml") }
