package browser

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/cepsync/internal/model"
)

// Label maps a fragment of a page label to the canonical field it denotes.
type Label struct {
	Match string      `yaml:"match"`
	Field model.Field `yaml:"field"`
}

// Labels is an ordered label vocabulary. Earlier entries win when a label
// text contains more than one fragment.
type Labels []Label

// DefaultLabels returns the vocabulary of the Correios result tables.
func DefaultLabels() Labels {
	return Labels{
		{Match: "logradouro", Field: model.FieldStreet},
		{Match: "bairro", Field: model.FieldNeighborhood},
		{Match: "localidade", Field: model.FieldCity},
		{Match: "cep", Field: model.FieldCode},
	}
}

// Lookup returns the field whose fragment occurs in text, ignoring case.
func (l Labels) Lookup(text string) (model.Field, bool) {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return "", false
	}
	for _, lb := range l {
		if strings.Contains(lower, lb.Match) {
			return lb.Field, true
		}
	}
	return "", false
}

// Validate checks that every entry has a fragment and a known field.
func (l Labels) Validate() error {
	if len(l) == 0 {
		return eris.New("labels: empty vocabulary")
	}
	for i, lb := range l {
		if strings.TrimSpace(lb.Match) == "" {
			return eris.Errorf("labels: entry %d has empty match", i)
		}
		if _, ok := model.ParseField(string(lb.Field)); !ok {
			return eris.Errorf("labels: entry %d (%q) has unknown field %q", i, lb.Match, lb.Field)
		}
	}
	return nil
}

// LoadLabels reads a vocabulary from a YAML file of the form:
//
//	labels:
//	  - match: logradouro
//	    field: street
func LoadLabels(path string) (Labels, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "labels: read %s", path)
	}

	var wrapper struct {
		Labels Labels `yaml:"labels"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "labels: parse")
	}

	out := make(Labels, 0, len(wrapper.Labels))
	for _, lb := range wrapper.Labels {
		lb.Match = strings.ToLower(strings.TrimSpace(lb.Match))
		out = append(out, lb)
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}
