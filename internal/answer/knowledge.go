package answer

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed knowledge.yaml
var defaultKnowledge []byte

// Knowledge holds the agency briefing and the canned answers of the scripted
// strategy.
type Knowledge struct {
	Apology  string `yaml:"apology"`
	Briefing struct {
		Base  string `yaml:"base"`
		Admin string `yaml:"admin"`
	} `yaml:"briefing"`
	Scripted struct {
		Regular TopicSet `yaml:"regular"`
		Admin   TopicSet `yaml:"admin"`
	} `yaml:"scripted"`
}

type TopicSet struct {
	Fallback string  `yaml:"fallback"`
	Topics   []Topic `yaml:"topics"`
}

// Topic maps keywords to a canned paragraph. Catalog topics append a listing
// of packages ("summary" or "analysis") followed by Closing.
type Topic struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
	Answer   string   `yaml:"answer"`
	Catalog  string   `yaml:"catalog"`
	Closing  string   `yaml:"closing"`
}

// Matches reports whether the lower-cased query contains any keyword.
func (t Topic) Matches(query string) bool {
	for _, k := range t.Keywords {
		if strings.Contains(query, k) {
			return true
		}
	}
	return false
}

// DefaultKnowledge returns the embedded knowledge file.
func DefaultKnowledge() (*Knowledge, error) {
	return parseKnowledge(defaultKnowledge)
}

// LoadKnowledge reads a YAML knowledge file; an empty path yields the
// embedded default.
func LoadKnowledge(path string) (*Knowledge, error) {
	if path == "" {
		return DefaultKnowledge()
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseKnowledge(b)
}

func parseKnowledge(b []byte) (*Knowledge, error) {
	var k Knowledge
	if err := yaml.Unmarshal(b, &k); err != nil {
		return nil, fmt.Errorf("parse knowledge: %w", err)
	}
	if strings.TrimSpace(k.Apology) == "" {
		return nil, fmt.Errorf("knowledge: apology is required")
	}
	if strings.TrimSpace(k.Briefing.Base) == "" {
		return nil, fmt.Errorf("knowledge: base briefing is required")
	}
	for _, set := range []TopicSet{k.Scripted.Regular, k.Scripted.Admin} {
		if strings.TrimSpace(set.Fallback) == "" {
			return nil, fmt.Errorf("knowledge: scripted fallback is required")
		}
		for _, t := range set.Topics {
			switch t.Catalog {
			case "", "summary", "analysis":
			default:
				return nil, fmt.Errorf("knowledge: topic %q has unknown catalog listing %q", t.Name, t.Catalog)
			}
		}
	}
	return &k, nil
}
