package dialogue

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed script.yaml
var defaultScript []byte

// RuleKind says how a matched rule answers.
type RuleKind string

const (
	RuleReply        RuleKind = ""
	RuleDestinations RuleKind = "destinations"
	RulePackages     RuleKind = "packages"
	RulePurchase     RuleKind = "purchase"
)

// Rule is one keyword predicate with its canned response.
type Rule struct {
	Name       string   `yaml:"name"`
	Keywords   []string `yaml:"keywords"`
	Kind       RuleKind `yaml:"kind"`
	Reply      string   `yaml:"reply"`
	ReplyKnown string   `yaml:"reply_known"`
	Options    []string `yaml:"options"`
}

func (r *Rule) matches(text string) bool {
	return containsAny(text, r.Keywords)
}

type Destination struct {
	Title       string `yaml:"title"`
	Image       string `yaml:"image"`
	Description string `yaml:"description"`
}

type FollowUp struct {
	Keywords []string `yaml:"keywords"`
	Options  []string `yaml:"options"`
}

// Script is everything the assistant says, plus the keyword tables it uses
// to decide what to say.
type Script struct {
	Texts struct {
		GreetingKnown           string `yaml:"greeting_known"`
		GreetingAnonymous       string `yaml:"greeting_anonymous"`
		Welcome                 string `yaml:"welcome"`
		Thinking                string `yaml:"thinking"`
		Interest                string `yaml:"interest"`
		PackageSummary          string `yaml:"package_summary"`
		PurchaseConfirmation    string `yaml:"purchase_confirmation"`
		SignInRequired          string `yaml:"sign_in_required"`
		PurchaseCardDescription string `yaml:"purchase_card_description"`
	} `yaml:"texts"`
	Menus struct {
		Main          []string `yaml:"main"`
		Welcome       []string `yaml:"welcome"`
		AfterPurchase []string `yaml:"after_purchase"`
		SignIn        []string `yaml:"sign_in"`
	} `yaml:"menus"`
	SignInOption string        `yaml:"sign_in_option"`
	Destinations []Destination `yaml:"destinations"`
	Rules        []Rule        `yaml:"rules"`
	Question     struct {
		Marks    []string `yaml:"marks"`
		Prefixes []string `yaml:"prefixes"`
		Contains []string `yaml:"contains"`
		Admin    []string `yaml:"admin"`
	} `yaml:"question"`
	GeneratorFirst struct {
		Rules     []string   `yaml:"rules"`
		FollowUps []FollowUp `yaml:"followups"`
		Default   []string   `yaml:"default"`
	} `yaml:"generator_first"`
}

// DefaultScript returns the embedded script.
func DefaultScript() (*Script, error) {
	return parseScript(defaultScript)
}

// LoadScript reads a YAML script; an empty path yields the embedded default.
func LoadScript(path string) (*Script, error) {
	if path == "" {
		return DefaultScript()
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseScript(b)
}

func parseScript(b []byte) (*Script, error) {
	var s Script
	if err := yaml.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("parse script: %w", err)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	for i := range s.Rules {
		s.Rules[i].Keywords = lowerAll(s.Rules[i].Keywords)
	}
	s.Question.Prefixes = lowerAll(s.Question.Prefixes)
	s.Question.Contains = lowerAll(s.Question.Contains)
	s.Question.Admin = lowerAll(s.Question.Admin)
	for i := range s.GeneratorFirst.FollowUps {
		s.GeneratorFirst.FollowUps[i].Keywords = lowerAll(s.GeneratorFirst.FollowUps[i].Keywords)
	}
	return &s, nil
}

func (s *Script) validate() error {
	required := map[string]string{
		"texts.greeting_known":        s.Texts.GreetingKnown,
		"texts.greeting_anonymous":    s.Texts.GreetingAnonymous,
		"texts.welcome":               s.Texts.Welcome,
		"texts.thinking":              s.Texts.Thinking,
		"texts.interest":              s.Texts.Interest,
		"texts.package_summary":       s.Texts.PackageSummary,
		"texts.purchase_confirmation": s.Texts.PurchaseConfirmation,
		"texts.sign_in_required":      s.Texts.SignInRequired,
		"sign_in_option":              s.SignInOption,
	}
	for name, v := range required {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("script: %s is required", name)
		}
	}
	names := make(map[string]bool, len(s.Rules))
	for _, r := range s.Rules {
		if r.Name == "" || len(r.Keywords) == 0 {
			return fmt.Errorf("script: every rule needs a name and keywords")
		}
		switch r.Kind {
		case RuleReply, RuleDestinations, RulePackages, RulePurchase:
		default:
			return fmt.Errorf("script: rule %q has unknown kind %q", r.Name, r.Kind)
		}
		names[r.Name] = true
	}
	for _, n := range s.GeneratorFirst.Rules {
		if !names[n] {
			return fmt.Errorf("script: generator_first references unknown rule %q", n)
		}
	}
	return nil
}

func (s *Script) rule(name string) *Rule {
	for i := range s.Rules {
		if s.Rules[i].Name == name {
			return &s.Rules[i]
		}
	}
	return nil
}

// FollowUps picks the suggestion list for a generated answer from the
// keywords of the visitor's query.
func (s *Script) FollowUps(query string) []string {
	q := strings.ToLower(query)
	for _, f := range s.GeneratorFirst.FollowUps {
		if containsAny(q, f.Keywords) {
			return cloneStrings(f.Options)
		}
	}
	return cloneStrings(s.GeneratorFirst.Default)
}

// fill replaces {key} placeholders.
func fill(tmpl string, kv ...string) string {
	pairs := make([]string, 0, len(kv))
	for i := 0; i+1 < len(kv); i += 2 {
		pairs = append(pairs, "{"+kv[i]+"}", kv[i+1])
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if n != "" && strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.ToLower(v)
	}
	return out
}

func cloneStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	return append([]string(nil), in...)
}
