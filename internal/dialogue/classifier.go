package dialogue

import (
	"strings"

	"github.com/mejiasimon/chatbotTravelAgency/internal/identity"
)

// Mode selects how much of the conversation is scripted.
type Mode string

const (
	// ModeKeyword answers from the full rule table and delegates the rest.
	ModeKeyword Mode = "keyword"
	// ModeGeneratorFirst only scripts package/destination browsing and
	// purchase intent; everything else goes to the answer generator.
	ModeGeneratorFirst Mode = "generator"
)

// Origin tells typed text from a clicked option.
type Origin int

const (
	OriginTyped Origin = iota
	OriginOption
)

type IntentKind string

const (
	IntentReply        IntentKind = "reply"
	IntentDestinations IntentKind = "destinations"
	IntentPackages     IntentKind = "packages"
	IntentPurchase     IntentKind = "purchase"
	IntentDelegate     IntentKind = "delegate"
)

type Intent struct {
	Kind IntentKind
	Rule *Rule
	// FollowUps asks for a suggestion list once the delegated answer lands.
	FollowUps bool
}

type Classifier struct {
	script *Script
	mode   Mode
	rules  []*Rule
}

func NewClassifier(script *Script, mode Mode) *Classifier {
	c := &Classifier{script: script, mode: mode}
	if mode == ModeGeneratorFirst {
		for _, name := range script.GeneratorFirst.Rules {
			if r := script.rule(name); r != nil {
				c.rules = append(c.rules, r)
			}
		}
	} else {
		c.mode = ModeKeyword
		for i := range script.Rules {
			c.rules = append(c.rules, &script.Rules[i])
		}
	}
	return c
}

func (c *Classifier) Mode() Mode { return c.mode }

// Classify routes one visitor utterance. Matching is case-insensitive.
func (c *Classifier) Classify(text string, role identity.Role, origin Origin) Intent {
	m := strings.ToLower(strings.TrimSpace(text))
	if m == "" {
		return Intent{Kind: IntentDelegate, FollowUps: c.mode == ModeGeneratorFirst}
	}
	if c.mode == ModeKeyword && origin == OriginTyped && c.LooksLikeQuestion(m, role) {
		return Intent{Kind: IntentDelegate}
	}
	for _, r := range c.rules {
		if r.matches(m) {
			return Intent{Kind: intentFor(r.Kind), Rule: r}
		}
	}
	return Intent{Kind: IntentDelegate, FollowUps: c.mode == ModeGeneratorFirst}
}

// LooksLikeQuestion is the heuristic that sends free-form questions to the
// answer generator before any rule gets a chance. Admins also get there with
// confidential keywords.
func (c *Classifier) LooksLikeQuestion(text string, role identity.Role) bool {
	m := strings.ToLower(text)
	q := c.script.Question
	if containsAny(m, q.Marks) || containsAny(m, q.Contains) {
		return true
	}
	if hasAnyPrefix(strings.TrimLeft(m, "¿¡ "), q.Prefixes) {
		return true
	}
	return role == identity.RoleAdmin && containsAny(m, q.Admin)
}

func intentFor(k RuleKind) IntentKind {
	switch k {
	case RuleDestinations:
		return IntentDestinations
	case RulePackages:
		return IntentPackages
	case RulePurchase:
		return IntentPurchase
	default:
		return IntentReply
	}
}
