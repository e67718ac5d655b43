package answer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mejiasimon/chatbotTravelAgency/internal/catalog"
	"github.com/mejiasimon/chatbotTravelAgency/internal/identity"
)

const (
	summaryLimit = 3
	// Share of the public price that is base cost in the admin analysis.
	costShare     = 0.65
	marginPercent = 35
)

// Scripted answers from keyword topics after an artificial latency.
type Scripted struct {
	knowledge *Knowledge
	prices    *catalog.PriceFormatter
	latency   time.Duration
}

func NewScripted(k *Knowledge, prices *catalog.PriceFormatter, latency time.Duration) *Scripted {
	return &Scripted{knowledge: k, prices: prices, latency: latency}
}

func (s *Scripted) Answer(ctx context.Context, req Request) (string, error) {
	if s.latency > 0 {
		t := time.NewTimer(s.latency)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-t.C:
		}
	}

	set := s.knowledge.Scripted.Regular
	if req.Role == identity.RoleAdmin {
		set = s.knowledge.Scripted.Admin
	}
	q := strings.ToLower(req.Query)
	for _, topic := range set.Topics {
		if !topic.Matches(q) {
			continue
		}
		switch topic.Catalog {
		case "summary":
			return s.withListing(topic, s.summary(req.Catalog)), nil
		case "analysis":
			return s.withListing(topic, s.analysis(req.Catalog)), nil
		default:
			return topic.Answer, nil
		}
	}
	return set.Fallback, nil
}

func (s *Scripted) withListing(t Topic, listing string) string {
	var b strings.Builder
	b.WriteString(t.Answer)
	if listing != "" {
		b.WriteString("\n\n")
		b.WriteString(listing)
	}
	if t.Closing != "" {
		b.WriteString("\n\n")
		b.WriteString(t.Closing)
	}
	return b.String()
}

func (s *Scripted) summary(pkgs []catalog.Package) string {
	if len(pkgs) > summaryLimit {
		pkgs = pkgs[:summaryLimit]
	}
	lines := make([]string, 0, len(pkgs))
	for _, p := range pkgs {
		lines = append(lines, fmt.Sprintf("- %s: %d days for %s", p.Name, p.DurationDays, s.prices.Format(p.Price)))
	}
	return strings.Join(lines, "\n")
}

func (s *Scripted) analysis(pkgs []catalog.Package) string {
	lines := make([]string, 0, len(pkgs))
	for _, p := range pkgs {
		lines = append(lines, fmt.Sprintf("- %s: Price: %s, Cost: %s, Margin: %d%%",
			p.Name, s.prices.Format(p.Price), s.prices.Format(baseCost(p.Price)), marginPercent))
	}
	return strings.Join(lines, "\n")
}

func baseCost(price int64) int64 {
	return int64(float64(price)*costShare + 0.5)
}
