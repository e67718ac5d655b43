// Package answer produces free-text answers for questions the assistant has
// no canned reply for. A Strategy does the work; Generator wraps it so that
// callers always get a string back.
package answer

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/mejiasimon/chatbotTravelAgency/internal/catalog"
	"github.com/mejiasimon/chatbotTravelAgency/internal/identity"
)

type Request struct {
	Query   string
	Role    identity.Role
	Catalog []catalog.Package
}

type Strategy interface {
	Answer(ctx context.Context, req Request) (string, error)
}

var errEmptyAnswer = errors.New("empty answer")

// Generator never fails: any strategy error, empty answer or panic resolves
// to the apology string.
type Generator struct {
	strategy Strategy
	apology  string
}

func NewGenerator(strategy Strategy, apology string) *Generator {
	return &Generator{strategy: strategy, apology: apology}
}

func (g *Generator) Apology() string { return g.apology }

func (g *Generator) Generate(ctx context.Context, req Request) (out string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("answer strategy panicked", "panic", r, "role", req.Role)
			out = g.apology
		}
	}()
	if g.strategy == nil {
		return g.apology
	}
	text, err := g.strategy.Answer(ctx, req)
	if err == nil && strings.TrimSpace(text) == "" {
		err = errEmptyAnswer
	}
	if err != nil {
		slog.Warn("answer generation failed", "error", err, "role", req.Role)
		return g.apology
	}
	return text
}
