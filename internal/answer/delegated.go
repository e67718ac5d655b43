package answer

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/mejiasimon/chatbotTravelAgency/internal/catalog"
	"github.com/mejiasimon/chatbotTravelAgency/internal/identity"
)

const (
	visitorMaxTokens = 500
	adminMaxTokens   = 800
)

// ChatCompleter is the slice of the OpenAI client the delegated strategy uses.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Delegated forwards a role-appropriate prompt to a text-completion service
// and returns the completion verbatim.
type Delegated struct {
	client    ChatCompleter
	model     string
	knowledge *Knowledge
	prices    *catalog.PriceFormatter
	timeout   time.Duration
}

func NewDelegated(client ChatCompleter, model string, k *Knowledge, prices *catalog.PriceFormatter, timeout time.Duration) *Delegated {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Delegated{client: client, model: model, knowledge: k, prices: prices, timeout: timeout}
}

// NewOpenAIClient builds a go-openai client, honoring a custom base URL for
// compatible providers.
func NewOpenAIClient(apiKey, baseURL string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(cfg)
}

// MaxTokens is the completion budget for a role.
func MaxTokens(role identity.Role) int {
	if role == identity.RoleAdmin {
		return adminMaxTokens
	}
	return visitorMaxTokens
}

func (d *Delegated) Answer(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	resp, err := d.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       d.model,
		MaxTokens:   MaxTokens(req.Role),
		Temperature: 0.7,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: d.BuildPrompt(req)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// BuildPrompt composes briefing, catalog projection and question. Private
// package data only appears for admins.
func (d *Delegated) BuildPrompt(req Request) string {
	admin := req.Role == identity.RoleAdmin
	var b strings.Builder
	b.WriteString(strings.TrimSpace(d.knowledge.Briefing.Base))
	if admin && d.knowledge.Briefing.Admin != "" {
		b.WriteString("\n\n")
		b.WriteString(strings.TrimSpace(d.knowledge.Briefing.Admin))
	}
	if len(req.Catalog) > 0 {
		b.WriteString("\n\nAvailable packages:\n")
		for _, p := range req.Catalog {
			fmt.Fprintf(&b, "Package: %s, Duration: %d days, Price: %s, Includes: %s, Locations: %s, Description: %s",
				p.Name, p.DurationDays, d.prices.Format(p.Price),
				strings.Join(p.Includes, ", "), strings.Join(p.Locations, ", "), p.Description)
			if admin {
				fmt.Fprintf(&b, ", Cost: %s, Margin: %d%%", d.prices.Format(baseCost(p.Price)), marginPercent)
				if p.PrivateInfo != "" {
					fmt.Fprintf(&b, ", Private info: %s", p.PrivateInfo)
				}
			}
			b.WriteString("\n")
		}
	}
	role := string(req.Role)
	if role == "" {
		role = string(identity.RoleVisitor)
	}
	fmt.Fprintf(&b, "\nThe person asking is a %s user.\nQuestion: %s\n", role, strings.TrimSpace(req.Query))
	return b.String()
}
