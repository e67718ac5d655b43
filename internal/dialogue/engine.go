// Package dialogue is the assistant's conversation engine: it classifies
// visitor input, answers from a script, runs the package purchase sub-flow
// and hands open questions to the answer generator.
package dialogue

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/mejiasimon/chatbotTravelAgency/internal/answer"
	"github.com/mejiasimon/chatbotTravelAgency/internal/catalog"
	"github.com/mejiasimon/chatbotTravelAgency/internal/identity"
)

const cardDescriptionLimit = 80

// Answerer produces free-text answers and never fails.
type Answerer interface {
	Generate(ctx context.Context, req answer.Request) string
}

// Delays emulate thinking time before scripted replies.
type Delays struct {
	Welcome time.Duration
	Reply   time.Duration
	Confirm time.Duration
}

func DefaultDelays() Delays {
	return Delays{Welcome: 500 * time.Millisecond, Reply: time.Second, Confirm: 1500 * time.Millisecond}
}

type Options struct {
	Catalog   catalog.Reader
	Answers   Answerer
	Script    *Script
	Mode      Mode
	Delays    Delays
	Prices    *catalog.PriceFormatter
	SignInURL string
	// GenerationTimeout bounds each delegated answer; zero means no bound
	// beyond the strategy's own.
	GenerationTimeout time.Duration
}

type Engine struct {
	catalog    catalog.Reader
	answers    Answerer
	script     *Script
	classifier *Classifier
	delays     Delays
	prices     *catalog.PriceFormatter
	signInURL  string
	genTimeout time.Duration
}

// Outcome reports side effects that leave the transcript, such as a
// navigation request.
type Outcome struct {
	Navigate string `json:"navigate,omitempty"`
}

func NewEngine(opts Options) (*Engine, error) {
	if opts.Catalog == nil {
		return nil, errors.New("dialogue: catalog is required")
	}
	if opts.Answers == nil {
		return nil, errors.New("dialogue: answer generator is required")
	}
	script := opts.Script
	if script == nil {
		var err error
		if script, err = DefaultScript(); err != nil {
			return nil, err
		}
	}
	prices := opts.Prices
	if prices == nil {
		prices = catalog.NewPriceFormatter("es-CO")
	}
	signIn := opts.SignInURL
	if signIn == "" {
		signIn = "/login"
	}
	return &Engine{
		catalog:    opts.Catalog,
		answers:    opts.Answers,
		script:     script,
		classifier: NewClassifier(script, opts.Mode),
		delays:     opts.Delays,
		prices:     prices,
		signInURL:  signIn,
		genTimeout: opts.GenerationTimeout,
	}, nil
}

func (e *Engine) Classifier() *Classifier { return e.classifier }

// Open greets the visitor the first time the chat is opened.
func (e *Engine) Open(s *Session, user *identity.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || len(s.transcript) > 0 {
		return
	}
	s.touchLocked()
	if user != nil {
		s.appendLocked(assistantOptions(fill(e.script.Texts.GreetingKnown, "name", user.Name), e.script.Menus.Main))
	} else {
		s.appendLocked(assistantText(e.script.Texts.GreetingAnonymous))
	}
	s.state.CollectingVisitorName = user == nil
}

// SubmitUtterance handles typed text. Blank input is ignored.
func (e *Engine) SubmitUtterance(ctx context.Context, s *Session, user *identity.User, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	e.submit(ctx, s, user, text, OriginTyped)
}

// SubmitOption handles a clicked quick reply. It always goes straight to
// classification, except the sign-in option, which only navigates and leaves
// the transcript alone.
func (e *Engine) SubmitOption(ctx context.Context, s *Session, user *identity.User, label string) Outcome {
	if strings.TrimSpace(label) == "" {
		return Outcome{}
	}
	if label == e.script.SignInOption {
		return Outcome{Navigate: e.signInURL}
	}
	e.submit(ctx, s, user, label, OriginOption)
	return Outcome{}
}

// plan holds the catalog reads for one visitor turn, made without the
// session lock held.
type plan struct {
	intent   Intent
	cards    []Card
	cardsErr error
	pkg      catalog.Package
	pkgErr   error
}

// submit plans against the current flags, then commits. If another event
// changed the flags in between, it plans again.
func (e *Engine) submit(ctx context.Context, s *Session, user *identity.User, text string, origin Origin) {
	for {
		if s.Closed() {
			return
		}
		st := s.State()
		p := e.prepare(ctx, user, text, origin, st)
		if e.commit(s, user, text, origin, st, p) {
			return
		}
	}
}

func (e *Engine) prepare(ctx context.Context, user *identity.User, text string, origin Origin, st State) plan {
	var p plan
	switch {
	case origin == OriginTyped && st.CollectingVisitorName:
	case origin == OriginTyped && st.PurchaseInProgress:
		if st.SelectedPackageID != nil {
			p.pkg, p.pkgErr = e.catalog.Get(ctx, *st.SelectedPackageID)
		}
	default:
		p.intent = e.classifier.Classify(text, identity.RoleOf(user), origin)
		switch p.intent.Kind {
		case IntentPackages:
			p.cards, p.cardsErr = e.packageCards(ctx, false)
		case IntentPurchase:
			if identity.CanPurchase(user) {
				p.cards, p.cardsErr = e.packageCards(ctx, true)
			}
		}
	}
	return p
}

// commit applies a plan. It reports false when typed text was planned
// against flags that no longer hold.
func (e *Engine) commit(s *Session, user *identity.User, text string, origin Origin, st State, p plan) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}
	if origin == OriginTyped && !sameFlow(s.state, st) {
		return false
	}
	s.touchLocked()
	s.appendLocked(visitorTurn(text))

	switch {
	case origin == OriginTyped && st.CollectingVisitorName:
		s.state.CollectingVisitorName = false
		s.deliverLocked(e.delays.Welcome, assistantOptions(fill(e.script.Texts.Welcome, "name", text), e.script.Menus.Welcome))
	case origin == OriginTyped && st.PurchaseInProgress:
		e.confirmPurchaseLocked(s, text, p)
	default:
		e.routeLocked(s, user, text, p)
	}
	return true
}

func sameFlow(a, b State) bool {
	if a.CollectingVisitorName != b.CollectingVisitorName || a.PurchaseInProgress != b.PurchaseInProgress {
		return false
	}
	if a.SelectedPackageID == nil || b.SelectedPackageID == nil {
		return a.SelectedPackageID == b.SelectedPackageID
	}
	return *a.SelectedPackageID == *b.SelectedPackageID
}

// SelectPackage starts the purchase sub-flow for eligible users, or asks
// everyone else to sign in. Unknown ids are ignored.
func (e *Engine) SelectPackage(ctx context.Context, s *Session, user *identity.User, packageID int) {
	pkg, err := e.catalog.Get(ctx, packageID)
	if err != nil {
		if !errors.Is(err, catalog.ErrNotFound) {
			slog.Warn("package lookup failed", "session", s.ID(), "package", packageID, "error", err)
		}
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.touchLocked()
	s.appendLocked(visitorTurn(fill(e.script.Texts.Interest, "package", pkg.Name)))

	if !identity.CanPurchase(user) {
		s.deliverLocked(e.delays.Reply, assistantOptions(e.script.Texts.SignInRequired, e.script.Menus.SignIn))
		return
	}
	id := pkg.ID
	s.state.PurchaseInProgress = true
	s.state.SelectedPackageID = &id
	s.deliverLocked(e.delays.Reply, assistantText(e.packageSummary(pkg)))
}

// confirmPurchaseLocked consumes the party-size answer. The text is echoed
// as given.
func (e *Engine) confirmPurchaseLocked(s *Session, party string, p plan) {
	selected := s.state.SelectedPackageID
	s.state.PurchaseInProgress = false
	s.state.SelectedPackageID = nil
	if selected == nil {
		return
	}
	if p.pkgErr != nil {
		slog.Warn("selected package unavailable at confirmation", "session", s.id, "package", *selected, "error", p.pkgErr)
		return
	}
	text := fill(e.script.Texts.PurchaseConfirmation, "package", p.pkg.Name, "party", party)
	s.deliverLocked(e.delays.Confirm, assistantOptions(text, e.script.Menus.AfterPurchase))
	slog.Info("booking registered", "session", s.id, "package", p.pkg.ID, "party", party)
}

func (e *Engine) routeLocked(s *Session, user *identity.User, text string, p plan) {
	role := identity.RoleOf(user)
	intent := p.intent
	switch intent.Kind {
	case IntentDestinations:
		s.deliverLocked(e.delays.Reply, assistantCards(intent.Rule.Reply, e.destinationCards()))
	case IntentPackages:
		if p.cardsErr != nil {
			e.delegateLocked(s, role, text, intent.FollowUps)
			return
		}
		s.deliverLocked(e.delays.Reply, assistantCards(intent.Rule.Reply, p.cards))
	case IntentPurchase:
		if !identity.CanPurchase(user) {
			s.deliverLocked(e.delays.Reply, assistantOptions(e.script.Texts.SignInRequired, e.script.Menus.SignIn))
			return
		}
		if p.cardsErr != nil {
			e.delegateLocked(s, role, text, intent.FollowUps)
			return
		}
		s.deliverLocked(e.delays.Reply, assistantCards(intent.Rule.Reply, p.cards))
	case IntentReply:
		reply := intent.Rule.Reply
		if user != nil && intent.Rule.ReplyKnown != "" {
			reply = fill(intent.Rule.ReplyKnown, "name", user.Name)
		}
		s.deliverLocked(e.delays.Reply, assistantOptions(reply, intent.Rule.Options))
	default:
		e.delegateLocked(s, role, text, intent.FollowUps)
	}
}

// delegateLocked appends a pending placeholder and resolves it in the
// background by correlation id.
func (e *Engine) delegateLocked(s *Session, role identity.Role, query string, followUps bool) {
	correlationID := uuid.NewString()
	s.appendLocked(Turn{
		Text:          e.script.Texts.Thinking,
		Sender:        SenderAssistant,
		Presentation:  PresentationPending,
		Generated:     true,
		CorrelationID: correlationID,
	})
	s.state.AnswerPending = true
	sessionID := s.id

	s.goLocked(func() {
		ctx := context.Background()
		if e.genTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, e.genTimeout)
			defer cancel()
		}
		pkgs, err := e.catalog.List(ctx)
		if err != nil {
			slog.Warn("catalog unavailable for answer generation", "session", sessionID, "error", err)
		}
		if role != identity.RoleAdmin {
			for i := range pkgs {
				pkgs[i] = pkgs[i].Public()
			}
		}
		text := e.answers.Generate(ctx, answer.Request{Query: query, Role: role, Catalog: pkgs})
		var options []string
		if followUps {
			options = e.script.FollowUps(query)
		}
		if !s.resolve(correlationID, text, options) {
			slog.Debug("dropped generated answer", "session", sessionID, "correlation", correlationID)
		}
	})
}

func (e *Engine) destinationCards() []Card {
	cards := make([]Card, 0, len(e.script.Destinations))
	for _, d := range e.script.Destinations {
		cards = append(cards, Card{Title: d.Title, ImageRef: d.Image, Description: d.Description})
	}
	return cards
}

// packageCards projects the whole catalog. Purchase listings describe
// duration and capacity instead of the blurb.
func (e *Engine) packageCards(ctx context.Context, purchase bool) ([]Card, error) {
	pkgs, err := e.catalog.List(ctx)
	if err != nil {
		return nil, err
	}
	cards := make([]Card, 0, len(pkgs))
	for _, p := range pkgs {
		desc := truncate(p.Description, cardDescriptionLimit) + "..."
		if purchase {
			desc = fill(e.script.Texts.PurchaseCardDescription,
				"days", strconv.Itoa(p.DurationDays), "people", strconv.Itoa(p.MaxPeople))
		}
		cards = append(cards, Card{
			Title:       p.Name,
			ImageRef:    p.Image,
			Description: desc,
			Price:       e.prices.Format(p.Price),
			PackageID:   p.ID,
		})
	}
	return cards, nil
}

func (e *Engine) packageSummary(p catalog.Package) string {
	return fill(e.script.Texts.PackageSummary,
		"package", p.Name,
		"days", strconv.Itoa(p.DurationDays),
		"includes", strings.Join(p.Includes, "\n• "),
		"price", e.prices.Format(p.Price),
	)
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
