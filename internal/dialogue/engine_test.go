package dialogue

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mejiasimon/chatbotTravelAgency/internal/answer"
	"github.com/mejiasimon/chatbotTravelAgency/internal/catalog"
	"github.com/mejiasimon/chatbotTravelAgency/internal/identity"
)

type sliceCatalog struct {
	pkgs []catalog.Package
	err  error
}

func (c *sliceCatalog) List(ctx context.Context) ([]catalog.Package, error) {
	if c.err != nil {
		return nil, c.err
	}
	return append([]catalog.Package(nil), c.pkgs...), nil
}

func (c *sliceCatalog) Get(ctx context.Context, id int) (catalog.Package, error) {
	for _, p := range c.pkgs {
		if p.ID == id {
			return p, nil
		}
	}
	return catalog.Package{}, catalog.ErrNotFound
}

type answerFunc func(ctx context.Context, req answer.Request) string

func (f answerFunc) Generate(ctx context.Context, req answer.Request) string { return f(ctx, req) }

// recordingAnswerer returns a fixed text and keeps every request.
type recordingAnswerer struct {
	mu   sync.Mutex
	text string
	reqs []answer.Request
}

func (r *recordingAnswerer) Generate(ctx context.Context, req answer.Request) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reqs = append(r.reqs, req)
	return r.text
}

func (r *recordingAnswerer) requests() []answer.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]answer.Request(nil), r.reqs...)
}

var (
	regular = &identity.User{ID: "1", Name: "Usuario Regular", Role: identity.RoleRegular}
	admin   = &identity.User{ID: "2", Name: "Administrador", Role: identity.RoleAdmin}
)

func newTestEngine(t *testing.T, mode Mode, answers Answerer) (*Engine, *Script) {
	t.Helper()
	script, err := DefaultScript()
	if err != nil {
		t.Fatalf("DefaultScript: %v", err)
	}
	if answers == nil {
		answers = &recordingAnswerer{text: "generated"}
	}
	e, err := NewEngine(Options{
		Catalog: &sliceCatalog{pkgs: catalog.Seed()},
		Answers: answers,
		Script:  script,
		Mode:    mode,
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e, script
}

func lastTurn(t *testing.T, s *Session) Turn {
	t.Helper()
	turns := s.Snapshot().Turns
	if len(turns) == 0 {
		t.Fatal("transcript is empty")
	}
	return turns[len(turns)-1]
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestNewEngineRequiresDependencies(t *testing.T) {
	if _, err := NewEngine(Options{Answers: &recordingAnswerer{}}); err == nil {
		t.Fatal("expected error without catalog")
	}
	if _, err := NewEngine(Options{Catalog: &sliceCatalog{}}); err == nil {
		t.Fatal("expected error without answer generator")
	}
}

func TestAnonymousOpenAndNameCollection(t *testing.T) {
	e, script := newTestEngine(t, ModeKeyword, nil)
	s := NewSession("s1")

	e.Open(s, nil)
	snap := s.Snapshot()
	if len(snap.Turns) != 1 {
		t.Fatalf("open produced %d turns, want 1", len(snap.Turns))
	}
	greeting := snap.Turns[0]
	if greeting.Presentation != PresentationPlain || len(greeting.Options) != 0 {
		t.Fatalf("anonymous greeting should be plain, got %q with %v", greeting.Presentation, greeting.Options)
	}
	if greeting.Text != script.Texts.GreetingAnonymous {
		t.Fatalf("greeting = %q", greeting.Text)
	}
	if !snap.State.CollectingVisitorName {
		t.Fatal("anonymous open should collect the visitor name")
	}

	e.SubmitUtterance(context.Background(), s, nil, "Carlos")
	s.Wait()

	snap = s.Snapshot()
	if len(snap.Turns) != 3 {
		t.Fatalf("got %d turns, want 3", len(snap.Turns))
	}
	if snap.Turns[1].Sender != SenderVisitor || snap.Turns[1].Text != "Carlos" {
		t.Fatalf("visitor turn = %+v", snap.Turns[1])
	}
	welcome := snap.Turns[2]
	want := []string{"Popular destinations", "Tour packages", "Travel information", "Talk to an agent"}
	if !equalStrings(welcome.Options, want) {
		t.Fatalf("welcome options = %v, want %v", welcome.Options, want)
	}
	if !strings.Contains(welcome.Text, "Carlos") {
		t.Fatalf("welcome does not use the name: %q", welcome.Text)
	}
	if snap.State.CollectingVisitorName {
		t.Fatal("name collection should be cleared")
	}

	// A second utterance is classified normally, not taken as a name.
	e.SubmitUtterance(context.Background(), s, nil, "destinos")
	s.Wait()
	if got := lastTurn(t, s); got.Presentation != PresentationCards {
		t.Fatalf("expected destination cards after name collection, got %q", got.Presentation)
	}
}

func TestKnownOpenNeverCollectsName(t *testing.T) {
	e, _ := newTestEngine(t, ModeKeyword, nil)
	s := NewSession("s1")
	e.Open(s, regular)

	snap := s.Snapshot()
	if snap.State.CollectingVisitorName {
		t.Fatal("known identity should not collect a name")
	}
	if len(snap.Turns) != 1 {
		t.Fatalf("got %d turns", len(snap.Turns))
	}
	g := snap.Turns[0]
	if !strings.Contains(g.Text, regular.Name) {
		t.Fatalf("greeting not personalized: %q", g.Text)
	}
	if !equalStrings(g.Options, []string{"Popular destinations", "Tour packages", "Travel information"}) {
		t.Fatalf("options = %v", g.Options)
	}
}

func TestOpenIsNoopOnNonEmptyTranscript(t *testing.T) {
	e, _ := newTestEngine(t, ModeKeyword, nil)
	s := NewSession("s1")
	e.Open(s, regular)
	e.Open(s, nil)
	if s.Len() != 1 {
		t.Fatalf("second open appended turns: %d", s.Len())
	}
	if s.State().CollectingVisitorName {
		t.Fatal("second open changed state")
	}
}

func TestBlankUtteranceIsIgnored(t *testing.T) {
	e, _ := newTestEngine(t, ModeKeyword, nil)
	s := NewSession("s1")
	e.Open(s, nil)
	before := s.Snapshot()

	e.SubmitUtterance(context.Background(), s, nil, "   \t ")
	e.SubmitOption(context.Background(), s, nil, "")
	s.Wait()

	after := s.Snapshot()
	if len(after.Turns) != len(before.Turns) || after.Revision != before.Revision {
		t.Fatal("blank input changed the transcript")
	}
	if !after.State.CollectingVisitorName {
		t.Fatal("blank input consumed name collection")
	}
}

func TestPackagesCardList(t *testing.T) {
	e, _ := newTestEngine(t, ModeKeyword, nil)
	s := NewSession("s1")
	e.Open(s, regular)

	e.SubmitUtterance(context.Background(), s, regular, "paquetes")
	s.Wait()

	turn := lastTurn(t, s)
	if turn.Presentation != PresentationCards {
		t.Fatalf("presentation = %q", turn.Presentation)
	}
	if len(turn.Cards) != len(catalog.Seed()) {
		t.Fatalf("got %d cards, want %d", len(turn.Cards), len(catalog.Seed()))
	}
	for _, c := range turn.Cards {
		if !strings.HasSuffix(c.Price, "COP") {
			t.Errorf("card %q price %q does not end in COP", c.Title, c.Price)
		}
		if c.PackageID == 0 {
			t.Errorf("card %q has no package id", c.Title)
		}
		if !strings.HasSuffix(c.Description, "...") {
			t.Errorf("card %q description not truncated: %q", c.Title, c.Description)
		}
		if n := len([]rune(strings.TrimSuffix(c.Description, "..."))); n > cardDescriptionLimit {
			t.Errorf("card %q description has %d runes", c.Title, n)
		}
	}
}

func TestClassificationIsCaseInsensitive(t *testing.T) {
	e, _ := newTestEngine(t, ModeKeyword, nil)
	for _, text := range []string{"Destinos", "destinos", "DESTINOS"} {
		s := NewSession(text)
		e.SubmitUtterance(context.Background(), s, nil, text)
		s.Wait()
		turn := lastTurn(t, s)
		if turn.Presentation != PresentationCards || len(turn.Cards) != 3 {
			t.Errorf("%q: got %q with %d cards", text, turn.Presentation, len(turn.Cards))
		}
		for _, c := range turn.Cards {
			if c.PackageID != 0 || c.Price != "" {
				t.Errorf("%q: destination card %q looks like a package", text, c.Title)
			}
		}
	}
}

func TestPurchaseFlowForRegularUser(t *testing.T) {
	e, _ := newTestEngine(t, ModeKeyword, nil)
	s := NewSession("s1")
	ctx := context.Background()
	e.Open(s, regular)

	e.SelectPackage(ctx, s, regular, 2)
	// Flags flip before the delayed summary arrives.
	st := s.State()
	if !st.PurchaseInProgress || st.SelectedPackageID == nil || *st.SelectedPackageID != 2 {
		t.Fatalf("state after select = %+v", st)
	}
	s.Wait()

	snap := s.Snapshot()
	if len(snap.Turns) != 3 {
		t.Fatalf("got %d turns, want 3", len(snap.Turns))
	}
	interest, summary := snap.Turns[1], snap.Turns[2]
	if interest.Sender != SenderVisitor || !strings.Contains(interest.Text, "Ruta Cafetera") {
		t.Fatalf("interest turn = %+v", interest)
	}
	for _, want := range []string{"Ruta Cafetera", "5 days", "Desayunos", "COP"} {
		if !strings.Contains(summary.Text, want) {
			t.Errorf("summary missing %q: %q", want, summary.Text)
		}
	}

	e.SubmitUtterance(ctx, s, regular, "4")
	st = s.State()
	if st.PurchaseInProgress || st.SelectedPackageID != nil {
		t.Fatalf("state after party size = %+v", st)
	}
	s.Wait()

	confirm := lastTurn(t, s)
	if !strings.Contains(confirm.Text, "Ruta Cafetera") || !strings.Contains(confirm.Text, "4") {
		t.Fatalf("confirmation = %q", confirm.Text)
	}
	if !equalStrings(confirm.Options, []string{"See more packages", "Travel information", "No thanks"}) {
		t.Fatalf("confirmation options = %v", confirm.Options)
	}
}

func TestPartySizeIsEchoedVerbatim(t *testing.T) {
	e, _ := newTestEngine(t, ModeKeyword, nil)
	s := NewSession("s1")
	ctx := context.Background()
	e.SelectPackage(ctx, s, regular, 1)
	e.SubmitUtterance(ctx, s, regular, "paquetes para muchos")
	s.Wait()

	confirm := lastTurn(t, s)
	if !strings.Contains(confirm.Text, "paquetes para muchos") {
		t.Fatalf("party text not echoed: %q", confirm.Text)
	}
	if confirm.Presentation == PresentationCards {
		t.Fatal("party-size answer must not be classified")
	}
}

func TestSelectPackageRequiresRegularUser(t *testing.T) {
	e, script := newTestEngine(t, ModeKeyword, nil)
	for _, user := range []*identity.User{nil, admin} {
		s := NewSession("s1")
		e.SelectPackage(context.Background(), s, user, 1)
		s.Wait()

		if s.State().PurchaseInProgress {
			t.Errorf("role %s started a purchase", identity.RoleOf(user))
		}
		turn := lastTurn(t, s)
		if turn.Text != script.Texts.SignInRequired {
			t.Errorf("role %s got %q", identity.RoleOf(user), turn.Text)
		}
		if !equalStrings(turn.Options, []string{"Go to sign-in", "No thanks"}) {
			t.Errorf("role %s options = %v", identity.RoleOf(user), turn.Options)
		}
	}
}

func TestSelectUnknownPackageIsIgnored(t *testing.T) {
	e, _ := newTestEngine(t, ModeKeyword, nil)
	s := NewSession("s1")
	e.SelectPackage(context.Background(), s, regular, 99)
	s.Wait()
	if s.Len() != 0 || s.State().PurchaseInProgress {
		t.Fatal("unknown package changed the session")
	}
}

func TestPurchaseIntentByRole(t *testing.T) {
	e, script := newTestEngine(t, ModeKeyword, nil)

	s := NewSession("regular")
	e.SubmitUtterance(context.Background(), s, regular, "quiero comprar")
	s.Wait()
	turn := lastTurn(t, s)
	if turn.Presentation != PresentationCards || len(turn.Cards) != len(catalog.Seed()) {
		t.Fatalf("regular purchase intent = %q with %d cards", turn.Presentation, len(turn.Cards))
	}
	if !strings.Contains(turn.Cards[0].Description, "days") {
		t.Fatalf("purchase card description = %q", turn.Cards[0].Description)
	}

	s = NewSession("anon")
	e.SubmitUtterance(context.Background(), s, nil, "quiero comprar")
	s.Wait()
	if got := lastTurn(t, s).Text; got != script.Texts.SignInRequired {
		t.Fatalf("anonymous purchase intent = %q", got)
	}
}

func TestSignInOptionNavigates(t *testing.T) {
	e, _ := newTestEngine(t, ModeKeyword, nil)
	s := NewSession("s1")
	out := e.SubmitOption(context.Background(), s, nil, "Go to sign-in")
	s.Wait()
	if out.Navigate != "/login" {
		t.Fatalf("navigate = %q", out.Navigate)
	}
	if s.Len() != 0 {
		t.Fatalf("sign-in option produced %d turns", s.Len())
	}
}

func TestOptionSkipsNameCollection(t *testing.T) {
	e, _ := newTestEngine(t, ModeKeyword, nil)
	s := NewSession("s1")
	e.Open(s, nil)
	e.SubmitOption(context.Background(), s, nil, "Popular destinations")
	s.Wait()

	if got := lastTurn(t, s); got.Presentation != PresentationCards {
		t.Fatalf("option was not classified: %q", got.Presentation)
	}
	if !s.State().CollectingVisitorName {
		t.Fatal("option consumed name collection")
	}
}

func TestAdminConfidentialQuestionIsDelegated(t *testing.T) {
	rec := &recordingAnswerer{text: "Margins range from 35% to 40%."}
	e, _ := newTestEngine(t, ModeKeyword, rec)
	s := NewSession("s1")
	e.SubmitUtterance(context.Background(), s, admin, "¿cuál es el margen de ganancia?")
	s.Wait()

	reqs := rec.requests()
	if len(reqs) != 1 {
		t.Fatalf("generator called %d times", len(reqs))
	}
	if reqs[0].Role != identity.RoleAdmin || len(reqs[0].Catalog) != len(catalog.Seed()) {
		t.Fatalf("request = %+v", reqs[0])
	}
	turn := lastTurn(t, s)
	if turn.Text != rec.text || !turn.Generated || turn.Presentation != PresentationPlain {
		t.Fatalf("resolved turn = %+v", turn)
	}
	if s.State().AnswerPending {
		t.Fatal("answer still pending")
	}
}

func TestGeneratorSeesPrivateInfoOnlyForAdmins(t *testing.T) {
	for _, user := range []*identity.User{nil, regular, admin} {
		rec := &recordingAnswerer{text: "sunny"}
		e, _ := newTestEngine(t, ModeKeyword, rec)
		s := NewSession("s1")
		e.SubmitUtterance(context.Background(), s, user, "what is the weather like?")
		s.Wait()

		reqs := rec.requests()
		if len(reqs) != 1 || len(reqs[0].Catalog) != len(catalog.Seed()) {
			t.Fatalf("role %s: requests = %+v", identity.RoleOf(user), reqs)
		}
		for _, p := range reqs[0].Catalog {
			private := p.PrivateInfo != ""
			if private != (user == admin) {
				t.Errorf("role %s: package %d private info visible = %v", identity.RoleOf(user), p.ID, private)
			}
		}
	}
}

// gatedCatalog blocks List until released.
type gatedCatalog struct {
	sliceCatalog
	entered chan struct{}
	release chan struct{}
}

func (c *gatedCatalog) List(ctx context.Context) ([]catalog.Package, error) {
	close(c.entered)
	<-c.release
	return c.sliceCatalog.List(ctx)
}

func TestCatalogReadDoesNotBlockSessionReaders(t *testing.T) {
	cat := &gatedCatalog{
		sliceCatalog: sliceCatalog{pkgs: catalog.Seed()},
		entered:      make(chan struct{}),
		release:      make(chan struct{}),
	}
	e, err := NewEngine(Options{Catalog: cat, Answers: &recordingAnswerer{}})
	if err != nil {
		t.Fatal(err)
	}
	s := NewSession("s1")
	submitted := make(chan struct{})
	go func() {
		defer close(submitted)
		e.SubmitUtterance(context.Background(), s, regular, "paquetes")
	}()
	<-cat.entered

	read := make(chan Snapshot, 1)
	go func() { read <- s.Snapshot() }()
	select {
	case <-read:
	case <-time.After(2 * time.Second):
		close(cat.release)
		t.Fatal("snapshot blocked while the catalog was being read")
	}

	close(cat.release)
	<-submitted
	s.Wait()
	if got := lastTurn(t, s); got.Presentation != PresentationCards || len(got.Cards) != len(catalog.Seed()) {
		t.Fatalf("last turn = %+v", got)
	}
}

func TestAdminKeywordWithoutQuestionMark(t *testing.T) {
	rec := &recordingAnswerer{text: "cost breakdown"}
	e, _ := newTestEngine(t, ModeKeyword, rec)

	s := NewSession("admin")
	e.SubmitUtterance(context.Background(), s, admin, "costo de los paquetes")
	s.Wait()
	if len(rec.requests()) != 1 {
		t.Fatal("admin confidential keyword should delegate")
	}

	s = NewSession("regular")
	e.SubmitUtterance(context.Background(), s, regular, "costo de los paquetes")
	s.Wait()
	if got := lastTurn(t, s); got.Presentation != PresentationCards {
		t.Fatalf("regular user should get package cards, got %q", got.Presentation)
	}
	if len(rec.requests()) != 1 {
		t.Fatal("regular user should not reach the generator")
	}
}

func TestPendingPlaceholderResolvesInPlace(t *testing.T) {
	release := make(chan struct{})
	e, script := newTestEngine(t, ModeKeyword, answerFunc(func(ctx context.Context, req answer.Request) string {
		<-release
		return "answer to " + req.Query
	}))
	s := NewSession("s1")
	e.SubmitUtterance(context.Background(), s, nil, "what should I pack?")

	snap := s.Snapshot()
	if len(snap.Turns) != 2 {
		t.Fatalf("got %d turns, want visitor + placeholder", len(snap.Turns))
	}
	pending := snap.Turns[1]
	if pending.Presentation != PresentationPending || pending.Text != script.Texts.Thinking {
		t.Fatalf("placeholder = %+v", pending)
	}
	if pending.CorrelationID == "" || !snap.State.AnswerPending {
		t.Fatal("placeholder has no correlation id or state not pending")
	}

	close(release)
	s.Wait()

	snap = s.Snapshot()
	if len(snap.Turns) != 2 {
		t.Fatalf("resolution appended a turn: %d", len(snap.Turns))
	}
	resolved := snap.Turns[1]
	if resolved.ID != pending.ID || resolved.CorrelationID != pending.CorrelationID {
		t.Fatal("resolution changed turn identity")
	}
	if resolved.Text != "answer to what should I pack?" || resolved.Revision <= pending.Revision {
		t.Fatalf("resolved = %+v", resolved)
	}
	if snap.State.AnswerPending {
		t.Fatal("answer still pending")
	}
}

func TestInterleavedGenerationsResolveByCorrelation(t *testing.T) {
	gates := map[string]chan struct{}{
		"what is first?":  make(chan struct{}),
		"what is second?": make(chan struct{}),
	}
	e, _ := newTestEngine(t, ModeKeyword, answerFunc(func(ctx context.Context, req answer.Request) string {
		<-gates[req.Query]
		return "re: " + req.Query
	}))
	s := NewSession("s1")
	ctx := context.Background()
	e.SubmitUtterance(ctx, s, nil, "what is first?")
	e.SubmitUtterance(ctx, s, nil, "what is second?")

	// The second resolves first; the first must stay pending.
	close(gates["what is second?"])
	waitFor(t, s, func(snap Snapshot) bool { return snap.Turns[3].Presentation != PresentationPending })
	snap := s.Snapshot()
	if snap.Turns[1].Presentation != PresentationPending || !snap.State.AnswerPending {
		t.Fatal("first placeholder resolved early or pending flag cleared")
	}
	if snap.Turns[3].Text != "re: what is second?" {
		t.Fatalf("second turn = %q", snap.Turns[3].Text)
	}

	close(gates["what is first?"])
	s.Wait()
	snap = s.Snapshot()
	if snap.Turns[1].Text != "re: what is first?" || snap.State.AnswerPending {
		t.Fatalf("first turn = %q pending=%v", snap.Turns[1].Text, snap.State.AnswerPending)
	}
	if len(snap.Turns) != 4 {
		t.Fatalf("got %d turns", len(snap.Turns))
	}
}

func waitFor(t *testing.T, s *Session, cond func(Snapshot) bool) {
	t.Helper()
	for {
		ch := s.Changed()
		if cond(s.Snapshot()) {
			return
		}
		<-ch
	}
}

func TestGeneratorFirstDelegatesOptionsWithFollowUps(t *testing.T) {
	rec := &recordingAnswerer{text: "Visas are not required for most visitors."}
	e, _ := newTestEngine(t, ModeGeneratorFirst, rec)
	s := NewSession("s1")

	e.SubmitOption(context.Background(), s, nil, "Travel information")
	s.Wait()
	turn := lastTurn(t, s)
	if turn.Presentation != PresentationOptions {
		t.Fatalf("presentation = %q", turn.Presentation)
	}
	if !equalStrings(turn.Options, []string{"Popular destinations", "Tour packages", "Travel information"}) {
		t.Fatalf("default follow-ups = %v", turn.Options)
	}

	e.SubmitUtterance(context.Background(), s, nil, "I need a passport?")
	s.Wait()
	if got := lastTurn(t, s).Options; !equalStrings(got, []string{"Popular destinations", "Tour packages", "Talk to an agent"}) {
		t.Fatalf("document follow-ups = %v", got)
	}

	// Canned rules outside the narrow set are not used.
	e.SubmitUtterance(context.Background(), s, nil, "gracias")
	s.Wait()
	if len(rec.requests()) != 3 {
		t.Fatalf("generator called %d times, want 3", len(rec.requests()))
	}

	e.SubmitUtterance(context.Background(), s, nil, "show me packages?")
	s.Wait()
	if got := lastTurn(t, s); got.Presentation != PresentationCards {
		t.Fatalf("packages should stay scripted, got %q", got.Presentation)
	}
}

func TestCatalogFailureFallsBackToGenerator(t *testing.T) {
	rec := &recordingAnswerer{text: "fallback"}
	e, err := NewEngine(Options{
		Catalog: &sliceCatalog{err: errors.New("db down")},
		Answers: rec,
	})
	if err != nil {
		t.Fatal(err)
	}
	s := NewSession("s1")
	e.SubmitUtterance(context.Background(), s, regular, "paquetes")
	s.Wait()
	if got := lastTurn(t, s); got.Text != "fallback" {
		t.Fatalf("got %+v", got)
	}
}

func TestClosedSessionDropsDelayedTurns(t *testing.T) {
	e, err := NewEngine(Options{
		Catalog: &sliceCatalog{pkgs: catalog.Seed()},
		Answers: &recordingAnswerer{text: "late"},
		Delays:  Delays{Welcome: time.Hour, Reply: time.Hour, Confirm: time.Hour},
	})
	if err != nil {
		t.Fatal(err)
	}
	s := NewSession("s1")
	e.Open(s, nil)
	e.SubmitUtterance(context.Background(), s, nil, "Carlos")
	before := s.Len()
	s.Close()
	s.Wait()

	if s.Len() != before {
		t.Fatal("closed session received a delayed turn")
	}
	e.SubmitUtterance(context.Background(), s, nil, "hola")
	if s.Len() != before {
		t.Fatal("closed session accepted input")
	}
}

func TestTranscriptCountsEveryProducedTurn(t *testing.T) {
	e, _ := newTestEngine(t, ModeKeyword, nil)
	s := NewSession("s1")
	ctx := context.Background()
	inputs := []string{"hola", "destinos", "paquetes", "", "what is the weather like?", "gracias", "xyz"}
	visitor := 0
	for _, in := range inputs {
		e.SubmitUtterance(ctx, s, regular, in)
		if strings.TrimSpace(in) != "" {
			visitor++
		}
	}
	s.Wait()

	snap := s.Snapshot()
	var v, a int
	for _, turn := range snap.Turns {
		if turn.Sender == SenderVisitor {
			v++
		} else {
			a++
		}
	}
	if v != visitor || a != visitor {
		t.Fatalf("visitor=%d assistant=%d, want %d each", v, a, visitor)
	}
	if len(snap.Turns) != v+a {
		t.Fatal("transcript length mismatch")
	}
}
