package dialogue

type Sender string

const (
	SenderAssistant Sender = "assistant"
	SenderVisitor   Sender = "visitor"
)

type Presentation string

const (
	PresentationPlain   Presentation = "plain"
	PresentationOptions Presentation = "option-list"
	PresentationCards   Presentation = "card-list"
	PresentationPending Presentation = "pending-answer"
)

// Card is a selectable summary of a package or destination. PackageID is
// zero for cards that cannot be booked.
type Card struct {
	Title       string `json:"title"`
	ImageRef    string `json:"imageRef"`
	Description string `json:"description"`
	Price       string `json:"price,omitempty"`
	PackageID   int    `json:"packageId,omitempty"`
}

// Turn is one transcript entry. Turns never change after they are appended,
// except pending answers, which are resolved in place exactly once.
type Turn struct {
	ID           int          `json:"id"`
	Text         string       `json:"text"`
	Sender       Sender       `json:"sender"`
	Presentation Presentation `json:"presentation"`
	Options      []string     `json:"options,omitempty"`
	Cards        []Card       `json:"cards,omitempty"`
	Generated    bool         `json:"isGenerated"`
	// CorrelationID links a pending answer to its generation request.
	CorrelationID string `json:"correlationId,omitempty"`
	// Revision is the session revision at which the turn last changed.
	Revision int64 `json:"revision"`
}

func visitorTurn(text string) Turn {
	return Turn{Text: text, Sender: SenderVisitor, Presentation: PresentationPlain}
}

func assistantText(text string) Turn {
	return Turn{Text: text, Sender: SenderAssistant, Presentation: PresentationPlain}
}

func assistantOptions(text string, options []string) Turn {
	if len(options) == 0 {
		return assistantText(text)
	}
	return Turn{Text: text, Sender: SenderAssistant, Presentation: PresentationOptions, Options: cloneStrings(options)}
}

func assistantCards(text string, cards []Card) Turn {
	return Turn{Text: text, Sender: SenderAssistant, Presentation: PresentationCards, Cards: cards}
}

// State is the small set of conversation-mode flags.
type State struct {
	CollectingVisitorName bool `json:"collectingVisitorName"`
	PurchaseInProgress    bool `json:"purchaseInProgress"`
	// SelectedPackageID is nil when no purchase is in progress.
	SelectedPackageID *int `json:"selectedPackageId"`
	AnswerPending     bool `json:"answerPending"`
}
