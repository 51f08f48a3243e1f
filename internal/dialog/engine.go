// Package dialog implements the chat dialog: a per-user state machine over a
// SessionStore that drives parsing, re-pricing, watch registration and the
// top-10 query.
package dialog

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strconv"
	"strings"

	"github.com/2haed/cs-market/internal/config"
	"github.com/2haed/cs-market/internal/database"
	"github.com/2haed/cs-market/internal/models"
	"github.com/2haed/cs-market/internal/pipeline"
	"github.com/2haed/cs-market/internal/services/adjuster"
)

// Chat commands. Plain text outside a dialog step shows the menu.
const (
	CmdStart  = "/start"
	CmdCancel = "/cancel"
	CmdParse  = "/parse"
	CmdTop    = "/top"
	CmdAdjust = "/adjust"
	CmdWatch  = "/watch"

	inputSkip = "."
	inputDone = "done"
)

type Parser interface {
	ParseItems(ctx context.Context, itemType string) (*pipeline.RunReport, error)
}

type PriceAdjuster interface {
	Adjust(ctx context.Context) ([]adjuster.Outcome, error)
}

type Ranking interface {
	TopRated(ctx context.Context, f database.TopFilter) ([]models.RankedItem, error)
	WatchItems(ctx context.Context, userID int64, query string) ([]string, bool, error)
}

// Reply is the answer to one user message. Error is set when an operation
// failed, as opposed to succeeding with no data.
type Reply struct {
	Text    string              `json:"text"`
	Options []string            `json:"options,omitempty"`
	Items   []models.RankedItem `json:"items,omitempty"`
	Error   string              `json:"error,omitempty"`
}

type Deps struct {
	Sessions SessionStore
	Catalog  *config.Catalog
	Parser   Parser
	Adjuster PriceAdjuster
	Ranking  Ranking
}

type Engine struct {
	deps Deps
}

func NewEngine(deps Deps) *Engine {
	if deps.Catalog == nil {
		deps.Catalog = config.DefaultCatalog()
	}
	return &Engine{deps: deps}
}

var typeOptions = []string{config.TypeKnife, config.TypeGlove, config.TypeBoth}

// Handle processes one message from userID.
func (e *Engine) Handle(ctx context.Context, userID int64, input string) (Reply, error) {
	text := strings.TrimSpace(input)
	cmd, arg := splitCommand(text)

	switch cmd {
	case CmdStart, CmdCancel:
		if err := e.deps.Sessions.Delete(ctx, userID); err != nil {
			return Reply{}, err
		}
		return menu(), nil
	case CmdParse:
		if arg == "" {
			return Reply{Text: "Choose the item type to parse:", Options: prefixed(CmdParse, typeOptions)}, nil
		}
		return e.parse(ctx, strings.ToLower(arg)), nil
	case CmdAdjust:
		return e.adjust(ctx), nil
	case CmdTop:
		s := &Session{UserID: userID, Step: StepChooseType}
		if err := e.deps.Sessions.Save(ctx, s); err != nil {
			return Reply{}, err
		}
		return Reply{Text: "Choose the item type for the top 10:", Options: typeOptions}, nil
	case CmdWatch:
		if arg != "" {
			return e.watch(ctx, userID, arg), nil
		}
		if err := e.deps.Sessions.Save(ctx, &Session{UserID: userID, Step: StepWatch}); err != nil {
			return Reply{}, err
		}
		return Reply{Text: "Enter part of the item name to watch, several names separated by commas:"}, nil
	}

	s, err := e.deps.Sessions.Get(ctx, userID)
	if err != nil {
		return Reply{}, err
	}
	if s == nil {
		return menu(), nil
	}

	switch s.Step {
	case StepChooseType:
		return e.chooseType(ctx, s, strings.ToLower(text))
	case StepSubtypes:
		return e.toggleSubtype(ctx, s, strings.ToLower(text))
	case StepMinPrice:
		return e.minPrice(ctx, s, text)
	case StepMaxPrice:
		return e.maxPrice(ctx, s, text)
	case StepWatch:
		if err := e.deps.Sessions.Delete(ctx, userID); err != nil {
			return Reply{}, err
		}
		return e.watch(ctx, userID, text), nil
	default:
		if err := e.deps.Sessions.Delete(ctx, userID); err != nil {
			return Reply{}, err
		}
		return menu(), nil
	}
}

func (e *Engine) chooseType(ctx context.Context, s *Session, itemType string) (Reply, error) {
	if !config.ValidItemType(itemType) {
		return Reply{Text: "Unknown item type, choose knife, glove or both:", Options: typeOptions}, nil
	}
	s.ItemType = itemType
	if itemType == config.TypeBoth {
		s.Step = StepMinPrice
		if err := e.deps.Sessions.Save(ctx, s); err != nil {
			return Reply{}, err
		}
		return Reply{Text: "Selected type: both\n" + minPricePrompt}, nil
	}

	s.Step = StepSubtypes
	s.Subtypes = nil
	if err := e.deps.Sessions.Save(ctx, s); err != nil {
		return Reply{}, err
	}
	return e.subtypeReply(s, "Selected type: "+itemType+"\nSelect one or more subtypes, send done to continue:"), nil
}

func (e *Engine) toggleSubtype(ctx context.Context, s *Session, input string) (Reply, error) {
	if input == inputDone {
		s.Step = StepMinPrice
		if err := e.deps.Sessions.Save(ctx, s); err != nil {
			return Reply{}, err
		}
		return Reply{Text: minPricePrompt}, nil
	}

	options := e.deps.Catalog.Subtypes(s.ItemType)
	choice := ""
	if n, err := strconv.Atoi(input); err == nil && n >= 1 && n <= len(options) {
		choice = options[n-1]
	} else {
		for _, o := range options {
			if o == input {
				choice = o
				break
			}
		}
	}
	if choice == "" {
		return e.subtypeReply(s, "Unknown subtype, pick one from the list or send done:"), nil
	}

	if i := indexOf(s.Subtypes, choice); i >= 0 {
		s.Subtypes = append(s.Subtypes[:i], s.Subtypes[i+1:]...)
	} else {
		s.Subtypes = append(s.Subtypes, choice)
	}
	if err := e.deps.Sessions.Save(ctx, s); err != nil {
		return Reply{}, err
	}
	return e.subtypeReply(s, "Selected: "+selectedList(s.Subtypes)), nil
}

const (
	minPricePrompt = "Enter the minimum price or send . to skip."
	maxPricePrompt = "Enter the maximum price or send . to skip."
)

func (e *Engine) minPrice(ctx context.Context, s *Session, input string) (Reply, error) {
	v, ok := parsePrice(input)
	if !ok {
		return Reply{Text: "Please enter a number or . to skip the minimum price."}, nil
	}
	s.PriceMin = v
	s.Step = StepMaxPrice
	if err := e.deps.Sessions.Save(ctx, s); err != nil {
		return Reply{}, err
	}
	return Reply{Text: maxPricePrompt}, nil
}

func (e *Engine) maxPrice(ctx context.Context, s *Session, input string) (Reply, error) {
	v, ok := parsePrice(input)
	if !ok {
		return Reply{Text: "Please enter a number or . to skip the maximum price."}, nil
	}
	s.PriceMax = v
	if err := e.deps.Sessions.Delete(ctx, s.UserID); err != nil {
		return Reply{}, err
	}

	rows, err := e.deps.Ranking.TopRated(ctx, database.TopFilter{
		PriceMin: s.PriceMin,
		PriceMax: s.PriceMax,
		ItemType: s.ItemType,
		Subtypes: s.Subtypes,
	})
	if err != nil {
		log.Printf("[Dialog] top rated for user %d failed: %v", s.UserID, err)
		return Reply{Text: "Failed to load the top 10, try again later.", Error: err.Error()}, nil
	}
	if len(rows) == 0 {
		return Reply{Text: "No data for the selected parameters.", Items: []models.RankedItem{}}, nil
	}
	return Reply{Text: FormatTop(s.ItemType, rows), Items: rows}, nil
}

func (e *Engine) parse(ctx context.Context, itemType string) Reply {
	report, err := e.deps.Parser.ParseItems(ctx, itemType)
	switch {
	case errors.Is(err, config.ErrInvalidItemType):
		return Reply{Text: "Invalid item type, expected knife, glove or both.", Options: prefixed(CmdParse, typeOptions), Error: err.Error()}
	case errors.Is(err, pipeline.ErrRunInProgress):
		return Reply{Text: "A parsing run is already in progress, try again later.", Error: err.Error()}
	case err != nil:
		return Reply{Text: fmt.Sprintf("Parsing %s failed.", itemType), Error: err.Error()}
	}
	return Reply{Text: "Parsing result for " + itemType + ":\n" + report.String()}
}

func (e *Engine) adjust(ctx context.Context) Reply {
	outcomes, err := e.deps.Adjuster.Adjust(ctx)
	if errors.Is(err, adjuster.ErrNothingToAdjust) {
		return Reply{Text: "Nothing to adjust."}
	}
	if err != nil {
		return Reply{Text: "Price update failed.", Error: err.Error()}
	}
	return Reply{Text: FormatOutcomes(outcomes)}
}

func (e *Engine) watch(ctx context.Context, userID int64, query string) Reply {
	added, found, err := e.deps.Ranking.WatchItems(ctx, userID, query)
	if err != nil {
		log.Printf("[Dialog] watch for user %d failed: %v", userID, err)
		return Reply{Text: "Failed to save watched items.", Error: err.Error()}
	}
	if !found {
		return Reply{Text: "No items found for your query."}
	}
	if len(added) == 0 {
		return Reply{Text: "All matching items are already watched."}
	}
	return Reply{Text: "Added to watched items:\n\n" + strings.Join(added, "\n")}
}

func (e *Engine) subtypeReply(s *Session, text string) Reply {
	options := e.deps.Catalog.Subtypes(s.ItemType)
	marked := make([]string, 0, len(options)+1)
	for i, o := range options {
		mark := "[ ]"
		if indexOf(s.Subtypes, o) >= 0 {
			mark = "[x]"
		}
		marked = append(marked, fmt.Sprintf("%d. %s %s", i+1, mark, o))
	}
	marked = append(marked, inputDone)
	return Reply{Text: text, Options: marked}
}

func menu() Reply {
	return Reply{
		Text:    "Choose an action:",
		Options: []string{CmdParse, CmdTop, CmdAdjust, CmdWatch},
	}
}

// parsePrice accepts "." as "no bound" and a comma as decimal separator.
func parsePrice(input string) (*float64, bool) {
	input = strings.TrimSpace(input)
	if input == inputSkip {
		return nil, true
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(input, ",", "."), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, false
	}
	return &v, true
}

func splitCommand(text string) (string, string) {
	if !strings.HasPrefix(text, "/") {
		return "", ""
	}
	cmd, arg, _ := strings.Cut(text, " ")
	return strings.ToLower(cmd), strings.TrimSpace(arg)
}

func prefixed(prefix string, options []string) []string {
	out := make([]string, len(options))
	for i, o := range options {
		out[i] = prefix + " " + o
	}
	return out
}

func selectedList(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}

func indexOf(items []string, v string) int {
	for i, it := range items {
		if it == v {
			return i
		}
	}
	return -1
}
