package category

import (
	"sort"
	"strings"

	"dms/types"
)

// SuggestionFloor is the minimum confidence a detector needs before its
// category shows up in the result at all. A document matching nothing
// above the floor lands in FallbackCategory at exactly this confidence.
const SuggestionFloor = 0.1

// FallbackCategory is assigned when no detector produces a usable
// signal.
const FallbackCategory = "Allgemein"

const maxSuggestions = 3

// Detector recognizes one document category. Match returns a
// confidence in [0,1] for the lowercased text; Extract pulls
// category-specific entities out of the original text.
type Detector interface {
	Name() string
	Match(lower string) float64
	Extract(text string) map[string]string
}

// Engine runs an ordered list of detectors over document text. The
// order is significant: on equal confidence the earlier detector wins.
// The engine holds no state between calls and performs no I/O.
type Engine struct {
	detectors []Detector
}

// NewEngine returns an engine with the built-in detectors in their
// documented order: invoice, bank statement, contract.
func NewEngine() *Engine {
	return &Engine{detectors: []Detector{
		newInvoiceDetector(),
		newBankStatementDetector(),
		newContractDetector(),
	}}
}

// Categorize scores the text against every detector and picks the
// strongest as primary. Detectors at or above SuggestionFloor, other
// than the primary, become suggestions sorted by descending confidence
// (top three). Without any detector above the floor the document is
// filed under FallbackCategory.
func (e *Engine) Categorize(text string) types.CategoryResult {
	lower := strings.ToLower(text)

	type scored struct {
		det  Detector
		conf float64
	}
	all := make([]scored, 0, len(e.detectors))
	for _, d := range e.detectors {
		all = append(all, scored{det: d, conf: d.Match(lower)})
	}

	best := -1
	for i, s := range all {
		if s.conf < SuggestionFloor {
			continue
		}
		if best == -1 || s.conf > all[best].conf {
			best = i
		}
	}

	if best == -1 {
		return types.CategoryResult{
			PrimaryCategory: FallbackCategory,
			Confidence:      SuggestionFloor,
			Entities:        map[string]string{},
		}
	}

	primary := all[best]

	suggestions := make([]types.SuggestedCategory, 0, len(all)-1)
	for i, s := range all {
		if i == best || s.conf < SuggestionFloor {
			continue
		}
		suggestions = append(suggestions, types.SuggestedCategory{
			Category:   s.det.Name(),
			Confidence: s.conf,
		})
	}
	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].Confidence > suggestions[j].Confidence
	})
	if len(suggestions) > maxSuggestions {
		suggestions = suggestions[:maxSuggestions]
	}

	return types.CategoryResult{
		PrimaryCategory: primary.det.Name(),
		Confidence:      primary.conf,
		Entities:        primary.det.Extract(text),
		Suggestions:     suggestions,
	}
}

// Confidence scores the text against a single named category, 0 for an
// unknown category name. Used when a caller overrides the automatic
// category and still wants to know how well the text fits.
func (e *Engine) Confidence(text, categoryName string) float64 {
	lower := strings.ToLower(text)
	for _, d := range e.detectors {
		if d.Name() == categoryName {
			return d.Match(lower)
		}
	}
	return 0
}

// Categories lists the detector names in declaration order.
func (e *Engine) Categories() []string {
	names := make([]string, len(e.detectors))
	for i, d := range e.detectors {
		names[i] = d.Name()
	}
	return names
}
