package widget

import (
	"iter"
	"strings"

	"github.com/zhouzirui/support-widget/backend/internal/model/widget"
)

// FaqIndex serves substring search over a fixed FAQ catalog.
type FaqIndex struct {
	entries []widget.FaqEntry
}

// NewFaqIndex copies entries into a read-only index.
func NewFaqIndex(entries []widget.FaqEntry) *FaqIndex {
	return &FaqIndex{entries: append([]widget.FaqEntry(nil), entries...)}
}

// Len returns the catalog size.
func (x *FaqIndex) Len() int {
	return len(x.entries)
}

// Search yields catalog entries whose question or answer contains term,
// ignoring case, in catalog order. An empty term yields the whole catalog.
// The returned sequence may be ranged over any number of times.
func (x *FaqIndex) Search(term string) iter.Seq[widget.FaqEntry] {
	needle := strings.ToLower(term)
	return func(yield func(widget.FaqEntry) bool) {
		for _, entry := range x.entries {
			if !matches(entry, needle) {
				continue
			}
			if !yield(entry) {
				return
			}
		}
	}
}

func matches(entry widget.FaqEntry, needle string) bool {
	if needle == "" {
		return true
	}
	return strings.Contains(strings.ToLower(entry.Question), needle) ||
		strings.Contains(strings.ToLower(entry.Answer), needle)
}
