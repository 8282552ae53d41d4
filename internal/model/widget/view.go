package widget

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownView is returned when a view tag does not name a widget view.
var ErrUnknownView = errors.New("unknown view")

// View tags the single active surface of an open widget.
type View string

const (
	ViewMenu     View = "menu"
	ViewChat     View = "chat"
	ViewFAQ      View = "faq"
	ViewCallback View = "callback"
)

// Valid reports whether v is one of the four widget views.
func (v View) Valid() bool {
	switch v {
	case ViewMenu, ViewChat, ViewFAQ, ViewCallback:
		return true
	}
	return false
}

// ParseView converts a client supplied tag into a View.
func ParseView(raw string) (View, error) {
	v := View(strings.ToLower(strings.TrimSpace(raw)))
	if !v.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownView, raw)
	}
	return v, nil
}

// ErrUnknownMenuItem is returned for menu selections the widget does not offer.
var ErrUnknownMenuItem = errors.New("unknown menu item")

// MenuItem identifies an entry of the widget's landing menu.
type MenuItem string

const (
	MenuAskQuestion          MenuItem = "ask_question"
	MenuSearchFAQ            MenuItem = "search_faq"
	MenuScheduleConsultation MenuItem = "schedule_consultation"
)

// ParseMenuItem converts a client supplied menu item.
func ParseMenuItem(raw string) (MenuItem, error) {
	item := MenuItem(strings.ToLower(strings.TrimSpace(raw)))
	switch item {
	case MenuAskQuestion, MenuSearchFAQ, MenuScheduleConsultation:
		return item, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMenuItem, raw)
}
