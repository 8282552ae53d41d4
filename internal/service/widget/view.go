package widget

import "github.com/zhouzirui/support-widget/backend/internal/model/widget"

// ViewController tracks the active widget view. Every view navigates back to the menu.
type ViewController struct {
	current widget.View
}

// NewViewController starts on the menu.
func NewViewController() *ViewController {
	return &ViewController{current: widget.ViewMenu}
}

// Current returns the active view.
func (c *ViewController) Current() widget.View {
	return c.current
}

// Goto activates v and returns the view it replaced.
func (c *ViewController) Goto(v widget.View) widget.View {
	prev := c.current
	c.current = v
	return prev
}

// Back returns to the menu and reports the view that was left.
func (c *ViewController) Back() widget.View {
	return c.Goto(widget.ViewMenu)
}
