package tui

import tea "github.com/charmbracelet/bubbletea"

// Modal is a self-contained overlay that owns its own update/view cycle.
// Only the topmost modal on a page's stack receives input.
type Modal interface {
	ID() string
	// Update processes a message. Return pop=true to close the modal.
	Update(msg tea.Msg) (pop bool, cmd tea.Cmd)
	View(width, height int) string
}

// modalStack is a LIFO stack of open modals, shared by any page that wants
// overlay behavior (help, severity filter, ...).
type modalStack struct {
	stack []Modal
}

func (s *modalStack) push(m Modal) { s.stack = append(s.stack, m) }

func (s *modalStack) pop() {
	if len(s.stack) > 0 {
		s.stack = s.stack[:len(s.stack)-1]
	}
}

func (s *modalStack) top() Modal {
	if len(s.stack) == 0 {
		return nil
	}
	return s.stack[len(s.stack)-1]
}

func (s *modalStack) active() bool { return len(s.stack) > 0 }

// update delivers msg to the topmost modal, popping it if it signals done.
func (s *modalStack) update(msg tea.Msg) tea.Cmd {
	top := s.top()
	if top == nil {
		return nil
	}
	pop, cmd := top.Update(msg)
	if pop {
		s.pop()
	}
	return cmd
}
