package options

// Key is a navigation key understood by Listbox.
type Key string

const (
	KeyDown   Key = "ArrowDown"
	KeyUp     Key = "ArrowUp"
	KeyHome   Key = "Home"
	KeyEnd    Key = "End"
	KeyEnter  Key = "Enter"
	KeyEscape Key = "Escape"
)

// NoFocus marks a listbox with no focused option.
const NoFocus = -1

// Listbox is the keyboard state of an option list. It is a value: every
// transition returns a new Listbox and never touches rendering.
type Listbox struct {
	Open    bool
	Focused int
	Count   int
}

// NewListbox returns a closed listbox over count options.
func NewListbox(count int) Listbox {
	if count < 0 {
		count = 0
	}
	return Listbox{Focused: NoFocus, Count: count}
}

// Press applies key and returns the next state plus the selected index, or
// NoFocus when nothing was selected. Arrow keys open a closed list and clamp
// at the ends; Enter selects the focused option and closes; Escape closes
// without selecting.
func (l Listbox) Press(key Key) (Listbox, int) {
	switch key {
	case KeyEscape:
		return l.closed(), NoFocus
	case KeyEnter:
		if !l.Open || l.Focused == NoFocus {
			return l, NoFocus
		}
		return l.closed(), l.Focused
	}

	if l.Count == 0 {
		return l, NoFocus
	}
	next := l
	next.Open = true
	switch key {
	case KeyDown:
		if l.Focused == NoFocus {
			next.Focused = 0
		} else {
			next.Focused = min(l.Focused+1, l.Count-1)
		}
	case KeyUp:
		if l.Focused == NoFocus {
			next.Focused = l.Count - 1
		} else {
			next.Focused = max(l.Focused-1, 0)
		}
	case KeyHome:
		next.Focused = 0
	case KeyEnd:
		next.Focused = l.Count - 1
	default:
		return l, NoFocus
	}
	return next, NoFocus
}

// Resize keeps the focus valid after the option list changes, e.g. when a
// new search narrows the results.
func (l Listbox) Resize(count int) Listbox {
	if count < 0 {
		count = 0
	}
	l.Count = count
	switch {
	case count == 0:
		l.Focused = NoFocus
	case l.Focused >= count:
		l.Focused = count - 1
	}
	return l
}

func (l Listbox) closed() Listbox {
	l.Open = false
	l.Focused = NoFocus
	return l
}
