package options

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestListbox_Navigation(t *testing.T) {
	type step struct {
		key      Key
		want     Listbox
		selected int
	}
	steps := []step{
		{KeyUp, Listbox{Open: true, Focused: 2, Count: 3}, NoFocus},
		{KeyDown, Listbox{Open: true, Focused: 2, Count: 3}, NoFocus},
		{KeyHome, Listbox{Open: true, Focused: 0, Count: 3}, NoFocus},
		{KeyUp, Listbox{Open: true, Focused: 0, Count: 3}, NoFocus},
		{KeyDown, Listbox{Open: true, Focused: 1, Count: 3}, NoFocus},
		{KeyEnter, Listbox{Focused: NoFocus, Count: 3}, 1},
		{KeyEnter, Listbox{Focused: NoFocus, Count: 3}, NoFocus},
		{KeyEnd, Listbox{Open: true, Focused: 2, Count: 3}, NoFocus},
		{KeyEscape, Listbox{Focused: NoFocus, Count: 3}, NoFocus},
		{Key("Tab"), Listbox{Focused: NoFocus, Count: 3}, NoFocus},
	}

	lb := NewListbox(3)
	for i, s := range steps {
		var selected int
		lb, selected = lb.Press(s.key)
		if diff := cmp.Diff(s.want, lb); diff != "" {
			t.Fatalf("step %d (%s): state mismatch (-want +got):\n%s", i, s.key, diff)
		}
		if selected != s.selected {
			t.Fatalf("step %d (%s): selected %d, want %d", i, s.key, selected, s.selected)
		}
	}
}

func TestListbox_EmptyStaysClosed(t *testing.T) {
	lb := NewListbox(0)
	for _, key := range []Key{KeyDown, KeyUp, KeyHome, KeyEnd, KeyEnter} {
		next, selected := lb.Press(key)
		if next.Open || next.Focused != NoFocus || selected != NoFocus {
			t.Fatalf("%s on empty listbox: %+v selected %d", key, next, selected)
		}
	}
}

func TestListbox_Resize(t *testing.T) {
	lb := Listbox{Open: true, Focused: 4, Count: 5}
	if got := lb.Resize(2); got.Focused != 1 || got.Count != 2 {
		t.Fatalf("Resize(2) = %+v", got)
	}
	if got := lb.Resize(0); got.Focused != NoFocus {
		t.Fatalf("Resize(0) = %+v", got)
	}
	if got := lb.Resize(10); got.Focused != 4 {
		t.Fatalf("Resize(10) should keep focus, got %+v", got)
	}
}
