package cursor

// window is a fixed-capacity FIFO of strings with O(1) membership checks.
// When full, adding a new entry evicts the oldest. Entries are unique;
// re-adding an existing entry is a no-op and does not refresh its age.
type window struct {
	buf   []string
	index map[string]struct{}
	head  int // next write position
	size  int
}

func newWindow(capacity int) *window {
	if capacity < 1 {
		capacity = 1
	}
	return &window{
		buf:   make([]string, capacity),
		index: map[string]struct{}{},
	}
}

func (w *window) Contains(s string) bool {
	_, ok := w.index[s]
	return ok
}

func (w *window) Add(s string) {
	if s == "" || w.Contains(s) {
		return
	}
	if w.size == len(w.buf) {
		delete(w.index, w.buf[w.head])
	} else {
		w.size++
	}
	w.buf[w.head] = s
	w.index[s] = struct{}{}
	w.head = (w.head + 1) % len(w.buf)
}

// Items returns the window contents oldest-first.
func (w *window) Items() []string {
	out := make([]string, 0, w.size)
	start := w.head - w.size
	for i := 0; i < w.size; i++ {
		out = append(out, w.buf[((start+i)%len(w.buf)+len(w.buf))%len(w.buf)])
	}
	return out
}

func (w *window) Len() int { return w.size }
