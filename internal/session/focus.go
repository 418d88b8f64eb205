package session

// Signal is one window activity event reported by the presentation layer.
type Signal string

const (
	SignalFocus   Signal = "focus"
	SignalBlur    Signal = "blur"
	SignalVisible Signal = "visible"
	SignalHidden  Signal = "hidden"
)

func (s Signal) active() bool {
	return s == SignalFocus || s == SignalVisible
}

// FocusTracker folds focus, blur and visibility signals into one flag.
// The last signal wins; there is no debouncing.
type FocusTracker struct {
	active bool
}

func NewFocusTracker(active bool) *FocusTracker {
	return &FocusTracker{active: active}
}

// Apply records sig and reports whether it turned the window active.
func (f *FocusTracker) Apply(sig Signal) (activated bool) {
	was := f.active
	f.active = sig.active()
	return !was && f.active
}

func (f *FocusTracker) Active() bool {
	return f.active
}
