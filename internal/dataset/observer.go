package dataset

// Copied describes one completed file copy.
type Copied struct {
	Row   Row
	Dest  string
	Bytes int64
	// Done counts completed copies including this one; Total is the planned count.
	Done  int
	Total int
}

// Observer receives progress for one dataset build. Calls are serialized.
type Observer interface {
	// Start is called once the copy plan is known.
	Start(dataset string, total int)
	// Copied is called after each successful copy.
	Copied(c Copied)
	// Finish is called once with the build outcome.
	Finish(err error)
}

// ObserverFunc adapts a per-copy callback to Observer.
type ObserverFunc func(c Copied)

// Start implements Observer.
func (f ObserverFunc) Start(string, int) {}

// Copied implements Observer.
func (f ObserverFunc) Copied(c Copied) { f(c) }

// Finish implements Observer.
func (f ObserverFunc) Finish(error) {}

type nopObserver struct{}

func (nopObserver) Start(string, int) {}
func (nopObserver) Copied(Copied)     {}
func (nopObserver) Finish(error)      {}

// NopObserver discards all progress.
var NopObserver Observer = nopObserver{}
