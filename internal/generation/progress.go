package generation

import (
	"sync"
	"time"
)

// Phase is one step of the cosmetic progress indicator
type Phase struct {
	Label    string        `json:"label"`
	Duration time.Duration `json:"-"`
}

// GenerationPhases are shown while a new draft is produced
var GenerationPhases = []Phase{
	{Label: "Connecting to AI Engine", Duration: 1500 * time.Millisecond},
	{Label: "Analyzing Topic & Context", Duration: 2500 * time.Millisecond},
	{Label: "Crafting Your Draft", Duration: 8000 * time.Millisecond},
	{Label: "Formatting & Polishing", Duration: 3000 * time.Millisecond},
}

// ExtensionPhases are shown while a draft is extended
var ExtensionPhases = []Phase{
	{Label: "Reading Current Draft", Duration: 2000 * time.Millisecond},
	{Label: "Identifying Expansion Points", Duration: 3000 * time.Millisecond},
	{Label: "Writing New Sections", Duration: 8000 * time.Millisecond},
	{Label: "Seamlessly Integrating", Duration: 3000 * time.Millisecond},
}

// Update is one progress notification. Index equals Total only on the
// terminal update.
type Update struct {
	Phase string `json:"phase"`
	Index int    `json:"index"`
	Total int    `json:"total"`
	Done  bool   `json:"done"`
}

// Tracker walks through phases on fixed timers, independent of the real
// work. It never advances past the last phase on its own; only Complete
// reaches the terminal step.
type Tracker struct {
	phases []Phase
	notify func(Update)

	mu      sync.Mutex
	index   int
	stopped bool
	timer   *time.Timer
}

// StartTracker emits the first phase immediately and schedules the rest
func StartTracker(phases []Phase, notify func(Update)) *Tracker {
	t := &Tracker{phases: phases, notify: notify}
	if len(phases) == 0 {
		return t
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.emit(Update{Phase: phases[0].Label, Index: 0, Total: len(phases)})
	t.schedule()
	return t
}

// schedule arms the timer for the current phase; caller holds mu
func (t *Tracker) schedule() {
	if t.index >= len(t.phases)-1 {
		return
	}
	t.timer = time.AfterFunc(t.phases[t.index].Duration, t.advance)
}

func (t *Tracker) advance() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped || t.index >= len(t.phases)-1 {
		return
	}
	t.index++
	t.emit(Update{Phase: t.phases[t.index].Label, Index: t.index, Total: len(t.phases)})
	t.schedule()
}

// Index returns the current phase index
func (t *Tracker) Index() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.index
}

// Complete jumps to the terminal step and stops the timers
func (t *Tracker) Complete() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.halt()
	t.index = len(t.phases)
	t.emit(Update{Phase: "Done", Index: len(t.phases), Total: len(t.phases), Done: true})
}

// Stop halts the timers without a terminal update; used on failure
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.halt()
}

func (t *Tracker) halt() {
	t.stopped = true
	if t.timer != nil {
		t.timer.Stop()
	}
}

func (t *Tracker) emit(u Update) {
	if t.notify != nil {
		t.notify(u)
	}
}
