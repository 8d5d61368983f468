package output

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/progress"

	"github.com/leapstack-labs/leapsort/internal/dataset"
)

// CopyEvent is one JSON line emitted while a dataset is built.
type CopyEvent struct {
	Event     string `json:"event"`
	Dataset   string `json:"dataset"`
	Timestamp string `json:"timestamp"`
	Total     int    `json:"total,omitempty"`
	Done      int    `json:"done,omitempty"`
	Label     string `json:"label,omitempty"`
	Source    string `json:"source,omitempty"`
	Dest      string `json:"dest,omitempty"`
	Bytes     int64  `json:"bytes,omitempty"`
	Status    string `json:"status,omitempty"`
	Error     string `json:"error,omitempty"`
	TotalMS   int64  `json:"total_ms,omitempty"`
}

// NewProgress returns a copy observer matching the renderer mode: a progress
// bar on a terminal, JSON lines in JSON mode and a one-line summary otherwise.
func (r *Renderer) NewProgress() dataset.Observer {
	switch {
	case r.EffectiveMode() == ModeJSON:
		return &jsonProgress{w: r.out, now: time.Now}
	case r.EffectiveMode() == ModeText && r.isTTY:
		return newBarProgress(r.errOut)
	default:
		return &lineProgress{r: r}
	}
}

// barProgress redraws a bubbles progress bar in place on stderr.
type barProgress struct {
	w       io.Writer
	bar     progress.Model
	name    string
	total   int
	percent int
	started bool
}

func newBarProgress(w io.Writer) *barProgress {
	return &barProgress{
		w:   w,
		bar: progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
	}
}

func (p *barProgress) Start(name string, total int) {
	p.name, p.total, p.percent, p.started = name, total, -1, true
	p.draw(0)
}

func (p *barProgress) Copied(c dataset.Copied) {
	if c.Total == 0 {
		return
	}
	p.draw(c.Done * 100 / c.Total)
}

func (p *barProgress) draw(percent int) {
	if percent == p.percent {
		return
	}
	p.percent = percent
	_, _ = fmt.Fprintf(p.w, "\r%s %s", p.name, p.bar.ViewAs(float64(percent)/100))
}

func (p *barProgress) Finish(err error) {
	if !p.started {
		return
	}
	if err == nil {
		p.draw(100)
	}
	_, _ = fmt.Fprintln(p.w)
	p.started = false
}

// lineProgress prints one line per dataset when it starts and finishes.
type lineProgress struct {
	r      *Renderer
	name   string
	total  int
	copied int
}

func (p *lineProgress) Start(name string, total int) {
	p.name, p.total, p.copied = name, total, 0
	p.r.Printf("Copying %d file(s) into %s\n", total, name)
}

func (p *lineProgress) Copied(dataset.Copied) { p.copied++ }

func (p *lineProgress) Finish(err error) {
	if p.name == "" {
		return
	}
	if err != nil {
		p.r.Printf("Stopped %s after %d of %d file(s)\n", p.name, p.copied, p.total)
	} else {
		p.r.Printf("Copied %d file(s) into %s\n", p.copied, p.name)
	}
	p.name = ""
}

// jsonProgress emits one CopyEvent per callback.
type jsonProgress struct {
	w       io.Writer
	now     func() time.Time
	name    string
	started time.Time
}

func (p *jsonProgress) emit(e CopyEvent) {
	e.Dataset = p.name
	e.Timestamp = p.now().UTC().Format(time.RFC3339)
	data, _ := json.Marshal(e)
	_, _ = fmt.Fprintln(p.w, string(data))
}

func (p *jsonProgress) Start(name string, total int) {
	p.name, p.started = name, p.now()
	p.emit(CopyEvent{Event: "copy_start", Total: total})
}

func (p *jsonProgress) Copied(c dataset.Copied) {
	p.emit(CopyEvent{
		Event:  "file_copied",
		Done:   c.Done,
		Total:  c.Total,
		Label:  c.Row.Label,
		Source: c.Row.Path,
		Dest:   c.Dest,
		Bytes:  c.Bytes,
	})
}

func (p *jsonProgress) Finish(err error) {
	if p.name == "" {
		return
	}
	e := CopyEvent{Event: "copy_complete", Status: "completed", TotalMS: p.now().Sub(p.started).Milliseconds()}
	if err != nil {
		e.Status = "failed"
		e.Error = err.Error()
	}
	p.emit(e)
	p.name = ""
}
