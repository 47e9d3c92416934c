package main

import (
	"io"
	"path/filepath"

	"github.com/vbauerster/mpb/v4"
	"github.com/vbauerster/mpb/v4/decor"
)

// progress draws one bar per download. The size is unknown until the server
// closes the data connection, so the bar shows elapsed time and speed and is
// completed by finish.
type progress struct {
	out io.Writer

	p    *mpb.Progress
	bar  *mpb.Bar
	file string
	last int64
}

func newProgress(out io.Writer) *progress {
	return &progress{out: out}
}

// update is the session progress callback.
func (pr *progress) update(file string, total int64) {
	if pr.bar == nil || file != pr.file {
		pr.finish()
		pr.start(file)
	}
	if delta := total - pr.last; delta > 0 {
		pr.bar.IncrBy(int(delta))
		pr.last = total
	}
}

func (pr *progress) start(file string) {
	name := filepath.Base(file)
	pr.p = mpb.New(mpb.WithOutput(pr.out), mpb.WithWidth(40))
	pr.bar = pr.p.AddBar(0,
		mpb.PrependDecorators(
			decor.Name(name, decor.WC{W: len(name) + 1, C: decor.DidentRight}),
			decor.Elapsed(decor.ET_STYLE_GO, decor.WC{W: 4}),
		),
		mpb.AppendDecorators(
			decor.AverageSpeed(decor.UnitKiB, "% .1f"),
		),
	)
	pr.file = file
	pr.last = 0
}

// finish completes the current bar, if any, and waits for it to render.
func (pr *progress) finish() {
	if pr.bar == nil {
		return
	}
	pr.bar.SetTotal(pr.last, true)
	pr.p.Wait()
	pr.p, pr.bar, pr.file, pr.last = nil, nil, "", 0
}
