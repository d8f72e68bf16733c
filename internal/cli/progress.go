package cli

import (
	"io"
	"sync"

	"github.com/cheggaaa/pb/v3"

	"github.com/MJE43/montecarlo-pi/internal/sweep"
)

// progressBar reports sweep and table progress on w. The bar is created on the
// first callback, when the total is known.
type progressBar struct {
	w   io.Writer
	mu  sync.Mutex
	bar *pb.ProgressBar
}

func newProgressBar(w io.Writer) *progressBar {
	return &progressBar{w: w}
}

func (p *progressBar) update(done, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar == nil {
		p.bar = pb.New(total).SetWriter(p.w).Start()
	}
	p.bar.SetTotal(int64(total))
	p.bar.SetCurrent(int64(done))
}

// callback returns the scanner progress hook.
func (p *progressBar) callback() sweep.ProgressFunc {
	return p.update
}

func (p *progressBar) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar != nil {
		p.bar.Finish()
	}
}
