package cli

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/oreflow/pkg/milp/branchbound"
)

// heartbeatEvery spaces "still searching" log lines.
const heartbeatEvery = 10 * time.Second

// solveProgress turns branch-and-bound progress reports into log lines: the
// first incumbent, every improvement, and a heartbeat every 10 seconds while
// the search runs without improving. It also keeps an optional spinner's
// message current.
//
// Reports arrive on the solving goroutine, so solveProgress needs no locking.
type solveProgress struct {
	logger  *log.Logger
	spinner *Spinner
	timeout time.Duration

	seen    bool
	best    float64
	lastLog time.Time
	last    branchbound.Progress
	now     func() time.Time
}

func newSolveProgress(logger *log.Logger, timeout time.Duration, spinner *Spinner) *solveProgress {
	return &solveProgress{logger: logger, timeout: timeout, spinner: spinner, now: time.Now}
}

// report is the branchbound.Options.Progress callback.
func (p *solveProgress) report(pr branchbound.Progress) {
	p.last = pr
	if p.spinner != nil {
		p.spinner.SetMessage(p.status(pr))
	}
	if !pr.HasValue {
		p.heartbeat(pr)
		return
	}

	switch {
	case !p.seen:
		p.logger.Infof("Initial: export %s (nodes: %d)", fmtRate(pr.Incumbent), pr.Nodes)
		p.lastLog = p.now()
	case pr.Incumbent > p.best:
		p.logger.Infof("Improved: export %s (↑%s)", fmtRate(pr.Incumbent), fmtRate(pr.Incumbent-p.best))
		p.lastLog = p.now()
	default:
		p.heartbeat(pr)
	}
	p.seen = true
	p.best = pr.Incumbent
}

func (p *solveProgress) heartbeat(pr branchbound.Progress) {
	if p.lastLog.IsZero() {
		p.lastLog = p.now()
		return
	}
	if p.now().Sub(p.lastLog) < heartbeatEvery {
		return
	}
	elapsed := pr.Elapsed.Truncate(time.Second)
	if p.timeout > 0 {
		p.logger.Infof("Searching... %v/%v elapsed, %d nodes (pruned: %d)", elapsed, p.timeout, pr.Nodes, pr.Pruned)
	} else {
		p.logger.Infof("Searching... %v elapsed, %d nodes (pruned: %d)", elapsed, pr.Nodes, pr.Pruned)
	}
	p.lastLog = p.now()
}

func (p *solveProgress) status(pr branchbound.Progress) string {
	if !pr.HasValue {
		return fmt.Sprintf("Solving... %d nodes", pr.Nodes)
	}
	return fmt.Sprintf("Solving... %d nodes, best export %s", pr.Nodes, fmtRate(pr.Incumbent))
}

// summary logs the final search counters at debug level.
func (p *solveProgress) summary() {
	p.logger.Debugf("Search: %d nodes, %d pruned, %v", p.last.Nodes, p.last.Pruned, p.last.Elapsed.Round(time.Millisecond))
}

// fmtRate prints a flow rate without trailing zeros.
func fmtRate(v float64) string {
	return fmt.Sprintf("%.4g", v)
}
