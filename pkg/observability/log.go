package observability

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
)

// LogHooks writes every pipeline, cache and HTTP event to a logger at debug
// level. The CLI installs it for --verbose runs.
//
// Solve progress is skipped: the CLI already reports incumbents and
// heartbeats through the solver's progress callback.
type LogHooks struct {
	Logger *log.Logger
}

// NewLogHooks returns hooks that log to l, or to the default logger when l
// is nil.
func NewLogHooks(l *log.Logger) *LogHooks {
	if l == nil {
		l = log.Default()
	}
	return &LogHooks{Logger: l}
}

// Install registers h for all three hook kinds.
func (h *LogHooks) Install() {
	SetPipelineHooks(h)
	SetCacheHooks(h)
	SetHTTPHooks(h)
}

func (h *LogHooks) done(msg string, err error, keyvals ...any) {
	if err != nil {
		keyvals = append(keyvals, "err", err)
	}
	h.Logger.Debug(msg, keyvals...)
}

func (h *LogHooks) OnLoadStart(_ context.Context, source string) {
	h.Logger.Debug("load started", "source", source)
}

func (h *LogHooks) OnLoadComplete(_ context.Context, source string, width, height int, d time.Duration, err error) {
	h.done("load finished", err, "source", source, "width", width, "height", height, "duration", d)
}

func (h *LogHooks) OnBuildComplete(_ context.Context, variables, constraints int, d time.Duration, err error) {
	h.done("model built", err, "variables", variables, "constraints", constraints, "duration", d)
}

func (h *LogHooks) OnSolveStart(_ context.Context, variables, constraints int) {
	h.Logger.Debug("solve started", "variables", variables, "constraints", constraints)
}

func (h *LogHooks) OnSolveProgress(context.Context, int, float64, bool) {}

func (h *LogHooks) OnSolveComplete(_ context.Context, status string, objective float64, nodes int, d time.Duration, err error) {
	h.done("solve finished", err, "status", status, "objective", objective, "nodes", nodes, "duration", d)
}

func (h *LogHooks) OnRenderStart(_ context.Context, formats []string) {
	h.Logger.Debug("render started", "formats", formats)
}

func (h *LogHooks) OnRenderComplete(_ context.Context, formats []string, d time.Duration, err error) {
	h.done("render finished", err, "formats", formats, "duration", d)
}

func (h *LogHooks) OnCacheHit(_ context.Context, keyType string) {
	h.Logger.Debug("cache hit", "type", keyType)
}

func (h *LogHooks) OnCacheMiss(_ context.Context, keyType string) {
	h.Logger.Debug("cache miss", "type", keyType)
}

func (h *LogHooks) OnCacheSet(_ context.Context, keyType string, size int) {
	h.Logger.Debug("cache set", "type", keyType, "bytes", size)
}

func (h *LogHooks) OnRequest(_ context.Context, method, path string) {
	h.Logger.Debug("request", "method", method, "path", path)
}

func (h *LogHooks) OnResponse(_ context.Context, method, path string, status int, d time.Duration) {
	h.Logger.Debug("response", "method", method, "path", path, "status", status, "duration", d)
}

var (
	_ PipelineHooks = (*LogHooks)(nil)
	_ CacheHooks    = (*LogHooks)(nil)
	_ HTTPHooks     = (*LogHooks)(nil)
)
