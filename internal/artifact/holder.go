package artifact

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"credit-risk/internal/common/logger"
	"credit-risk/internal/common/metrics"
)

// ErrHolderClosed is returned by Acquire after Close.
var ErrHolderClosed = errors.New("model bundle holder closed")

// Holder owns the process's single model bundle. The bundle is loaded on the first
// Acquire, exactly once even under concurrent callers, and is never reloaded. A failed
// load is sticky. Close releases the bundle and fails later Acquire calls.
type Holder struct {
	dir     string
	version string
	opts    Options
	log     logger.Logger

	once   sync.Once
	bundle *Bundle
	err    error
	closed atomic.Bool
	ready  atomic.Bool
	loads  atomic.Int32
}

func NewHolder(dir, version string, opts Options, log logger.Logger) *Holder {
	return &Holder{
		dir:     dir,
		version: version,
		opts:    opts,
		log:     log.WithFields(map[string]interface{}{"component": "model-bundle", "dir": dir}),
	}
}

// Acquire returns the shared bundle, loading it on first use.
func (h *Holder) Acquire() (*Bundle, error) {
	if h.closed.Load() {
		return nil, ErrHolderClosed
	}
	h.once.Do(h.load)
	if h.closed.Load() {
		return nil, ErrHolderClosed
	}
	return h.bundle, h.err
}

func (h *Holder) load() {
	h.loads.Add(1)
	start := time.Now()

	h.bundle, h.err = Load(h.dir, h.version, h.opts)
	if h.err != nil {
		metrics.ModelBundleLoads.WithLabelValues(h.version, "error").Inc()
		h.log.Error("model bundle load failed", map[string]interface{}{
			"error":   h.err.Error(),
			"version": h.version,
		})
		return
	}
	metrics.ModelBundleLoads.WithLabelValues(h.bundle.Version, "ok").Inc()
	h.log.Info("model bundle loaded", map[string]interface{}{
		"version":  h.bundle.Version,
		"family":   h.bundle.Family,
		"files":    len(h.bundle.Manifest.Files),
		"width":    h.bundle.Pipeline.Schema().Width(),
		"duration": time.Since(start).String(),
	})
	h.ready.Store(true)
}

// Ready reports whether a bundle is loaded and the holder is open. It never triggers a load.
func (h *Holder) Ready() bool {
	return h.ready.Load() && !h.closed.Load()
}

// Close releases the bundle. It waits for an in-flight load and prevents any later one.
func (h *Holder) Close() error {
	if !h.closed.CompareAndSwap(false, true) {
		return nil
	}
	h.once.Do(func() { h.err = ErrHolderClosed })
	if h.bundle == nil {
		return nil
	}
	h.log.Info("model bundle released", map[string]interface{}{"version": h.bundle.Version})
	return h.bundle.Close()
}
