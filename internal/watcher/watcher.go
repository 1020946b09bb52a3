// Package watcher polls the inbox directory for new clinical documents and
// enqueues them once their contents stop changing.
package watcher

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/seanwevans/fhir-department/internal/config"
	"github.com/seanwevans/fhir-department/internal/logging"
	"github.com/seanwevans/fhir-department/internal/notifications"
	"github.com/seanwevans/fhir-department/internal/queue"
)

// documentExtensions lists the file types the intake pipeline accepts.
var documentExtensions = map[string]struct{}{
	".pdf":  {},
	".png":  {},
	".jpg":  {},
	".jpeg": {},
	".tif":  {},
	".tiff": {},
	".txt":  {},
}

// candidate tracks a file between polls so we only enqueue it after its
// size and modification time hold still for the settle window.
type candidate struct {
	size      int64
	modTime   time.Time
	firstSeen time.Time
}

// Watcher polls the inbox for settled documents and registers them with the
// queue store.
type Watcher struct {
	cfg      *config.Config
	store    *queue.Store
	logger   *slog.Logger
	notifier notifications.Service

	dir          string
	pollInterval time.Duration
	settle       time.Duration

	mu      sync.Mutex
	running bool
	pending map[string]candidate
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New builds an inbox watcher. Returns nil when the config or store is
// missing, or when no inbox directory is configured.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Watcher {
	return NewWithNotifier(cfg, store, logger, notifications.NewService(cfg))
}

// NewWithNotifier builds an inbox watcher with a custom notifier (used in tests).
func NewWithNotifier(cfg *config.Config, store *queue.Store, logger *slog.Logger, notifier notifications.Service) *Watcher {
	if cfg == nil || store == nil {
		return nil
	}
	dir := strings.TrimSpace(cfg.Paths.InboxDir)
	if dir == "" {
		return nil
	}

	poll := time.Duration(cfg.Workflow.InboxPollInterval) * time.Second
	if poll <= 0 {
		poll = 5 * time.Second
	}
	settle := time.Duration(cfg.Workflow.InboxSettleSeconds) * time.Second

	return &Watcher{
		cfg:          cfg,
		store:        store,
		logger:       logging.NewComponentLogger(logger, "inbox-watcher"),
		notifier:     notifier,
		dir:          dir,
		pollInterval: poll,
		settle:       settle,
		pending:      make(map[string]candidate),
	}
}

// Start begins polling the inbox in the background.
func (w *Watcher) Start(ctx context.Context) error {
	if w == nil {
		return errors.New("inbox watcher unavailable")
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return errors.New("inbox watcher already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.ctx = runCtx
	w.cancel = cancel
	w.running = true

	w.wg.Add(1)
	go w.loop()
	return nil
}

// Stop terminates polling and waits for the loop to exit.
func (w *Watcher) Stop() {
	if w == nil {
		return
	}
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	cancel := w.cancel
	w.running = false
	w.cancel = nil
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	w.wg.Wait()
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	w.poll()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.poll()
		}
	}
}

func (w *Watcher) poll() {
	ctx := w.ctx
	if ctx == nil {
		return
	}

	entries, err := os.ReadDir(w.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return
		}
		w.logger.Warn("inbox scan failed; will retry",
			logging.Error(err),
			logging.String(logging.FieldEventType, "inbox_scan_failed"),
			logging.String(logging.FieldErrorHint, "check inbox_dir path and permissions"),
		)
		return
	}

	seen := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !acceptName(name) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}

		path := filepath.Join(w.dir, name)
		seen[path] = struct{}{}
		w.observe(ctx, path, info)
	}

	// Forget candidates whose files disappeared between polls.
	w.mu.Lock()
	for path := range w.pending {
		if _, ok := seen[path]; !ok {
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()
}

func (w *Watcher) observe(ctx context.Context, path string, info fs.FileInfo) {
	now := time.Now()

	w.mu.Lock()
	prev, tracked := w.pending[path]
	if !tracked || prev.size != info.Size() || !prev.modTime.Equal(info.ModTime()) {
		w.pending[path] = candidate{size: info.Size(), modTime: info.ModTime(), firstSeen: now}
		w.mu.Unlock()
		return
	}
	if now.Sub(prev.firstSeen) < w.settle {
		w.mu.Unlock()
		return
	}
	delete(w.pending, path)
	w.mu.Unlock()

	w.enqueue(ctx, path)
}

func (w *Watcher) enqueue(ctx context.Context, path string) {
	existing, err := w.store.FindBySourcePath(ctx, path)
	if err != nil {
		w.logger.Warn("queue lookup failed; document not enqueued",
			logging.Error(err),
			logging.String("source_file", path),
			logging.String(logging.FieldEventType, "inbox_lookup_failed"),
			logging.String(logging.FieldErrorHint, "check queue database health"),
		)
		return
	}
	if existing != nil {
		w.logger.Debug("document already registered, skipping",
			logging.Int64(logging.FieldItemID, existing.ID),
			logging.String("source_file", path),
			logging.String("status", string(existing.Status)),
		)
		return
	}

	item, err := w.store.NewDocument(ctx, path)
	if err != nil {
		w.logger.Error("failed to enqueue document",
			logging.Error(err),
			logging.String("source_file", path),
			logging.String(logging.FieldEventType, "inbox_enqueue_failed"),
			logging.String(logging.FieldErrorHint, "check queue database health and daemon logs"),
		)
		return
	}

	w.logger.Info("detected document",
		logging.Int64(logging.FieldItemID, item.ID),
		logging.String("document_title", item.DocumentTitle),
		logging.String("source_file", path),
		logging.String(logging.FieldEventType, "document_detected"),
	)

	if w.notifier != nil {
		if err := w.notifier.Publish(ctx, notifications.EventDocumentDetected, notifications.Payload{
			"title":      item.DocumentTitle,
			"sourceFile": filepath.Base(path),
		}); err != nil {
			w.logger.Debug("document notification failed", logging.Error(err))
		}
	}
}

// acceptName reports whether a file name looks like a document the pipeline
// handles. Hidden files and common partial-transfer suffixes are rejected.
func acceptName(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	lower := strings.ToLower(name)
	for _, suffix := range []string{".part", ".partial", ".tmp", ".crdownload"} {
		if strings.HasSuffix(lower, suffix) {
			return false
		}
	}
	_, ok := documentExtensions[filepath.Ext(lower)]
	return ok
}
