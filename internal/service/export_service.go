package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mkessler/libmirror/internal/config"
	"github.com/mkessler/libmirror/internal/domain"
	"github.com/mkessler/libmirror/internal/repository"
	"github.com/mkessler/libmirror/internal/worker"
)

// ErrNoActiveRun is returned when cancelling with no export in flight.
var ErrNoActiveRun = errors.New("no active export run")

// Run phases.
const (
	phaseRunning   = "running"
	phaseCompleted = "completed"
	phaseFailed    = "failed"
	phaseCancelled = "cancelled"
)

// ExportService mirrors a collection subtree of the library onto the
// destination filesystem, regrouping files by category and naming them
// from item metadata. The source library is never mutated.
type ExportService struct {
	opener repository.Opener
	cfg    *config.Config
	logger *slog.Logger
	locks  dirLocks

	mu        sync.Mutex
	activeRun *ActiveRun
}

// NewExportService creates a new export service.
func NewExportService(opener repository.Opener, cfg *config.Config, logger *slog.Logger) *ExportService {
	return &ExportService{
		opener: opener,
		cfg:    cfg,
		logger: logger,
	}
}

// ExportOptions selects what to export and where.
type ExportOptions struct {
	// RootCollection is the display name of the collection subtree to
	// mirror. Falls back to the configured default collection.
	RootCollection string

	// Mask optionally restricts which child branches are descended into.
	// Nil means unrestricted.
	Mask domain.PathMask

	// OutputRoot overrides the configured destination root.
	OutputRoot string
}

// Summary reports the outcome of a completed run. Partial problems are
// warnings, not failures: a library mirrored over months always has
// some missing or moved files.
type Summary struct {
	ItemsProcessed int      `json:"items_processed"`
	FilesCopied    int      `json:"files_copied"`
	Warnings       []string `json:"warnings"`
}

// ActiveRun tracks an asynchronous export.
type ActiveRun struct {
	ID             string
	RootCollection string
	Phase          string
	StartedAt      time.Time
	Error          string

	cancel   context.CancelFunc
	counters *runCounters
}

// RunStatus is a point-in-time snapshot of the current or last run.
type RunStatus struct {
	Active         bool   `json:"active"`
	RunID          string `json:"run_id,omitempty"`
	RootCollection string `json:"root_collection,omitempty"`
	Phase          string `json:"phase"`
	ItemsProcessed int    `json:"items_processed"`
	FilesCopied    int    `json:"files_copied"`
	Warnings       int    `json:"warnings"`
	StartedAt      string `json:"started_at,omitempty"`
	Error          string `json:"error,omitempty"`
}

// Export runs a mirror export synchronously and returns its summary.
// Only a missing or ambiguous root collection and an unobtainable
// database snapshot are fatal; everything else is isolated to the
// item or attachment in question and recorded as a warning.
func (s *ExportService) Export(ctx context.Context, opts ExportOptions) (*Summary, error) {
	counters := &runCounters{logger: s.logger}
	if err := s.run(ctx, opts, counters); err != nil {
		return nil, err
	}
	return counters.summary(), nil
}

// StartAsync begins an export in the background and returns its run ID.
// Only one run may be active at a time.
func (s *ExportService) StartAsync(opts ExportOptions) (string, error) {
	s.mu.Lock()
	if s.activeRun != nil && s.activeRun.Phase == phaseRunning {
		s.mu.Unlock()
		return "", domain.ErrExportInProgress
	}

	ctx, cancel := context.WithCancel(context.Background())
	run := &ActiveRun{
		ID:             uuid.NewString(),
		RootCollection: opts.RootCollection,
		Phase:          phaseRunning,
		StartedAt:      time.Now(),
		cancel:         cancel,
		counters:       &runCounters{logger: s.logger},
	}
	s.activeRun = run
	s.mu.Unlock()

	go func() {
		defer cancel()
		err := s.run(ctx, opts, run.counters)

		s.mu.Lock()
		defer s.mu.Unlock()
		switch {
		case err == nil:
			run.Phase = phaseCompleted
		case errors.Is(err, context.Canceled):
			run.Phase = phaseCancelled
		default:
			run.Phase = phaseFailed
			run.Error = err.Error()
		}
	}()

	return run.ID, nil
}

// Status returns a snapshot of the current or most recent run.
func (s *ExportService) Status() *RunStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	run := s.activeRun
	if run == nil {
		return &RunStatus{Phase: "idle"}
	}

	items, copied, warnings := run.counters.snapshot()
	return &RunStatus{
		Active:         run.Phase == phaseRunning,
		RunID:          run.ID,
		RootCollection: run.RootCollection,
		Phase:          run.Phase,
		ItemsProcessed: items,
		FilesCopied:    copied,
		Warnings:       warnings,
		StartedAt:      run.StartedAt.UTC().Format(time.RFC3339),
		Error:          run.Error,
	}
}

// Cancel stops the active run between collection visits.
func (s *ExportService) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.activeRun == nil || s.activeRun.Phase != phaseRunning {
		return ErrNoActiveRun
	}
	s.activeRun.cancel()
	return nil
}

func (s *ExportService) run(ctx context.Context, opts ExportOptions, counters *runCounters) error {
	rootName := opts.RootCollection
	if rootName == "" {
		rootName = s.cfg.Export.DefaultCollection
	}
	if rootName == "" {
		return fmt.Errorf("root collection name is required")
	}

	outputRoot := opts.OutputRoot
	if outputRoot == "" {
		outputRoot = s.cfg.Export.OutputRoot
	}
	if err := os.MkdirAll(outputRoot, 0755); err != nil {
		return fmt.Errorf("create output root: %w", err)
	}

	if free := freeDiskSpace(outputRoot); free >= 0 && free < s.cfg.Export.MinFreeBytes {
		counters.warnf("low free space on destination: %d bytes available", free)
	}

	lib, err := s.opener.Open(ctx)
	if err != nil {
		return err
	}
	defer lib.Close()

	collections, err := lib.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("list collections: %w", err)
	}
	forest, err := domain.BuildForest(collections)
	if err != nil {
		return err
	}
	root, err := forest.FindByName(rootName)
	if err != nil {
		return fmt.Errorf("%q: %w", rootName, err)
	}

	s.logger.Info("starting export",
		"collection", rootName,
		"output_root", outputRoot,
		"collections", forest.Size(),
	)

	pool := worker.NewPool(s.cfg.Export.Workers, s.logger)
	pool.Start(ctx)
	walkErr := s.walk(ctx, lib, root, opts.Mask, outputRoot, counters, pool)
	pool.Drain()
	if walkErr != nil {
		return walkErr
	}

	items, copied, warnings := counters.snapshot()
	s.logger.Info("export completed",
		"items", items,
		"files_copied", copied,
		"warnings", warnings,
	)
	return nil
}

// visit is one pending tree frame. Traversal uses an explicit stack so
// deeply nested libraries cannot exhaust the call stack.
type visit struct {
	node    *domain.CollectionNode
	parents []string
	mask    domain.PathMask
}

func (s *ExportService) walk(
	ctx context.Context,
	lib repository.Library,
	root *domain.CollectionNode,
	mask domain.PathMask,
	outputRoot string,
	counters *runCounters,
	pool *worker.Pool,
) error {
	stack := []visit{{node: root, mask: mask}}

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		segments := make([]string, 0, len(v.parents)+1)
		segments = append(segments, v.parents...)
		segments = append(segments, Sanitize(v.node.Name))

		s.logger.Info("processing collection", "path", strings.Join(segments, "/"))

		items, err := lib.ListDirectItems(ctx, v.node.ID)
		if err != nil {
			counters.warnf("list items of %s: %v", strings.Join(segments, "/"), err)
		} else {
			for _, item := range items {
				s.exportItem(ctx, lib, item, segments, outputRoot, counters, pool)
			}
		}

		// Push in reverse so children are visited in listing order. The
		// mask gates descent only; this node's items are already queued.
		for i := len(v.node.Children) - 1; i >= 0; i-- {
			child := v.node.Children[i]
			childMask, ok := v.mask.Child(Sanitize(child.Name))
			if !ok {
				continue
			}
			stack = append(stack, visit{node: child, parents: segments, mask: childMask})
		}
	}

	return nil
}

func (s *ExportService) exportItem(
	ctx context.Context,
	lib repository.Library,
	item domain.Item,
	segments []string,
	outputRoot string,
	counters *runCounters,
	pool *worker.Pool,
) {
	meta, err := lib.GetItemMetadata(ctx, item.ID)
	if err != nil {
		counters.warnf("%v", domain.NewExportError(item.Key, "load metadata", err))
		return
	}
	name := Sanitize(DisplayName(meta))

	attachments, err := lib.ListAttachments(ctx, item.ID)
	if err != nil {
		counters.warnf("%v", domain.NewExportError(item.Key, "list attachments", err))
		return
	}

	counters.item()

	for _, att := range attachments {
		src, ok := att.SourcePath(s.cfg.Library.StorageRoot())
		if !ok {
			counters.warnf("%v: attachment %s of %q", domain.ErrAttachmentUnresolved, att.Key, name)
			continue
		}
		if _, err := os.Stat(src); err != nil {
			counters.warnf("%v: %s (item %q)", domain.ErrSourceFileMissing, src, name)
			continue
		}

		ext := att.Ext()
		category := domain.Classify(ext, s.cfg.Categories)
		destDir := filepath.Join(append([]string{outputRoot, category}, segments...)...)

		pool.Submit(func(jobCtx context.Context) {
			if jobCtx.Err() != nil {
				return
			}
			dest, f, err := s.reserveDest(destDir, name, ext)
			if err != nil {
				counters.warnf("%v", domain.NewExportError(att.Key, "reserve destination", fmt.Errorf("%w: %v", domain.ErrCopyFailed, err)))
				return
			}
			if err := copyInto(dest, f, src); err != nil {
				counters.warnf("%v", domain.NewExportError(att.Key, "copy", fmt.Errorf("%w: %s -> %s: %v", domain.ErrCopyFailed, src, dest, err)))
				return
			}
			counters.copied()
			s.logger.Info("copied", "src", src, "dest", dest)
		})
	}
}

// runCounters accumulates the run summary. Copy jobs run concurrently,
// so every mutation goes through the mutex.
type runCounters struct {
	logger *slog.Logger

	mu          sync.Mutex
	items       int
	filesCopied int
	warnings    []string
}

func (c *runCounters) item() {
	c.mu.Lock()
	c.items++
	c.mu.Unlock()
}

func (c *runCounters) copied() {
	c.mu.Lock()
	c.filesCopied++
	c.mu.Unlock()
}

func (c *runCounters) warnf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	c.logger.Warn(msg)

	c.mu.Lock()
	c.warnings = append(c.warnings, msg)
	c.mu.Unlock()
}

func (c *runCounters) snapshot() (items, copied, warnings int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items, c.filesCopied, len(c.warnings)
}

func (c *runCounters) summary() *Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return &Summary{
		ItemsProcessed: c.items,
		FilesCopied:    c.filesCopied,
		Warnings:       append([]string(nil), c.warnings...),
	}
}
