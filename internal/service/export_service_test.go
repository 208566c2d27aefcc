package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mkessler/libmirror/internal/config"
	"github.com/mkessler/libmirror/internal/domain"
	"github.com/mkessler/libmirror/internal/repository"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fakeLibrary struct {
	collections []domain.Collection
	items       map[domain.CollectionID][]domain.Item
	meta        map[domain.ItemID]domain.ItemMetadata
	attachments map[domain.ItemID][]domain.Attachment
}

func (f *fakeLibrary) ListCollections(ctx context.Context) ([]domain.Collection, error) {
	return f.collections, nil
}

func (f *fakeLibrary) ListDirectItems(ctx context.Context, id domain.CollectionID) ([]domain.Item, error) {
	return f.items[id], nil
}

func (f *fakeLibrary) GetItemMetadata(ctx context.Context, id domain.ItemID) (domain.ItemMetadata, error) {
	return f.meta[id], nil
}

func (f *fakeLibrary) ListAttachments(ctx context.Context, id domain.ItemID) ([]domain.Attachment, error) {
	return f.attachments[id], nil
}

func (f *fakeLibrary) Close() error { return nil }

type fakeOpener struct {
	lib repository.Library
	err error
}

func (f fakeOpener) Open(ctx context.Context) (repository.Library, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.lib, nil
}

func testConfig(dataDir, outputRoot string) *config.Config {
	return &config.Config{
		Library: config.LibraryConfig{DataDir: dataDir},
		Export: config.ExportConfig{
			OutputRoot:   outputRoot,
			Workers:      2,
			MinFreeBytes: 1,
		},
		Categories: domain.DefaultCategoryRules(),
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func cid(id domain.CollectionID) *domain.CollectionID { return &id }

// twoLevelFixture builds the scenario: Root has one item with a storage
// attachment paper.pdf, child A has one item with a linked notes.docx,
// child B has one item with a storage attachment other.pdf.
func twoLevelFixture(t *testing.T, dataDir string) *fakeLibrary {
	t.Helper()

	writeFile(t, filepath.Join(dataDir, "storage", "ATT1", "paper.pdf"), "pdf bytes")
	writeFile(t, filepath.Join(dataDir, "storage", "ATT3", "other.pdf"), "other bytes")
	linked := filepath.Join(dataDir, "linked", "notes.docx")
	writeFile(t, linked, "docx bytes")

	return &fakeLibrary{
		collections: []domain.Collection{
			{ID: 1, Name: "Root"},
			{ID: 2, Name: "A", ParentID: cid(1)},
			{ID: 3, Name: "B", ParentID: cid(1)},
		},
		items: map[domain.CollectionID][]domain.Item{
			1: {{ID: 10, Key: "ITEM10", TypeLabel: "journalArticle"}},
			2: {{ID: 20, Key: "ITEM20", TypeLabel: "book"}},
			3: {{ID: 30, Key: "ITEM30", TypeLabel: "report"}},
		},
		meta: map[domain.ItemID]domain.ItemMetadata{
			10: {Title: "Deep Learning", Date: "2021-03-01", AuthorSurname: "Goodfellow"},
			20: {Title: "Field Notes", Date: "2020", AuthorSurname: "Smith"},
			30: {Title: "Annual Report", Date: "2019", AuthorSurname: "Jones"},
		},
		attachments: map[domain.ItemID][]domain.Attachment{
			10: {domain.ClassifyAttachment(10, "ATT1", "storage:paper.pdf", "application/pdf")},
			20: {domain.ClassifyAttachment(20, "ATT2", linked, "")},
			30: {domain.ClassifyAttachment(30, "ATT3", "storage:other.pdf", "application/pdf")},
		},
	}
}

func TestExport_Unrestricted(t *testing.T) {
	dataDir := t.TempDir()
	outputRoot := t.TempDir()
	lib := twoLevelFixture(t, dataDir)
	svc := NewExportService(fakeOpener{lib: lib}, testConfig(dataDir, outputRoot), testLogger())

	summary, err := svc.Export(context.Background(), ExportOptions{RootCollection: "Root"})
	if err != nil {
		t.Fatalf("Export returned error: %v", err)
	}

	if summary.ItemsProcessed != 3 {
		t.Errorf("ItemsProcessed = %d, want 3", summary.ItemsProcessed)
	}
	if summary.FilesCopied != 3 {
		t.Errorf("FilesCopied = %d, want 3", summary.FilesCopied)
	}
	if len(summary.Warnings) != 0 {
		t.Errorf("Warnings = %v, want none", summary.Warnings)
	}

	wantFiles := []string{
		filepath.Join(outputRoot, "PDF", "Root", "[2021] Goodfellow - Deep Learning.pdf"),
		filepath.Join(outputRoot, "Word", "Root", "A", "[2020] Smith - Field Notes.docx"),
		filepath.Join(outputRoot, "PDF", "Root", "B", "[2019] Jones - Annual Report.pdf"),
	}
	for _, path := range wantFiles {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("expected exported file %s: %v", path, err)
		}
	}
}

func TestExport_WithMask(t *testing.T) {
	dataDir := t.TempDir()
	outputRoot := t.TempDir()
	lib := twoLevelFixture(t, dataDir)
	svc := NewExportService(fakeOpener{lib: lib}, testConfig(dataDir, outputRoot), testLogger())

	summary, err := svc.Export(context.Background(), ExportOptions{
		RootCollection: "Root",
		Mask:           domain.PathMask{"A": {}},
	})
	if err != nil {
		t.Fatalf("Export returned error: %v", err)
	}

	// Root's own item is still exported; masking only restricts descent.
	if summary.ItemsProcessed != 2 {
		t.Errorf("ItemsProcessed = %d, want 2", summary.ItemsProcessed)
	}
	if summary.FilesCopied != 2 {
		t.Errorf("FilesCopied = %d, want 2", summary.FilesCopied)
	}

	if _, err := os.Stat(filepath.Join(outputRoot, "PDF", "Root", "[2021] Goodfellow - Deep Learning.pdf")); err != nil {
		t.Errorf("Root's own attachment should be exported: %v", err)
	}
	if _, err := os.Stat(filepath.Join(outputRoot, "Word", "Root", "A", "[2020] Smith - Field Notes.docx")); err != nil {
		t.Errorf("masked-in child A should be exported: %v", err)
	}
	if _, err := os.Stat(filepath.Join(outputRoot, "PDF", "Root", "B")); !os.IsNotExist(err) {
		t.Errorf("masked-out child B should not exist, stat err = %v", err)
	}
}

func TestExport_CollisionSuffixes(t *testing.T) {
	dataDir := t.TempDir()
	outputRoot := t.TempDir()
	lib := twoLevelFixture(t, dataDir)
	svc := NewExportService(fakeOpener{lib: lib}, testConfig(dataDir, outputRoot), testLogger())

	for i := 0; i < 2; i++ {
		if _, err := svc.Export(context.Background(), ExportOptions{RootCollection: "Root"}); err != nil {
			t.Fatalf("Export run %d returned error: %v", i, err)
		}
	}

	base := filepath.Join(outputRoot, "PDF", "Root", "[2021] Goodfellow - Deep Learning.pdf")
	suffixed := filepath.Join(outputRoot, "PDF", "Root", "[2021] Goodfellow - Deep Learning_1.pdf")
	for _, path := range []string{base, suffixed} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("expected %s: %v", path, err)
		}
	}
}

func TestExport_SkipMissingSource(t *testing.T) {
	dataDir := t.TempDir()
	outputRoot := t.TempDir()

	lib := &fakeLibrary{
		collections: []domain.Collection{{ID: 1, Name: "Root"}},
		items: map[domain.CollectionID][]domain.Item{
			1: {{ID: 10, Key: "ITEM10"}},
		},
		meta: map[domain.ItemID]domain.ItemMetadata{
			10: {Title: "Gone", Date: "2018", AuthorSurname: "Nobody"},
		},
		attachments: map[domain.ItemID][]domain.Attachment{
			10: {domain.ClassifyAttachment(10, "MISSING", "storage:gone.pdf", "")},
		},
	}
	svc := NewExportService(fakeOpener{lib: lib}, testConfig(dataDir, outputRoot), testLogger())

	summary, err := svc.Export(context.Background(), ExportOptions{RootCollection: "Root"})
	if err != nil {
		t.Fatalf("Export returned error: %v", err)
	}
	if summary.FilesCopied != 0 {
		t.Errorf("FilesCopied = %d, want 0", summary.FilesCopied)
	}
	if len(summary.Warnings) != 1 {
		t.Errorf("Warnings = %v, want exactly one", summary.Warnings)
	}
}

func TestExport_UnresolvedAttachmentWarns(t *testing.T) {
	dataDir := t.TempDir()
	outputRoot := t.TempDir()

	lib := &fakeLibrary{
		collections: []domain.Collection{{ID: 1, Name: "Root"}},
		items: map[domain.CollectionID][]domain.Item{
			1: {{ID: 10, Key: "ITEM10"}},
		},
		meta: map[domain.ItemID]domain.ItemMetadata{10: {Title: "T"}},
		attachments: map[domain.ItemID][]domain.Attachment{
			10: {domain.ClassifyAttachment(10, "NOPATH", "", "")},
		},
	}
	svc := NewExportService(fakeOpener{lib: lib}, testConfig(dataDir, outputRoot), testLogger())

	summary, err := svc.Export(context.Background(), ExportOptions{RootCollection: "Root"})
	if err != nil {
		t.Fatalf("Export returned error: %v", err)
	}
	if summary.ItemsProcessed != 1 || summary.FilesCopied != 0 || len(summary.Warnings) != 1 {
		t.Errorf("summary = %+v, want 1 item, 0 copies, 1 warning", summary)
	}
}

func TestExport_RootNotFound(t *testing.T) {
	lib := &fakeLibrary{collections: []domain.Collection{{ID: 1, Name: "Root"}}}
	svc := NewExportService(fakeOpener{lib: lib}, testConfig(t.TempDir(), t.TempDir()), testLogger())

	_, err := svc.Export(context.Background(), ExportOptions{RootCollection: "Nope"})
	if !errors.Is(err, domain.ErrCollectionNotFound) {
		t.Errorf("Export error = %v, want ErrCollectionNotFound", err)
	}
}

func TestExport_AmbiguousRoot(t *testing.T) {
	lib := &fakeLibrary{collections: []domain.Collection{
		{ID: 1, Name: "Dup"},
		{ID: 2, Name: "Dup"},
	}}
	svc := NewExportService(fakeOpener{lib: lib}, testConfig(t.TempDir(), t.TempDir()), testLogger())

	_, err := svc.Export(context.Background(), ExportOptions{RootCollection: "Dup"})
	if !errors.Is(err, domain.ErrCollectionAmbiguous) {
		t.Errorf("Export error = %v, want ErrCollectionAmbiguous", err)
	}
}

func TestExport_DatabaseUnavailable(t *testing.T) {
	svc := NewExportService(
		fakeOpener{err: domain.ErrDatabaseUnavailable},
		testConfig(t.TempDir(), t.TempDir()),
		testLogger(),
	)

	_, err := svc.Export(context.Background(), ExportOptions{RootCollection: "Root"})
	if !errors.Is(err, domain.ErrDatabaseUnavailable) {
		t.Errorf("Export error = %v, want ErrDatabaseUnavailable", err)
	}
}

func TestExport_PreservesModTime(t *testing.T) {
	dataDir := t.TempDir()
	outputRoot := t.TempDir()
	lib := twoLevelFixture(t, dataDir)

	src := filepath.Join(dataDir, "storage", "ATT1", "paper.pdf")
	past := time.Date(2015, 6, 1, 12, 0, 0, 0, time.UTC)
	if err := os.Chtimes(src, past, past); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	svc := NewExportService(fakeOpener{lib: lib}, testConfig(dataDir, outputRoot), testLogger())
	if _, err := svc.Export(context.Background(), ExportOptions{RootCollection: "Root"}); err != nil {
		t.Fatalf("Export returned error: %v", err)
	}

	dest := filepath.Join(outputRoot, "PDF", "Root", "[2021] Goodfellow - Deep Learning.pdf")
	info, err := os.Stat(dest)
	if err != nil {
		t.Fatalf("stat dest: %v", err)
	}
	if !info.ModTime().Equal(past) {
		t.Errorf("dest mtime = %v, want %v", info.ModTime(), past)
	}
}

func TestExport_CancelledContext(t *testing.T) {
	dataDir := t.TempDir()
	lib := twoLevelFixture(t, dataDir)
	svc := NewExportService(fakeOpener{lib: lib}, testConfig(dataDir, t.TempDir()), testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Export(ctx, ExportOptions{RootCollection: "Root"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Export error = %v, want context.Canceled", err)
	}
}

func TestStartAsync_LifecycleAndConflict(t *testing.T) {
	dataDir := t.TempDir()
	lib := twoLevelFixture(t, dataDir)
	svc := NewExportService(fakeOpener{lib: lib}, testConfig(dataDir, t.TempDir()), testLogger())

	runID, err := svc.StartAsync(ExportOptions{RootCollection: "Root"})
	if err != nil {
		t.Fatalf("StartAsync returned error: %v", err)
	}
	if runID == "" {
		t.Fatal("StartAsync returned empty run ID")
	}

	deadline := time.Now().Add(5 * time.Second)
	var status *RunStatus
	for {
		status = svc.Status()
		if !status.Active || time.Now().After(deadline) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	if status.Phase != "completed" {
		t.Fatalf("phase = %q, want completed (error: %q)", status.Phase, status.Error)
	}
	if status.FilesCopied != 3 {
		t.Errorf("FilesCopied = %d, want 3", status.FilesCopied)
	}

	// A finished run no longer blocks a new one.
	if _, err := svc.StartAsync(ExportOptions{RootCollection: "Root"}); err != nil {
		t.Errorf("StartAsync after completion returned error: %v", err)
	}
	for time.Now().Before(deadline) && svc.Status().Active {
		time.Sleep(10 * time.Millisecond)
	}
}

func TestStartAsync_ConflictWhileRunning(t *testing.T) {
	svc := NewExportService(fakeOpener{}, testConfig(t.TempDir(), t.TempDir()), testLogger())

	// Simulate an active run
	svc.mu.Lock()
	svc.activeRun = &ActiveRun{ID: "test-run", Phase: phaseRunning, counters: &runCounters{logger: testLogger()}}
	svc.mu.Unlock()

	_, err := svc.StartAsync(ExportOptions{RootCollection: "Root"})
	if !errors.Is(err, domain.ErrExportInProgress) {
		t.Errorf("StartAsync error = %v, want ErrExportInProgress", err)
	}
}

func TestCancel_NoActiveRun(t *testing.T) {
	svc := NewExportService(fakeOpener{}, testConfig(t.TempDir(), t.TempDir()), testLogger())

	if err := svc.Cancel(); !errors.Is(err, ErrNoActiveRun) {
		t.Errorf("Cancel error = %v, want ErrNoActiveRun", err)
	}
}
