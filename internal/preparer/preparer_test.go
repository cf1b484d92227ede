package preparer_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"bookforge/internal/catalog"
	"bookforge/internal/logging"
	"bookforge/internal/preparer"
	"bookforge/internal/testsupport"
)

func TestPrepareBookCopiesAssetsAndWritesDescriptor(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	assets := t.TempDir()
	cover := filepath.Join(assets, "cover.jpg")
	epub := filepath.Join(assets, "book.epub")
	testsupport.WriteFile(t, cover, "jpeg-bytes")
	testsupport.WriteFile(t, epub, "epub-bytes")

	record := testsupport.NewRecord(0, "Moon Atlas")
	record.Subtitle = "A Field Guide"
	record.AssetPaths = map[string]string{
		catalog.RoleEbookCover: cover,
		catalog.RoleEpub:       epub,
	}

	p := preparer.New(cfg, logging.NewNop())
	dir, missing, err := p.PrepareBook(context.Background(), record)
	if err != nil {
		t.Fatalf("PrepareBook returned error: %v", err)
	}
	if missing != 2 {
		t.Fatalf("expected 2 missing roles (print cover, docx), got %d", missing)
	}
	if filepath.Base(dir) != "book_000_Moon_Atlas" {
		t.Fatalf("unexpected directory name: %q", filepath.Base(dir))
	}

	descriptor, err := preparer.LoadDescriptor(dir)
	if err != nil {
		t.Fatalf("LoadDescriptor: %v", err)
	}
	if descriptor.Title != "Moon Atlas" {
		t.Fatalf("unexpected title: %q", descriptor.Title)
	}
	if descriptor.Subtitle == nil || *descriptor.Subtitle != "A Field Guide" {
		t.Fatalf("unexpected subtitle: %v", descriptor.Subtitle)
	}
	if descriptor.PricePrintEUR != 19.99 {
		t.Fatalf("expected minor units converted to 19.99, got %v", descriptor.PricePrintEUR)
	}
	if descriptor.PriceEbookUSD != 10.99 {
		t.Fatalf("expected minor units converted to 10.99, got %v", descriptor.PriceEbookUSD)
	}

	if len(descriptor.Files) != 2 {
		t.Fatalf("expected 2 copied files, got %v", descriptor.Files)
	}
	wantCover := filepath.Join(dir, "Moon_Atlas_ebook_cover.jpg")
	if descriptor.Files[catalog.RoleEbookCover] != wantCover {
		t.Fatalf("unexpected cover path: %q", descriptor.Files[catalog.RoleEbookCover])
	}
	data, err := os.ReadFile(wantCover)
	if err != nil {
		t.Fatalf("read copied cover: %v", err)
	}
	if string(data) != "jpeg-bytes" {
		t.Fatalf("copied cover content mismatch: %q", data)
	}
	if _, ok := descriptor.Files[catalog.RolePrintCover]; ok {
		t.Fatal("missing asset must be omitted from descriptor files")
	}
}

func TestPrepareBookIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	record := testsupport.NewRecord(4, "Repeat Me")
	p := preparer.New(cfg, logging.NewNop())

	first, _, err := p.PrepareBook(context.Background(), record)
	if err != nil {
		t.Fatalf("first PrepareBook: %v", err)
	}
	second, _, err := p.PrepareBook(context.Background(), record)
	if err != nil {
		t.Fatalf("second PrepareBook: %v", err)
	}
	if first != second {
		t.Fatalf("expected stable directory, got %q then %q", first, second)
	}
	if _, err := preparer.LoadDescriptor(second); err != nil {
		t.Fatalf("LoadDescriptor after re-prepare: %v", err)
	}
}

func TestPrepareBatchWritesSummaryAndListsDirectories(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	records := []catalog.Record{
		testsupport.NewRecord(0, "First Book"),
		testsupport.NewRecord(1, "Second Book"),
		testsupport.NewRecord(2, "Third/Book"),
	}

	p := preparer.New(cfg, logging.NewNop())
	summary, err := p.PrepareBatch(context.Background(), records, 5)
	if err != nil {
		t.Fatalf("PrepareBatch returned error: %v", err)
	}
	if len(summary.BooksProcessed) != 3 {
		t.Fatalf("expected 3 processed books, got %v", summary.BooksProcessed)
	}
	if summary.RemainingBooks != 2 {
		t.Fatalf("expected 2 remaining books, got %d", summary.RemainingBooks)
	}

	names, err := preparer.ListPrepared(cfg.Paths.PreparedDir)
	if err != nil {
		t.Fatalf("ListPrepared: %v", err)
	}
	want := []string{"book_000_First_Book", "book_001_Second_Book", "book_002_Third_Book"}
	if len(names) != len(want) {
		t.Fatalf("unexpected prepared directories: %v", names)
	}
	for i, name := range want {
		if names[i] != name {
			t.Fatalf("prepared directory %d: got %q want %q", i, names[i], name)
		}
	}

	matches, err := filepath.Glob(filepath.Join(cfg.Paths.PreparedDir, "batch_summary_*.json"))
	if err != nil {
		t.Fatalf("glob summaries: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected one batch summary, got %v", matches)
	}
}

func TestListPreparedMissingDirectory(t *testing.T) {
	names, err := preparer.ListPrepared(filepath.Join(t.TempDir(), "absent"))
	if err != nil {
		t.Fatalf("ListPrepared: %v", err)
	}
	if len(names) != 0 {
		t.Fatalf("expected no names, got %v", names)
	}
}

func TestSanitizeTitle(t *testing.T) {
	cases := map[string]string{
		"Plain":            "Plain",
		"With Spaces Here": "With_Spaces_Here",
		"Slash/And\\Back":  "Slash_And_Back",
		"  Trimmed  ":      "Trimmed",
	}
	for input, want := range cases {
		if got := preparer.SanitizeTitle(input); got != want {
			t.Fatalf("SanitizeTitle(%q) = %q, want %q", input, got, want)
		}
	}
}
