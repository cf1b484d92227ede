// Package preparer turns catalog records into prepared book directories.
// Each prepared directory is self-contained: copied asset files plus a
// metadata.json descriptor, so a later upload run needs nothing but the
// directory itself.
package preparer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"bookforge/internal/catalog"
	"bookforge/internal/config"
	"bookforge/internal/fileutil"
	"bookforge/internal/logging"
	"bookforge/internal/services"
)

// Preparer copies book assets into per-book directories and writes their
// descriptors.
type Preparer struct {
	cfg    *config.Config
	logger *slog.Logger
	now    func() time.Time
}

// New constructs a Preparer.
func New(cfg *config.Config, logger *slog.Logger) *Preparer {
	return &Preparer{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "preparer"),
		now:    time.Now,
	}
}

// Summary describes one preparation batch.
type Summary struct {
	ProcessedAt          time.Time `json:"processed_at"`
	BooksProcessed       []int     `json:"books_processed"`
	PreparedDirectories  []string  `json:"prepared_directories"`
	RemainingBooks       int       `json:"remaining_books"`
	MissingAssetWarnings int       `json:"missing_asset_warnings"`
}

// PrepareBatch prepares every record in records. totalCatalog is the full
// catalog size, used to report the number of books not yet prepared.
// Preparation is idempotent: re-preparing a book overwrites its directory
// contents in place.
func (p *Preparer) PrepareBatch(ctx context.Context, records []catalog.Record, totalCatalog int) (*Summary, error) {
	summary := &Summary{ProcessedAt: p.now()}
	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		dir, missing, err := p.PrepareBook(ctx, record)
		if err != nil {
			return nil, err
		}
		summary.BooksProcessed = append(summary.BooksProcessed, record.Index)
		summary.PreparedDirectories = append(summary.PreparedDirectories, dir)
		summary.MissingAssetWarnings += missing
	}
	summary.RemainingBooks = totalCatalog - len(summary.BooksProcessed)

	if len(summary.BooksProcessed) > 0 {
		if err := p.writeSummary(summary); err != nil {
			return nil, err
		}
	}
	return summary, nil
}

// PrepareBook prepares a single catalog record. It returns the absolute path
// of the prepared directory and the number of asset roles whose source file
// was missing. Missing source files are soft: they are logged and omitted
// from the descriptor, never fatal.
func (p *Preparer) PrepareBook(ctx context.Context, record catalog.Record) (string, int, error) {
	logger := logging.WithContext(ctx, p.logger)

	dirName := DirName(record.Index, record.Title)
	bookDir := filepath.Join(p.cfg.Paths.PreparedDir, dirName)
	if err := os.MkdirAll(bookDir, 0o755); err != nil {
		return "", 0, services.Wrap(services.ErrValidation, "preparer", "create directory",
			fmt.Sprintf("create %s", bookDir), err)
	}

	logger.Info("preparing book",
		logging.String("title", record.Title),
		logging.Int("catalog_index", record.Index),
		logging.String("directory", bookDir))

	sanitized := SanitizeTitle(record.Title)
	copied := make(map[string]string)
	missing := 0
	for _, role := range catalog.Roles {
		source := record.AssetPaths[role]
		if source == "" {
			missing++
			logger.Warn("asset path not set", logging.String("role", role), logging.String("title", record.Title))
			continue
		}
		if _, err := os.Stat(source); err != nil {
			missing++
			logger.Warn("asset file not found",
				logging.String("role", role),
				logging.String("source", source),
				logging.String("title", record.Title))
			continue
		}
		destName := fmt.Sprintf("%s_%s%s", sanitized, role, filepath.Ext(source))
		destPath := filepath.Join(bookDir, destName)
		if err := fileutil.CopyFileVerified(source, destPath); err != nil {
			return "", 0, services.Wrap(services.ErrValidation, "preparer", "copy asset",
				fmt.Sprintf("copy %s asset for %q", role, record.Title), err)
		}
		copied[role] = destPath
		logger.Info("copied asset", logging.String("role", role), logging.String("destination", destName))
	}

	descriptor := descriptorFromRecord(record, copied, p.now())
	if err := p.writeDescriptor(bookDir, descriptor); err != nil {
		return "", 0, err
	}
	return bookDir, missing, nil
}

func descriptorFromRecord(record catalog.Record, files map[string]string, preparedAt time.Time) *Descriptor {
	var subtitle *string
	if trimmed := strings.TrimSpace(record.Subtitle); trimmed != "" {
		subtitle = &trimmed
	}
	return &Descriptor{
		Title:           record.Title,
		Subtitle:        subtitle,
		Author:          record.Author,
		DescriptionHTML: record.DescriptionHTML,
		Keywords:        record.Keywords,
		Language:        record.Language,
		BISAC:           record.BISAC,
		AgeMin:          record.AgeMin,
		AgeMax:          record.AgeMax,
		TrimSize:        record.TrimSize,
		PaperColor:      record.PaperColor,
		CoverFinish:     record.CoverFinish,
		PricePrintEUR:   float64(record.PricePrintEUR) / 100,
		PricePrintUSD:   float64(record.PricePrintUSD) / 100,
		PriceEbookEUR:   float64(record.PriceEbookEUR) / 100,
		PriceEbookUSD:   float64(record.PriceEbookUSD) / 100,
		Files:           files,
		PreparedAt:      preparedAt,
	}
}

func (p *Preparer) writeDescriptor(bookDir string, descriptor *Descriptor) error {
	data, err := json.MarshalIndent(descriptor, "", "  ")
	if err != nil {
		return fmt.Errorf("encode descriptor: %w", err)
	}
	path := filepath.Join(bookDir, DescriptorFilename)
	if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return services.Wrap(services.ErrValidation, "preparer", "write descriptor",
			fmt.Sprintf("write %s", path), err)
	}
	return nil
}

func (p *Preparer) writeSummary(summary *Summary) error {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("encode batch summary: %w", err)
	}
	name := fmt.Sprintf("batch_summary_%s.json", summary.ProcessedAt.Format("20060102_150405"))
	path := filepath.Join(p.cfg.Paths.PreparedDir, name)
	if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("write batch summary: %w", err)
	}
	return nil
}

// SanitizeTitle converts a book title into a filesystem-safe fragment.
// Spaces and path separators become underscores.
func SanitizeTitle(title string) string {
	replacer := strings.NewReplacer(" ", "_", "/", "_", "\\", "_")
	return replacer.Replace(strings.TrimSpace(title))
}

// DirName builds the prepared directory name for a catalog index and title.
// The zero-padded index prefix keeps lexical order equal to catalog order.
func DirName(index int, title string) string {
	return fmt.Sprintf("book_%03d_%s", index, SanitizeTitle(title))
}
