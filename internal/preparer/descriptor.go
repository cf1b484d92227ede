package preparer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"bookforge/internal/services"
)

// DescriptorFilename is the per-book metadata file written into each
// prepared directory.
const DescriptorFilename = "metadata.json"

// Descriptor is the self-contained metadata file accompanying a prepared
// book. Prices are in major currency units. Files maps asset roles to
// absolute paths inside the prepared directory; roles whose source file was
// missing at preparation time are absent from the map.
type Descriptor struct {
	Title           string            `json:"title"`
	Subtitle        *string           `json:"subtitle"`
	Author          string            `json:"author"`
	DescriptionHTML string            `json:"description_html"`
	Keywords        string            `json:"keywords"`
	Language        string            `json:"language"`
	BISAC           string            `json:"bisac"`
	AgeMin          *int              `json:"age_min"`
	AgeMax          *int              `json:"age_max"`
	TrimSize        string            `json:"trim_size"`
	PaperColor      string            `json:"paper_color"`
	CoverFinish     string            `json:"cover_finish"`
	PricePrintEUR   float64           `json:"price_print_eur"`
	PricePrintUSD   float64           `json:"price_print_usd"`
	PriceEbookEUR   float64           `json:"price_ebook_eur"`
	PriceEbookUSD   float64           `json:"price_ebook_usd"`
	Files           map[string]string `json:"files"`
	PreparedAt      time.Time         `json:"prepared_at"`
}

// LoadDescriptor reads the metadata file from a prepared book directory.
func LoadDescriptor(bookDir string) (*Descriptor, error) {
	path := filepath.Join(bookDir, DescriptorFilename)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, services.Wrap(services.ErrNotFound, "preparer", "load descriptor",
			fmt.Sprintf("read %s", path), err)
	}
	var descriptor Descriptor
	if err := json.Unmarshal(data, &descriptor); err != nil {
		return nil, services.Wrap(services.ErrValidation, "preparer", "load descriptor",
			fmt.Sprintf("parse %s", path), err)
	}
	if strings.TrimSpace(descriptor.Title) == "" {
		return nil, services.Wrap(services.ErrValidation, "preparer", "load descriptor",
			fmt.Sprintf("%s has an empty title", path), nil)
	}
	return &descriptor, nil
}

// ListPrepared returns the names of all prepared book directories under
// preparedDir, sorted lexically. Directory names carry a zero-padded catalog
// index prefix, so lexical order is catalog order.
func ListPrepared(preparedDir string) ([]string, error) {
	entries, err := os.ReadDir(preparedDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read prepared directory: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), "book_") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}
