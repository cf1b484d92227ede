package testsupport

import (
	"bookforge/internal/catalog"
)

// NewRecord builds a minimal valid catalog record for tests.
func NewRecord(index int, title string) catalog.Record {
	return catalog.Record{
		Index:           index,
		Title:           title,
		Author:          "Test Author",
		DescriptionHTML: "<p>Test description.</p>",
		Keywords:        "test,book",
		Language:        "en",
		BISAC:           "FIC000000",
		TrimSize:        "6x9",
		PaperColor:      "white",
		CoverFinish:     "matte",
		PricePrintEUR:   1999,
		PricePrintUSD:   2199,
		PriceEbookEUR:   999,
		PriceEbookUSD:   1099,
		AssetPaths:      map[string]string{},
	}
}
