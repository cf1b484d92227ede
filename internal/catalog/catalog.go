// Package catalog reads the delimited book catalog that drives preparation.
// Each record describes one book: listing metadata, prices in minor currency
// units, and source paths for the four asset roles.
package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"bookforge/internal/services"
)

// Asset roles recognized in catalog records and prepared directories.
const (
	RoleEbookCover = "ebook_cover"
	RolePrintCover = "print_cover"
	RoleEpub       = "epub"
	RoleDocx       = "docx"
)

// Roles lists the asset roles in catalog column order.
var Roles = []string{RoleEbookCover, RolePrintCover, RoleEpub, RoleDocx}

// Record is one catalog row. Prices are kept in minor currency units exactly
// as they appear in the file; conversion to major units happens when the
// book descriptor is written.
type Record struct {
	Index           int
	Title           string
	Subtitle        string
	Author          string
	DescriptionHTML string
	Keywords        string
	Language        string
	BISAC           string
	AgeMin          *int
	AgeMax          *int
	TrimSize        string
	PaperColor      string
	CoverFinish     string

	PricePrintEUR int64
	PricePrintUSD int64
	PriceEbookEUR int64
	PriceEbookUSD int64

	// Source file paths by asset role. Entries may be empty or point at
	// files that no longer exist; the preparer treats both as soft.
	AssetPaths map[string]string
}

var requiredColumns = []string{
	"title", "author", "description_html", "keywords", "language", "bisac",
	"trim_size", "paper_color", "cover_finish",
	"price_print_eur", "price_print_usd", "price_ebook_eur", "price_ebook_usd",
	"eBook-Cover", "Print-Cover", "epub", "docx",
}

var roleColumns = map[string]string{
	RoleEbookCover: "eBook-Cover",
	RolePrintCover: "Print-Cover",
	RoleEpub:       "epub",
	RoleDocx:       "docx",
}

// Skipped describes a catalog row that could not be parsed. The row keeps
// its position in the index sequence so directory numbering for the rows
// around it is unaffected.
type Skipped struct {
	Index int
	Err   error
}

// Load reads all records from the catalog file at path, using sep as the
// field separator. The first row must be a header naming every required
// column; column order is free. Malformed rows are returned as Skipped
// entries alongside the good records, never as an error.
func Load(path string, sep rune) ([]Record, []Skipped, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, services.Wrap(services.ErrNotFound, "catalog", "load", "open catalog file", err)
	}
	defer file.Close()

	return Parse(file, sep)
}

// Parse reads catalog records from r. Split out from Load for tests.
func Parse(r io.Reader, sep rune) ([]Record, []Skipped, error) {
	reader := csv.NewReader(r)
	reader.Comma = sep
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, services.Wrap(services.ErrValidation, "catalog", "parse", "catalog file is empty", nil)
		}
		return nil, nil, services.Wrap(services.ErrValidation, "catalog", "parse", "read catalog header", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(name)] = i
	}
	var missing []string
	for _, name := range requiredColumns {
		if _, ok := columns[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, nil, services.Wrap(services.ErrValidation, "catalog", "parse",
			fmt.Sprintf("catalog header missing columns: %s", strings.Join(missing, ", ")), nil)
	}

	var records []Record
	var skipped []Skipped
	for index := 0; ; index++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			skipped = append(skipped, Skipped{Index: index, Err: services.Wrap(
				services.ErrValidation, "catalog", "parse",
				fmt.Sprintf("read catalog row %d", index), err)})
			continue
		}
		record, err := parseRow(row, columns, index)
		if err != nil {
			skipped = append(skipped, Skipped{Index: index, Err: err})
			continue
		}
		records = append(records, record)
	}
	return records, skipped, nil
}

func parseRow(row []string, columns map[string]int, index int) (Record, error) {
	field := func(name string) string {
		pos, ok := columns[name]
		if !ok || pos >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[pos])
	}

	record := Record{
		Index:           index,
		Title:           field("title"),
		Subtitle:        field("subtitle"),
		Author:          field("author"),
		DescriptionHTML: field("description_html"),
		Keywords:        field("keywords"),
		Language:        field("language"),
		BISAC:           field("bisac"),
		TrimSize:        field("trim_size"),
		PaperColor:      field("paper_color"),
		CoverFinish:     field("cover_finish"),
		AssetPaths:      make(map[string]string, len(roleColumns)),
	}

	if record.Title == "" {
		return Record{}, services.Wrap(services.ErrValidation, "catalog", "parse",
			fmt.Sprintf("catalog row %d has an empty title", index), nil)
	}

	var err error
	if record.AgeMin, err = parseOptionalInt(field("age_min")); err != nil {
		return Record{}, rowFieldError(index, "age_min", err)
	}
	if record.AgeMax, err = parseOptionalInt(field("age_max")); err != nil {
		return Record{}, rowFieldError(index, "age_max", err)
	}

	if record.PricePrintEUR, err = parseMinorUnits(field("price_print_eur")); err != nil {
		return Record{}, rowFieldError(index, "price_print_eur", err)
	}
	if record.PricePrintUSD, err = parseMinorUnits(field("price_print_usd")); err != nil {
		return Record{}, rowFieldError(index, "price_print_usd", err)
	}
	if record.PriceEbookEUR, err = parseMinorUnits(field("price_ebook_eur")); err != nil {
		return Record{}, rowFieldError(index, "price_ebook_eur", err)
	}
	if record.PriceEbookUSD, err = parseMinorUnits(field("price_ebook_usd")); err != nil {
		return Record{}, rowFieldError(index, "price_ebook_usd", err)
	}

	for role, column := range roleColumns {
		if path := CleanPath(field(column)); path != "" {
			record.AssetPaths[role] = path
		}
	}
	return record, nil
}

func rowFieldError(index int, column string, err error) error {
	return services.Wrap(services.ErrValidation, "catalog", "parse",
		fmt.Sprintf("catalog row %d column %s", index, column), err)
}

func parseOptionalInt(value string) (*int, error) {
	if value == "" {
		return nil, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("not an integer: %q", value)
	}
	return &parsed, nil
}

func parseMinorUnits(value string) (int64, error) {
	if value == "" {
		return 0, fmt.Errorf("price is empty")
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("not a whole number of minor units: %q", value)
	}
	if parsed < 0 {
		return 0, fmt.Errorf("price is negative: %d", parsed)
	}
	return parsed, nil
}

// CleanPath strips surrounding whitespace and stray quote characters that
// spreadsheet exports wrap around path cells.
func CleanPath(value string) string {
	trimmed := strings.TrimSpace(value)
	trimmed = strings.Trim(trimmed, `"`)
	return strings.TrimSpace(trimmed)
}
