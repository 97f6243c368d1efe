package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"coursemart/internal/domain"
)

type CourseWriter interface {
	UpsertCourse(ctx context.Context, c domain.Course) (*domain.Course, error)
}

type CategoryWriter interface {
	UpsertCategory(ctx context.Context, c domain.Category) (*domain.Category, error)
}

// CSVImporter loads a course catalog export. Expected headers:
// key,title,description,price,currency,image,category.key,category.name
// Categories are created the first time a row references them.
type CSVImporter struct {
	reader     *csv.Reader
	courses    CourseWriter
	categories CategoryWriter
	seen       map[string]bool
}

func NewCSVImporter(r io.Reader, courses CourseWriter, categories CategoryWriter) *CSVImporter {
	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1 // rows may have trailing commas
	return &CSVImporter{
		reader:     csvr,
		courses:    courses,
		categories: categories,
		seen:       make(map[string]bool),
	}
}

type csvRow struct {
	line         int
	Key          string
	Title        string
	Desc         string
	Price        float64
	Currency     string
	Image        string
	CategoryKey  string
	CategoryName string
}

// Run upserts every course row and returns how many courses were written.
func (i *CSVImporter) Run(ctx context.Context) (int, error) {
	headers, err := i.reader.Read()
	if err != nil {
		return 0, fmt.Errorf("read headers: %w", err)
	}
	index := headerIndex(headers)
	if _, ok := index["key"]; !ok {
		return 0, errors.New("read headers: key column missing")
	}

	imported := 0
	line := 1
	for {
		record, err := i.reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return imported, fmt.Errorf("read row %d: %w", line, err)
		}

		row, err := parseRow(record, index)
		if err != nil {
			return imported, fmt.Errorf("row %d: %w", line, err)
		}
		if row == nil {
			continue
		}
		row.line = line
		if err := i.save(ctx, row); err != nil {
			return imported, err
		}
		imported++
	}
	return imported, nil
}

func (i *CSVImporter) save(ctx context.Context, row *csvRow) error {
	if row.Title == "" {
		return fmt.Errorf("row %d: title required for key %q", row.line, row.Key)
	}
	if row.CategoryKey != "" && !i.seen[row.CategoryKey] {
		name := row.CategoryName
		if name == "" {
			name = titleCase(row.CategoryKey)
		}
		if _, err := i.categories.UpsertCategory(ctx, domain.Category{Key: row.CategoryKey, Name: name, Slug: row.CategoryKey}); err != nil {
			return fmt.Errorf("upsert category %q: %w", row.CategoryKey, err)
		}
		i.seen[row.CategoryKey] = true
	}

	_, err := i.courses.UpsertCourse(ctx, domain.Course{
		CategoryKey: row.CategoryKey,
		Key:         row.Key,
		Title:       row.Title,
		Description: row.Desc,
		Price:       row.Price,
		Currency:    row.Currency,
		Image:       row.Image,
	})
	if err != nil {
		return fmt.Errorf("upsert course %q: %w", row.Key, err)
	}
	return nil
}

func headerIndex(headers []string) map[string]int {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return idx
}

// parseRow returns nil for blank rows. A blank price means the course is free.
func parseRow(record []string, index map[string]int) (*csvRow, error) {
	key := pick(record, index, "key")
	if key == "" {
		return nil, nil
	}
	row := &csvRow{
		Key:          key,
		Title:        pick(record, index, "title"),
		Desc:         pick(record, index, "description"),
		Currency:     strings.ToUpper(pick(record, index, "currency")),
		Image:        pick(record, index, "image"),
		CategoryKey:  pick(record, index, "category.key"),
		CategoryName: pick(record, index, "category.name"),
	}
	if raw := pick(record, index, "price"); raw != "" {
		price, err := strconv.ParseFloat(raw, 64)
		if err != nil || price < 0 {
			return nil, fmt.Errorf("invalid price %q for key %q", raw, key)
		}
		row.Price = price
	}
	return row, nil
}

func pick(record []string, index map[string]int, key string) string {
	pos, ok := index[key]
	if !ok || pos >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[pos])
}

func titleCase(key string) string {
	words := strings.FieldsFunc(key, func(r rune) bool { return r == '-' || r == '_' })
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
