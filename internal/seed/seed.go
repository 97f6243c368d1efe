package seed

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"

	"coursemart/internal/importer"
)

//go:embed courses.csv
var demoCatalog []byte

// Apply loads the demo catalog for manual testing. It is idempotent because
// every write is an upsert keyed by course and category key.
func Apply(ctx context.Context, courses importer.CourseWriter, categories importer.CategoryWriter) (int, error) {
	n, err := importer.NewCSVImporter(bytes.NewReader(demoCatalog), courses, categories).Run(ctx)
	if err != nil {
		return n, fmt.Errorf("seed catalog: %w", err)
	}
	return n, nil
}
