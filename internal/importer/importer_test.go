package importer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"coursemart/internal/domain"
)

type stubCourseRepo struct {
	items []domain.Course
	err   error
}

type stubCategoryRepo struct {
	items []domain.Category
}

func (s *stubCourseRepo) UpsertCourse(_ context.Context, c domain.Course) (*domain.Course, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.items = append(s.items, c)
	return &c, nil
}

func (s *stubCategoryRepo) UpsertCategory(_ context.Context, c domain.Category) (*domain.Category, error) {
	s.items = append(s.items, c)
	return &c, nil
}

func TestCSVImporter_Run(t *testing.T) {
	csvData := `key,title,description,price,currency,image,category.key,category.name
go-101,Go Basics,Learn Go,499,inr,https://example.com/go.png,dev,Development
react,React Deep Dive,,1299.50,INR,,dev,
,,,,,,,
figma,Figma Intro,Free taster,,INR,,ui-design,`

	courses := &stubCourseRepo{}
	cats := &stubCategoryRepo{}
	imp := NewCSVImporter(strings.NewReader(csvData), courses, cats)

	count, err := imp.Run(context.Background())
	if err != nil {
		t.Fatalf("import run: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 courses imported, got %d", count)
	}
	first := courses.items[0]
	if first.Key != "go-101" || first.Price != 499 || first.Currency != "INR" || first.CategoryKey != "dev" || first.Image == "" {
		t.Fatalf("unexpected first course %+v", first)
	}
	if courses.items[1].Price != 1299.5 {
		t.Fatalf("expected decimal price, got %v", courses.items[1].Price)
	}
	if courses.items[2].Price != 0 {
		t.Fatalf("expected blank price to import as free, got %v", courses.items[2].Price)
	}

	if len(cats.items) != 2 {
		t.Fatalf("expected each category upserted once, got %+v", cats.items)
	}
	if cats.items[0].Name != "Development" || cats.items[1].Name != "Ui Design" {
		t.Fatalf("unexpected category names %+v", cats.items)
	}
}

func TestCSVImporter_RejectsBadRows(t *testing.T) {
	cases := map[string]string{
		"missing key column": "title,price\nGo,10",
		"bad price":          "key,title,price\ngo,Go,ten",
		"negative price":     "key,title,price\ngo,Go,-1",
		"missing title":      "key,title,price\ngo,,10",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			imp := NewCSVImporter(strings.NewReader(data), &stubCourseRepo{}, &stubCategoryRepo{})
			if _, err := imp.Run(context.Background()); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestCSVImporter_StopsOnWriteError(t *testing.T) {
	data := "key,title\na,A\nb,B"
	imp := NewCSVImporter(strings.NewReader(data), &stubCourseRepo{err: errors.New("db down")}, &stubCategoryRepo{})

	count, err := imp.Run(context.Background())
	if err == nil || count != 0 {
		t.Fatalf("expected failure before any import, got count=%d err=%v", count, err)
	}
}
