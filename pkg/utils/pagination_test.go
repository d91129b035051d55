package utils

import (
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func paginationFor(t *testing.T, query string) (*Pagination, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest("GET", "/list-videos?"+query, nil)
	rec := httptest.NewRecorder()
	return GetPaginationFromCtx(e.NewContext(req, rec))
}

func TestGetPaginationFromCtx(t *testing.T) {
	cases := []struct {
		name     string
		query    string
		wantPage int
		wantSize int
	}{
		{"defaults", "", 1, defaultPageSize},
		{"explicit", "page=3&size=20", 3, 20},
		{"size capped", "size=500", 1, maxPageSize},
		{"non-positive size falls back", "size=0", 1, defaultPageSize},
		{"page below one clamps", "page=-2", 1, defaultPageSize},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := paginationFor(t, tc.query)
			if err != nil {
				t.Fatalf("GetPaginationFromCtx failed: %v", err)
			}
			if p.GetPage() != tc.wantPage || p.GetSize() != tc.wantSize {
				t.Errorf("page/size = %d/%d, want %d/%d", p.GetPage(), p.GetSize(), tc.wantPage, tc.wantSize)
			}
		})
	}
}

func TestGetPaginationFromCtxRejectsGarbage(t *testing.T) {
	for _, query := range []string{"page=abc", "size=abc"} {
		if _, err := paginationFor(t, query); err == nil {
			t.Errorf("query %q accepted, want error", query)
		}
	}
}

func TestGetOffset(t *testing.T) {
	cases := []struct {
		page, size, want int
	}{
		{1, 10, 0},
		{2, 10, 10},
		{4, 25, 75},
	}
	for _, tc := range cases {
		p := &Pagination{Page: tc.page, Size: tc.size}
		if got := p.GetOffset(); got != tc.want {
			t.Errorf("offset(page=%d size=%d) = %d, want %d", tc.page, tc.size, got, tc.want)
		}
	}
}

func TestGetHasMore(t *testing.T) {
	if !GetHasMore(1, 25, 10) {
		t.Error("page 1 of 25 items reported no more")
	}
	if GetHasMore(3, 25, 10) {
		t.Error("last page reported more")
	}
}
