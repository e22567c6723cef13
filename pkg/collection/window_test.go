package collection

import (
	"reflect"
	"testing"
)

func TestComputeWindow(t *testing.T) {
	tests := []struct {
		name        string
		currentPage int
		totalItems  int
		limit       int
		wantTotal   int
		wantPages   []int
		wantFirst   bool
		wantNext    bool
	}{
		{
			name:        "empty collection",
			currentPage: 1,
			totalItems:  0,
			limit:       10,
			wantTotal:   0,
			wantPages:   nil,
			wantFirst:   false,
			wantNext:    false,
		},
		{
			name:        "single partial page",
			currentPage: 1,
			totalItems:  7,
			limit:       10,
			wantTotal:   1,
			wantPages:   []int{1},
		},
		{
			name:        "exact multiple",
			currentPage: 1,
			totalItems:  30,
			limit:       10,
			wantTotal:   3,
			wantPages:   []int{1, 2, 3},
			wantNext:    true,
		},
		{
			name:        "23 items first page",
			currentPage: 1,
			totalItems:  23,
			limit:       10,
			wantTotal:   3,
			wantPages:   []int{1, 2, 3},
			wantNext:    true,
		},
		{
			name:        "23 items last page",
			currentPage: 3,
			totalItems:  23,
			limit:       10,
			wantTotal:   3,
			wantPages:   []int{1, 2, 3},
			wantFirst:   true,
		},
		{
			name:        "window bounded in the middle",
			currentPage: 10,
			totalItems:  200,
			limit:       10,
			wantTotal:   20,
			wantPages:   []int{7, 8, 9, 10, 11, 12, 13},
			wantFirst:   true,
			wantNext:    true,
		},
		{
			name:        "window clipped at the end",
			currentPage: 19,
			totalItems:  200,
			limit:       10,
			wantTotal:   20,
			wantPages:   []int{16, 17, 18, 19, 20},
			wantFirst:   true,
			wantNext:    true,
		},
		{
			name:        "page past the end is clamped",
			currentPage: 4,
			totalItems:  23,
			limit:       10,
			wantTotal:   3,
			wantPages:   []int{1, 2, 3},
			wantFirst:   true,
		},
		{
			name:        "zero limit yields no pages",
			currentPage: 1,
			totalItems:  23,
			limit:       0,
			wantTotal:   0,
			wantPages:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ComputeWindow(tt.currentPage, tt.totalItems, tt.limit)
			if w.TotalPages != tt.wantTotal {
				t.Errorf("TotalPages = %d, want %d", w.TotalPages, tt.wantTotal)
			}
			if !reflect.DeepEqual(w.Pages, tt.wantPages) {
				t.Errorf("Pages = %v, want %v", w.Pages, tt.wantPages)
			}
			if w.CanFirst != tt.wantFirst || w.CanPrev != tt.wantFirst {
				t.Errorf("CanFirst/CanPrev = %v/%v, want %v", w.CanFirst, w.CanPrev, tt.wantFirst)
			}
			if w.CanNext != tt.wantNext || w.CanLast != tt.wantNext {
				t.Errorf("CanNext/CanLast = %v/%v, want %v", w.CanNext, w.CanLast, tt.wantNext)
			}
		})
	}
}

func TestComputeWindow_Properties(t *testing.T) {
	for total := 0; total <= 120; total += 7 {
		for limit := 1; limit <= 25; limit += 4 {
			for page := 1; page <= 20; page++ {
				w := ComputeWindow(page, total, limit)

				wantTotal := (total + limit - 1) / limit
				if w.TotalPages != wantTotal {
					t.Fatalf("(%d,%d,%d): TotalPages = %d, want %d", page, total, limit, w.TotalPages, wantTotal)
				}
				if (len(w.Pages) > 0) != (w.TotalPages > 0) {
					t.Fatalf("(%d,%d,%d): window %v inconsistent with %d pages", page, total, limit, w.Pages, w.TotalPages)
				}
				if len(w.Pages) > 2*WindowRadius+1 {
					t.Fatalf("(%d,%d,%d): window %v too wide", page, total, limit, w.Pages)
				}
				for _, p := range w.Pages {
					if p < 1 || p > w.TotalPages {
						t.Fatalf("(%d,%d,%d): window index %d out of 1..%d", page, total, limit, p, w.TotalPages)
					}
				}
				if again := ComputeWindow(page, total, limit); !reflect.DeepEqual(w, again) {
					t.Fatalf("(%d,%d,%d): not deterministic", page, total, limit)
				}
			}
		}
	}
}

func TestWindow_Contains(t *testing.T) {
	w := ComputeWindow(1, 23, 10)
	for p, want := range map[int]bool{0: false, 1: true, 3: true, 4: false} {
		if got := w.Contains(p); got != want {
			t.Errorf("Contains(%d) = %v, want %v", p, got, want)
		}
	}
}
