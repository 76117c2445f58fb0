package store

import (
	"reflect"
	"testing"
)

func TestTsQueryFrom(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		terms []string
		want  string
	}{
		{"plain terms", []string{"red", "hoodie"}, "red | hoodie"},
		{"strips punctuation", []string{"hoodie!", "(red)"}, "hoodie | red"},
		{"keeps hyphens", []string{"t-shirt"}, "t-shirt"},
		{"splits embedded whitespace", []string{"sweat à capuche"}, "sweat | à | capuche"},
		{"drops symbol-only terms", []string{"???", "hoodie"}, "hoodie"},
		{"empty input", nil, ""},
		{"thai terms survive", []string{"เสื้อยืด"}, "เสื้อยืด"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := tsQueryFrom(tc.terms); got != tc.want {
				t.Fatalf("tsQueryFrom(%v) = %q, want %q", tc.terms, got, tc.want)
			}
		})
	}
}

func TestMatchedProductFields(t *testing.T) {
	t.Parallel()

	p := Product{
		Name:        "Classic Red Hoodie",
		Description: "Soft cotton pullover",
		Category:    "apparel",
		Tags:        []string{"hoodie", "winter"},
	}

	cases := []struct {
		name  string
		terms []string
		want  []string
	}{
		{"name and tags", []string{"hoodie"}, []string{"name", "tags"}},
		{"description only", []string{"cotton"}, []string{"description"}},
		{"case insensitive", []string{"RED"}, []string{"name"}},
		{"no match", []string{"zapato"}, nil},
		{"empty terms ignored", []string{"", "winter"}, []string{"tags"}},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := matchedProductFields(p, tc.terms)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("matchedProductFields(%v) = %v, want %v", tc.terms, got, tc.want)
			}
		})
	}
}

func TestOrderSnapshotMapping(t *testing.T) {
	t.Parallel()

	order := Order{
		ID:         "ord-1",
		CustomerID: "c1",
		Status:     "shipped",
		Items:      []string{"hoodie-red-m"},
		Total:      49.90,
	}

	snap := orderSnapshot(order)
	if snap.OrderID != "ord-1" || snap.Status != "shipped" || snap.Total != 49.90 {
		t.Fatalf("snapshot %+v", snap)
	}
	if len(snap.Items) != 1 || snap.Items[0] != "hoodie-red-m" {
		t.Fatalf("snapshot items %v", snap.Items)
	}
}
