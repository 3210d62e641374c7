package domain

import "testing"

func TestNewDefaultCategoryMapIsAFreshCopy(t *testing.T) {
	first := NewDefaultCategoryMap()
	second := NewDefaultCategoryMap()

	first[CategoryKey(CategoryFood)] = Category{Name: "changed", Active: false}
	if got := second[CategoryKey(CategoryFood)]; got.Name != "🍔 Food" || !got.Active {
		t.Fatalf("expected independent maps, got %+v", got)
	}
	if len(second.Active()) != len(DefaultCategories) {
		t.Fatalf("expected all defaults active, got %d", len(second.Active()))
	}
}

func TestIsProtectedName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"❓ Other", true},
		{"💰 Income", true},
		{"INCOME", true},
		{"other", true},
		{"🍔 Food", false},
		{"Other stuff", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsProtectedName(tt.name); got != tt.want {
			t.Fatalf("IsProtectedName(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestNextIDNeverReusesIDs(t *testing.T) {
	categories := NewDefaultCategoryMap()
	if got := categories.NextID(); got != FirstCustomCategoryID {
		t.Fatalf("expected first custom id %d, got %d", FirstCustomCategoryID, got)
	}

	categories[CategoryKey(100)] = Category{Name: "Pets", Active: true}
	categories[CategoryKey(101)] = Category{Name: "Gym", Active: false}
	if got := categories.NextID(); got != 102 {
		t.Fatalf("expected 102 after inactive 101, got %d", got)
	}
}

func TestFindByNameAndCustomCount(t *testing.T) {
	categories := NewDefaultCategoryMap()
	categories[CategoryKey(100)] = Category{Name: "Pets", Active: true}
	categories[CategoryKey(101)] = Category{Name: "Gym", Active: false}

	if id, ok := categories.FindByName("Gym"); !ok || id != 101 {
		t.Fatalf("expected to find inactive Gym as 101, got %d (found=%v)", id, ok)
	}
	if _, ok := categories.FindByName("gym"); ok {
		t.Fatalf("expected exact-name matching")
	}
	if got := categories.CustomActiveCount(); got != 1 {
		t.Fatalf("expected one active custom category, got %d", got)
	}
}

func TestParseCategoryKey(t *testing.T) {
	if id, ok := ParseCategoryKey("99"); !ok || id != 99 {
		t.Fatalf("expected 99, got %d (ok=%v)", id, ok)
	}
	for _, key := range []string{"", "abc", "-1"} {
		if _, ok := ParseCategoryKey(key); ok {
			t.Fatalf("expected %q to be rejected", key)
		}
	}
}
