package location

import (
	"slices"
	"testing"
)

func bagmatiCatalog() *Catalog {
	return FromPayload(Payload{
		Provinces: []string{"Bagmati"},
		Districts: map[string][]string{"Bagmati": {"Kathmandu"}},
		Offices: map[string]map[string][]string{
			"Bagmati": {"Kathmandu": {"Electricity Office"}},
		},
	})
}

func richCatalog() *Catalog {
	return FromPayload(Payload{
		Provinces: []string{"Bagmati", "Gandaki"},
		Districts: map[string][]string{
			"Bagmati": {"Kathmandu", "Lalitpur", "Bhaktapur"},
			"Gandaki": {"Kaski"},
		},
		Offices: map[string]map[string][]string{
			"Bagmati": {
				"Kathmandu": {"Ward Office", "Water Supply"},
				"Lalitpur":  {"Ward Office"},
			},
			"Gandaki": {
				"Kaski": {"Municipality Office"},
			},
		},
	})
}

func TestBagmatiScenario(t *testing.T) {
	t.Parallel()

	catalog := bagmatiCatalog()
	if !catalog.Validate("Bagmati", "Kathmandu", "Electricity Office") {
		t.Fatal("Validate(Bagmati, Kathmandu, Electricity Office) = false, want true")
	}
	if catalog.Validate("Bagmati", "Lalitpur", "X") {
		t.Fatal("Validate(Bagmati, Lalitpur, X) = true, want false")
	}
}

func TestValidateDoesNotTrimPaddedNames(t *testing.T) {
	t.Parallel()

	catalog := bagmatiCatalog()
	district, office := "Kathmandu ", " Electricity Office"
	sequential := slices.Contains(catalog.DistrictsFor("Bagmati"), district) &&
		slices.Contains(catalog.OfficesFor("Bagmati", district), office)
	if got := catalog.Validate("Bagmati", district, office); got || sequential {
		t.Fatalf("Validate(padded) = %v, sequential = %v, want both false", got, sequential)
	}

	selection := NewSelection(catalog)
	selection.ChooseProvince(" Bagmati")
	selection.ChooseDistrict(district)
	selection.ChooseOffice(office)
	if !selection.Complete() {
		t.Fatalf("selection %+v should trim its input and resolve", selection.Location())
	}
}

func TestUnknownProvinceYieldsEmptyDistricts(t *testing.T) {
	t.Parallel()

	catalog := richCatalog()
	for _, province := range []string{"", "Koshi", "bagmati", "Lumbini"} {
		districts := catalog.DistrictsFor(province)
		if districts == nil || len(districts) != 0 {
			t.Fatalf("DistrictsFor(%q) = %#v, want empty non-nil slice", province, districts)
		}
	}
}

func TestNilCatalogFailsSoft(t *testing.T) {
	t.Parallel()

	var catalog *Catalog
	if got := catalog.Provinces(); len(got) != 0 {
		t.Fatalf("Provinces() = %v, want empty", got)
	}
	if got := catalog.DistrictsFor("Bagmati"); len(got) != 0 {
		t.Fatalf("DistrictsFor() = %v, want empty", got)
	}
	if got := catalog.OfficesFor("Bagmati", "Kathmandu"); len(got) != 0 {
		t.Fatalf("OfficesFor() = %v, want empty", got)
	}
	if catalog.Validate("Bagmati", "Kathmandu", "Ward Office") {
		t.Fatal("Validate() on nil catalog = true, want false")
	}
	if catalog.Loaded() {
		t.Fatal("Loaded() on nil catalog = true")
	}
}

func TestValidateMatchesSequentialLookups(t *testing.T) {
	t.Parallel()

	catalog := richCatalog()
	provinces := []string{"Bagmati", "Gandaki", "Koshi", " Bagmati", ""}
	districts := []string{"Kathmandu", "Lalitpur", "Bhaktapur", "Kaski", "Pokhara", "Kathmandu ", ""}
	offices := []string{"Ward Office", "Water Supply", "Municipality Office", "Police", " Ward Office", ""}

	for _, p := range provinces {
		for _, d := range districts {
			for _, o := range offices {
				want := slices.Contains(catalog.DistrictsFor(p), d) && slices.Contains(catalog.OfficesFor(p, d), o)
				if got := catalog.Validate(p, d, o); got != want {
					t.Fatalf("Validate(%q, %q, %q) = %v, want %v", p, d, o, got, want)
				}
			}
		}
	}
}

func TestCrossProvinceDistrictIsRejected(t *testing.T) {
	t.Parallel()

	catalog := richCatalog()
	if catalog.Validate("Gandaki", "Kathmandu", "Ward Office") {
		t.Fatal("district from another province must not validate")
	}
	if catalog.Validate("Bagmati", "Lalitpur", "Water Supply") {
		t.Fatal("office from a sibling district must not validate")
	}
}

func TestFromPayloadDropsOrphans(t *testing.T) {
	t.Parallel()

	catalog := FromPayload(Payload{
		Provinces: []string{"Bagmati", "Bagmati", " "},
		Districts: map[string][]string{
			"Bagmati": {"Kathmandu", "Kathmandu"},
			"Ghost":   {"Nowhere"},
		},
		Offices: map[string]map[string][]string{
			"Bagmati": {"Kathmandu": {"Ward Office"}, "Lalitpur": {"Ward Office"}},
			"Ghost":   {"Nowhere": {"Office"}},
		},
	})

	if got := catalog.Provinces(); !slices.Equal(got, []string{"Bagmati"}) {
		t.Fatalf("Provinces() = %v, want [Bagmati]", got)
	}
	if got := catalog.DistrictsFor("Bagmati"); !slices.Equal(got, []string{"Kathmandu"}) {
		t.Fatalf("DistrictsFor(Bagmati) = %v, want [Kathmandu]", got)
	}
	if got := catalog.OfficesFor("Bagmati", "Lalitpur"); len(got) != 0 {
		t.Fatalf("OfficesFor(Bagmati, Lalitpur) = %v, want empty", got)
	}
	if got := catalog.DistrictsFor("Ghost"); len(got) != 0 {
		t.Fatalf("DistrictsFor(Ghost) = %v, want empty", got)
	}
}

func TestReturnedSlicesDoNotAliasSnapshot(t *testing.T) {
	t.Parallel()

	catalog := richCatalog()
	districts := catalog.DistrictsFor("Bagmati")
	districts[0] = "Mutated"

	if got := catalog.DistrictsFor("Bagmati"); got[0] != "Kathmandu" {
		t.Fatalf("snapshot mutated through returned slice: %v", got)
	}
}

func TestSelectionCascadesResets(t *testing.T) {
	t.Parallel()

	selection := NewSelection(richCatalog())
	if got := selection.DistrictOptions(); len(got) != 0 {
		t.Fatalf("district options before province = %v, want empty", got)
	}

	selection.ChooseProvince("Bagmati")
	selection.ChooseDistrict("Kathmandu")
	selection.ChooseOffice("Water Supply")
	if !selection.Complete() {
		t.Fatal("selection should be complete")
	}

	selection.ChooseProvince("Gandaki")
	loc := selection.Location()
	if loc.District != "" || loc.Office != "" {
		t.Fatalf("province change did not reset lower levels: %+v", loc)
	}
	if got := selection.DistrictOptions(); !slices.Equal(got, []string{"Kaski"}) {
		t.Fatalf("district options = %v, want [Kaski]", got)
	}
	if selection.Complete() {
		t.Fatal("selection should be incomplete after reset")
	}
}

func TestSelectionWithoutCatalogMatchesUnselected(t *testing.T) {
	t.Parallel()

	selection := NewSelection(nil)
	selection.ChooseProvince("Bagmati")
	if got := selection.DistrictOptions(); len(got) != 0 {
		t.Fatalf("district options without catalog = %v, want empty", got)
	}
}
