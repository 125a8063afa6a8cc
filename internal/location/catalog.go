// Package location resolves the province -> district -> office hierarchy that
// complaints are routed through.
//
// A Catalog is an immutable snapshot. Every query on a nil Catalog returns an
// empty result so callers treat "not loaded yet" exactly like "nothing selected".
// Names are matched exactly; input is trimmed where it enters (Draft.Normalized,
// Selection), never here.
package location

import (
	"slices"
	"strings"

	"github.com/dcms-nepal/dcms/internal/domain"
)

// Payload mirrors the body of GET /locations/.
type Payload struct {
	Provinces []string                       `json:"provinces"`
	Districts map[string][]string            `json:"districts"`
	Offices   map[string]map[string][]string `json:"offices"`
}

type districtKey struct {
	province string
	district string
}

// Catalog is a read-only snapshot of the location hierarchy.
type Catalog struct {
	provinces           []string
	districtsByProvince map[string][]string
	officesByDistrict   map[districtKey][]string
}

// FromPayload builds a catalog, dropping any district or office that does not
// hang off a listed parent so the hierarchy invariant holds by construction.
func FromPayload(payload Payload) *Catalog {
	catalog := &Catalog{
		provinces:           make([]string, 0, len(payload.Provinces)),
		districtsByProvince: make(map[string][]string, len(payload.Provinces)),
		officesByDistrict:   make(map[districtKey][]string),
	}

	for _, rawProvince := range payload.Provinces {
		province := strings.TrimSpace(rawProvince)
		if province == "" || slices.Contains(catalog.provinces, province) {
			continue
		}
		catalog.provinces = append(catalog.provinces, province)

		districts := dedupe(lookupDistricts(payload, rawProvince, province))
		catalog.districtsByProvince[province] = districts

		officeTable := lookupOffices(payload, rawProvince, province)
		for _, district := range districts {
			offices := dedupe(officesIn(officeTable, district))
			if len(offices) == 0 {
				continue
			}
			catalog.officesByDistrict[districtKey{province: province, district: district}] = offices
		}
	}

	return catalog
}

// Provinces returns every province in catalog order.
func (c *Catalog) Provinces() []string {
	if c == nil {
		return []string{}
	}
	return slices.Clone(c.provinces)
}

// DistrictsFor returns the districts of province, or an empty slice when the
// province is unknown.
func (c *Catalog) DistrictsFor(province string) []string {
	if c == nil {
		return []string{}
	}
	districts, ok := c.districtsByProvince[province]
	if !ok {
		return []string{}
	}
	return slices.Clone(districts)
}

// OfficesFor returns the offices of (province, district), or an empty slice
// when the pair is not in the hierarchy.
func (c *Catalog) OfficesFor(province, district string) []string {
	if c == nil {
		return []string{}
	}
	key := districtKey{province: province, district: district}
	offices, ok := c.officesByDistrict[key]
	if !ok {
		return []string{}
	}
	return slices.Clone(offices)
}

// Validate reports whether the triple is reachable through the hierarchy. It
// is exactly district ∈ DistrictsFor(province) and office ∈ OfficesFor(province, district).
func (c *Catalog) Validate(province, district, office string) bool {
	if !slices.Contains(c.DistrictsFor(province), district) {
		return false
	}
	return slices.Contains(c.OfficesFor(province, district), office)
}

// ValidateLocation is Validate over a domain.Location.
func (c *Catalog) ValidateLocation(loc domain.Location) bool {
	return c.Validate(loc.Province, loc.District, loc.Office)
}

// Loaded reports whether the catalog holds any provinces.
func (c *Catalog) Loaded() bool {
	return c != nil && len(c.provinces) > 0
}

func lookupDistricts(payload Payload, rawProvince, province string) []string {
	if districts, ok := payload.Districts[rawProvince]; ok {
		return districts
	}
	return payload.Districts[province]
}

func lookupOffices(payload Payload, rawProvince, province string) map[string][]string {
	if offices, ok := payload.Offices[rawProvince]; ok {
		return offices
	}
	return payload.Offices[province]
}

func officesIn(table map[string][]string, district string) []string {
	if offices, ok := table[district]; ok {
		return offices
	}
	for rawDistrict, offices := range table {
		if strings.TrimSpace(rawDistrict) == district {
			return offices
		}
	}
	return nil
}

func dedupe(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" || slices.Contains(out, value) {
			continue
		}
		out = append(out, value)
	}
	return out
}
