package location

import (
	"strings"

	"github.com/dcms-nepal/dcms/internal/domain"
)

// Selection tracks a cascading province/district/office choice. Changing a
// level clears every level below it.
type Selection struct {
	catalog  *Catalog
	province string
	district string
	office   string
}

// NewSelection starts an empty selection against catalog. A nil catalog is allowed.
func NewSelection(catalog *Catalog) *Selection {
	return &Selection{catalog: catalog}
}

// ChooseProvince sets the province and resets district and office.
func (s *Selection) ChooseProvince(province string) {
	s.province = strings.TrimSpace(province)
	s.district = ""
	s.office = ""
}

// ChooseDistrict sets the district and resets office.
func (s *Selection) ChooseDistrict(district string) {
	s.district = strings.TrimSpace(district)
	s.office = ""
}

// ChooseOffice sets the office.
func (s *Selection) ChooseOffice(office string) {
	s.office = strings.TrimSpace(office)
}

// DistrictOptions lists the districts selectable for the current province.
func (s *Selection) DistrictOptions() []string {
	if s.province == "" {
		return []string{}
	}
	return s.catalog.DistrictsFor(s.province)
}

// OfficeOptions lists the offices selectable for the current district.
func (s *Selection) OfficeOptions() []string {
	if s.district == "" {
		return []string{}
	}
	return s.catalog.OfficesFor(s.province, s.district)
}

// Location returns the current triple.
func (s *Selection) Location() domain.Location {
	return domain.Location{Province: s.province, District: s.district, Office: s.office}
}

// Complete reports whether the current triple is fully chosen and valid.
func (s *Selection) Complete() bool {
	return s.catalog.Validate(s.province, s.district, s.office)
}
