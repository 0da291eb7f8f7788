// Package normalize converts raw page fields into canonical address records.
package normalize

import (
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/cepsync/internal/model"
)

// ErrRejected is returned for rows that cannot become an AddressRecord.
var ErrRejected = eris.New("normalize: record rejected")

var (
	spaceRe  = regexp.MustCompile(`\s+`)
	regionRe = regexp.MustCompile(`^[A-Z]{2}$`)
	// "Uberlândia/MG" as rendered by the locality column.
	cityRegionRe = regexp.MustCompile(`^(.+?)\s*/\s*([A-Za-z]{2})$`)
)

// Clean trims, collapses internal whitespace and applies NFC so that the same
// name scraped twice compares byte-equal.
func Clean(s string) string {
	s = norm.NFC.String(s)
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

// Code extracts the digits of a postal code and renders them as NNNNN-NNN.
func Code(s string) (string, error) {
	var digits strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	if len(d) != 8 {
		return "", eris.Wrapf(ErrRejected, "malformed code %q", s)
	}
	return d[:5] + "-" + d[5:], nil
}

// Normalize builds an AddressRecord from raw fields. expectedRegion, when
// non-empty, is used if the page did not surface a region of its own.
func Normalize(raw model.RawFields, expectedRegion string) (model.AddressRecord, error) {
	street := Clean(raw[model.FieldStreet])
	city := Clean(raw[model.FieldCity])
	region := strings.ToUpper(Clean(raw[model.FieldRegion]))

	if m := cityRegionRe.FindStringSubmatch(city); m != nil {
		city = m[1]
		if region == "" {
			region = strings.ToUpper(m[2])
		}
	}
	if region == "" {
		region = strings.ToUpper(strings.TrimSpace(expectedRegion))
	}

	if street == "" {
		return model.AddressRecord{}, eris.Wrap(ErrRejected, "missing street")
	}
	if city == "" {
		return model.AddressRecord{}, eris.Wrap(ErrRejected, "missing city")
	}
	if region != "" && !regionRe.MatchString(region) {
		return model.AddressRecord{}, eris.Wrapf(ErrRejected, "invalid region %q", region)
	}

	code, err := Code(raw[model.FieldCode])
	if err != nil {
		return model.AddressRecord{}, err
	}

	rec := model.AddressRecord{
		Code:         code,
		Street:       street,
		Neighborhood: Clean(raw[model.FieldNeighborhood]),
		City:         city,
		Region:       region,
	}
	if region != "" {
		rec.Locality = city + "/" + region
	}
	return rec, nil
}
