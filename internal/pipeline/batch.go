package pipeline

import (
	"github.com/sells-group/cepsync/internal/model"
	"github.com/sells-group/cepsync/internal/normalize"
)

// renormalize runs exported records back through the normalizer so a hand
// edited batch cannot smuggle malformed entries into the dataset.
func renormalize(records []model.AddressRecord) ([]model.AddressRecord, int) {
	out := make([]model.AddressRecord, 0, len(records))
	rejected := 0
	for _, r := range records {
		raw := model.RawFields{
			model.FieldCode:         r.Code,
			model.FieldStreet:       r.Street,
			model.FieldNeighborhood: r.Neighborhood,
			model.FieldCity:         r.City,
			model.FieldRegion:       r.Region,
		}
		rec, err := normalize.Normalize(raw, r.Region)
		if err != nil {
			rejected++
			continue
		}
		out = append(out, rec)
	}
	return out, rejected
}
