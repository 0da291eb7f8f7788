// Package dataset owns the canonical address dataset: merging new batches
// into it, keeping it sorted and persisting it safely.
package dataset

import (
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/cepsync/internal/model"
)

// MergeResult is the outcome of merging a batch into the dataset.
type MergeResult struct {
	Records    []model.AddressRecord
	Added      int
	Duplicates int
	// NewRegions lists, sorted, regions of added records that the existing
	// dataset did not contain.
	NewRegions []string
	// MoreComplete lists codes of discarded duplicates that carried more
	// filled fields than the entry kept.
	MoreComplete []string
}

// Merge appends incoming records whose code is not yet known. The existing
// entry always wins a collision, including collisions inside the batch.
// Neither input is modified.
func Merge(existing, incoming []model.AddressRecord) MergeResult {
	out := make([]model.AddressRecord, 0, len(existing)+len(incoming))
	out = append(out, existing...)

	byCode := make(map[string]int, len(out))
	regions := make(map[string]bool)
	for i, r := range out {
		byCode[r.Code] = i
		regions[r.Region] = true
	}

	res := MergeResult{}
	newRegions := make(map[string]bool)
	for _, r := range incoming {
		if i, ok := byCode[r.Code]; ok {
			res.Duplicates++
			if r.Filled() > out[i].Filled() {
				res.MoreComplete = append(res.MoreComplete, r.Code)
			}
			continue
		}
		byCode[r.Code] = len(out)
		out = append(out, r)
		res.Added++
		if r.Region != "" && !regions[r.Region] {
			newRegions[r.Region] = true
		}
	}

	Sort(out)
	res.Records = out
	for reg := range newRegions {
		res.NewRegions = append(res.NewRegions, reg)
	}
	sort.Strings(res.NewRegions)
	return res
}

func less(a, b model.AddressRecord) bool {
	if a.Region != b.Region {
		return a.Region < b.Region
	}
	if a.City != b.City {
		return a.City < b.City
	}
	return a.Street < b.Street
}

// Sort orders records by region, city, then street using byte-wise
// comparison. Equal keys keep their relative order.
func Sort(records []model.AddressRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return less(records[i], records[j])
	})
}

// IsSorted reports whether records are already in Sort order.
func IsSorted(records []model.AddressRecord) bool {
	return sort.SliceIsSorted(records, func(i, j int) bool {
		return less(records[i], records[j])
	})
}

// Verify checks that records are sorted, every code is unique and every
// record carries the required fields.
func Verify(records []model.AddressRecord) error {
	seen := make(map[string]int, len(records))
	for i, r := range records {
		if r.Code == "" || r.Street == "" || r.City == "" {
			return eris.Errorf("dataset: record %d (%q) is missing a required field", i, r.Code)
		}
		if j, ok := seen[r.Code]; ok {
			return eris.Errorf("dataset: code %s appears at %d and %d", r.Code, j, i)
		}
		seen[r.Code] = i
		if i > 0 && less(r, records[i-1]) {
			return eris.Errorf("dataset: record %d (%s) is out of order", i, r.Code)
		}
	}
	return nil
}

// Stats summarizes a dataset.
type Stats struct {
	Total    int            `json:"total"`
	Regions  map[string]int `json:"regions"`
	Cities   int            `json:"cities"`
	Complete int            `json:"complete"`
}

// Summarize counts records per region and distinct cities. Complete counts
// records that also carry a neighborhood and a region.
func Summarize(records []model.AddressRecord) Stats {
	st := Stats{Total: len(records), Regions: make(map[string]int)}
	cities := make(map[string]bool)
	for _, r := range records {
		st.Regions[r.Region]++
		cities[r.City+"/"+r.Region] = true
		if r.Neighborhood != "" && r.Region != "" {
			st.Complete++
		}
	}
	st.Cities = len(cities)
	return st
}
