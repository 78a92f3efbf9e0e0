package core

import (
	"time"

	"github.com/Solar-crew/solar-detector/internal/domain/model"
)

// acquisitionDay is one distinct catalog day in catalog order.
type acquisitionDay struct {
	Key  string // YYYY-MM-DD
	Date time.Time
}

// acquisitionDays groups catalog entries by the date part of their ISO
// timestamp. The first occurrence of a day fixes its position; entries with
// an unparseable or short date are dropped.
func acquisitionDays(entries []model.CatalogEntry) []acquisitionDay {
	seen := make(map[string]struct{}, len(entries))
	days := make([]acquisitionDay, 0, len(entries))

	for _, e := range entries {
		if len(e.AcquisitionDate) < len(model.DateLayout) {
			continue
		}
		key := e.AcquisitionDate[:len(model.DateLayout)]
		if _, ok := seen[key]; ok {
			continue
		}
		date, err := time.Parse(model.DateLayout, key)
		if err != nil {
			continue
		}
		seen[key] = struct{}{}
		days = append(days, acquisitionDay{Key: key, Date: date})
	}

	return days
}
