package scanner

import "fmt"

// TimeRange is a requested posting recency window.
type TimeRange string

// Accepted time ranges.
const (
	Range1Day   TimeRange = "1d"
	Range3Days  TimeRange = "3d"
	Range7Days  TimeRange = "7d"
	Range14Days TimeRange = "14d"
	Range30Days TimeRange = "30d"
)

type rangeSpec struct {
	days   int
	bucket string
}

// The provider only knows coarse buckets, so 14d and 30d both ask for "month"
// and the local window filter trims the excess.
var ranges = map[TimeRange]rangeSpec{
	Range1Day:   {days: 1, bucket: "today"},
	Range3Days:  {days: 3, bucket: "3days"},
	Range7Days:  {days: 7, bucket: "week"},
	Range14Days: {days: 14, bucket: "month"},
	Range30Days: {days: 30, bucket: "month"},
}

// ParseTimeRange validates raw against the accepted set.
func ParseTimeRange(raw string) (TimeRange, error) {
	tr := TimeRange(raw)
	if _, ok := ranges[tr]; !ok {
		return "", fmt.Errorf("%w: %q (expected one of 1d, 3d, 7d, 14d, 30d)", ErrInvalidTimeRange, raw)
	}
	return tr, nil
}

// Days is the local filter window.
func (t TimeRange) Days() int {
	return ranges[t].days
}

// ProviderBucket is the provider's date_posted value.
func (t TimeRange) ProviderBucket() string {
	return ranges[t].bucket
}
