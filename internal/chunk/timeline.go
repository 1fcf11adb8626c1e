package chunk

import "math"

// TimeKind identifies how a Timeline's signed 64-bit integers are
// interpreted. The set is closed (§9 "Enum vs trait for time kinds"), so it
// is a tagged variant rather than an interface.
type TimeKind int

const (
	// Sequence is a monotonic integer counter (e.g. a frame number).
	Sequence TimeKind = iota
	// DurationNs is a signed duration in nanoseconds.
	DurationNs
	// TimestampNs is a signed Unix timestamp in nanoseconds.
	TimestampNs
)

func (k TimeKind) String() string {
	switch k {
	case Sequence:
		return "sequence"
	case DurationNs:
		return "duration_ns"
	case TimestampNs:
		return "timestamp_ns"
	default:
		return "unknown"
	}
}

// Timeline is a named integer axis that rows can be addressed by.
type Timeline struct {
	Name string
	Kind TimeKind
}

// TimeRange is a closed interval [Min, Max] on a Timeline. An empty range
// (no bound) is represented by IsEmpty returning true.
type TimeRange struct {
	Min, Max int64
	empty    bool
}

// Unbounded is the range returned for static chunks queried on any timeline
// (§4.1 "static chunk ... time_range queries for any timeline return
// 'unbounded'").
func Unbounded() TimeRange {
	return TimeRange{Min: math.MinInt64, Max: math.MaxInt64}
}

// EmptyRange is the range of a component/timeline pair with zero matching rows.
func EmptyRange() TimeRange {
	return TimeRange{empty: true}
}

// IsEmpty reports whether the range contains no times at all.
func (r TimeRange) IsEmpty() bool { return r.empty }

// Contains reports whether t falls within the closed range.
func (r TimeRange) Contains(t int64) bool {
	if r.empty {
		return false
	}
	return t >= r.Min && t <= r.Max
}

// Overlaps reports whether two closed ranges intersect.
func (r TimeRange) Overlaps(other TimeRange) bool {
	if r.empty || other.empty {
		return false
	}
	return r.Min <= other.Max && other.Min <= r.Max
}

// Length returns Max-Min, or 0 for an empty range.
func (r TimeRange) Length() int64 {
	if r.empty {
		return 0
	}
	return r.Max - r.Min
}

// TimeColumn is a dense, non-nullable array of times for one timeline, plus
// the metadata the index needs: whether it is sorted and its closed bounds
// (§3 "Time column").
type TimeColumn struct {
	Timeline Timeline
	Times    []int64
	Sorted   bool
	Min, Max int64
}

// NewTimeColumn builds a TimeColumn from dense times, computing Sorted and
// [Min,Max] in one pass (§4.1 "Builders ... compute sorted and per-column
// [min,max] in one pass").
func NewTimeColumn(tl Timeline, times []int64) TimeColumn {
	tc := TimeColumn{Timeline: tl, Times: times, Sorted: true}
	if len(times) == 0 {
		return tc
	}
	tc.Min, tc.Max = times[0], times[0]
	for i, t := range times {
		if t < tc.Min {
			tc.Min = t
		}
		if t > tc.Max {
			tc.Max = t
		}
		if i > 0 && times[i-1] > t {
			tc.Sorted = false
		}
	}
	return tc
}

// Range returns the column's closed time range, or EmptyRange for zero rows.
func (tc TimeColumn) Range() TimeRange {
	if len(tc.Times) == 0 {
		return EmptyRange()
	}
	return TimeRange{Min: tc.Min, Max: tc.Max}
}
