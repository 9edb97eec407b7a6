package shared

const (
	// MinTableSize is the smallest bucket array a map allocates.
	// It keeps tiny maps from rehashing on their first few inserts and
	// is a power of two, which the probing index arithmetic relies on.
	MinTableSize = 16
)

// TableSizeFor rounds a requested element capacity up to the next
// power of two, floored at MinTableSize.
func TableSizeFor(n int) int {
	if n < MinTableSize {
		return MinTableSize
	}
	return int(NextPowerOf2(uint64(n)))
}
