package k30

// Checksum is the 8 bit wrapping sum used by Senseair frames.
func Checksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return sum
}

// IsValid reports whether the wrapping sum of data equals expected.
// An empty slice sums to 0.
func IsValid(data []byte, expected byte) bool {
	return Checksum(data) == expected
}
