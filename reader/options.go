package reader

// ReadOptions controls how ReadFile parses one file.
type ReadOptions struct {
	// Flat promotes elements nested inside sequences into the single
	// top-level TagMap, instead of leaving them in a VRSequence value.
	// The sequence's own slot is kept but set to flattenedPlaceholder.
	Flat bool

	// ACRFallback enables the provisional ACR-NEMA big-endian heuristic
	// when a file lacks the "DICM" magic at offset 128.
	ACRFallback bool

	// CaptureCSA runs the csa package over the two Siemens private blobs
	// (0029,1010) and (0029,1020) when present, attaching the decoded
	// csa.Header as the element's Value instead of raw bytes.
	CaptureCSA bool
}

// DefaultReadOptions matches the historical defaults: ACR fallback and CSA
// capture on, sequences left nested.
var DefaultReadOptions = ReadOptions{
	Flat:        false,
	ACRFallback: true,
	CaptureCSA:  true,
}
