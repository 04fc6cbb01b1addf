package constant

const (
	RequestIDHeader     = "X-Meidash-Request-ID"
	ContextKeyRequestID = "requestid"

	// NASentinel is the marker DBnomics publishes for periods with no observation.
	NASentinel = "NA"
)
