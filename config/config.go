package config

var (
	// Backend ledger query backend name
	Backend string
	// ProjectID blockfrost project id credential
	ProjectID string
	// PromptKey prompt for the credential instead of taking it from a flag
	PromptKey bool
	// Mirrors backend mirror base urls tried in order
	Mirrors []string
	// MinInterval minimum spacing between any two backend requests
	MinInterval string
	// RetryCap throttle retry bound per request
	RetryCap int
	// PageWorkers parallel page fetch fan-out
	PageWorkers int
	// AllowGaps tolerate missing page indices instead of failing
	AllowGaps bool
	// Output destination file path, stdout when empty
	Output string
	// ContentType declared content type override
	ContentType string
	// Codec declared compression codec override
	Codec string
	// ExpectedSHA256 digest the final bytes must match
	ExpectedSHA256 string
	// RegistryHead registry head pointer, the public trust anchor
	RegistryHead string
	// RegistryOverrides private registry head pointers overlaid on the public one
	RegistryOverrides []string
	// FetchResolved fetch the resolved entry instead of printing it
	FetchResolved bool
)
