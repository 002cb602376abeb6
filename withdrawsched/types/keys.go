package types

const (
	// ModuleName is the name used for logging, metrics and the error codespace.
	ModuleName = "withdrawsched"
)
