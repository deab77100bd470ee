package registry

// Usage restricts which programs should accept a given backend.
type Usage uint8

const (
	// UsageClient marks backends usable as the client's storage capability.
	UsageClient Usage = 1 << iota
	// UsageDaemon marks backends in3-storaged may serve.
	UsageDaemon
)

func (u Usage) allows(want Usage) bool { return u&want != 0 }
