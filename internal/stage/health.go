package stage

// Health reports whether a pipeline stage can currently do useful work, for
// example whether the OCR binary resolves or a mapper endpoint is configured.
// The daemon aggregates these into its status reply.
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

// Healthy reports a stage as ready.
func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

// Unhealthy reports a stage as not ready, with detail explaining what is
// missing.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Ready: false, Detail: detail}
}
