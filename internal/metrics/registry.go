package metrics

import "github.com/prometheus/client_golang/prometheus"

// namespace prefixes every metric name exposed by this package.
const namespace = "crosstown"

// Registry is the private collector registry for Crosstown metrics. Using
// a private registry instead of prometheus.DefaultRegisterer keeps repeated
// CreateNode calls in the same process (tests, multi-node harnesses) from
// panicking on duplicate registration.
var Registry = prometheus.NewRegistry()
