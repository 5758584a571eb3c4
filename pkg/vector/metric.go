package vector

import (
	"fmt"
	"strings"
)

// Metric identifies the distance function a collection is created with.
type Metric string

const (
	MetricCosine    Metric = "cosine"
	MetricEuclidean Metric = "euclidean"
	MetricDot       Metric = "dot"
)

// ParseMetric normalizes a metric name, accepting the aliases backends
// themselves use ("l2" for euclidean, "ip" and "dotproduct" for dot).
// An empty string parses to cosine.
func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(MetricCosine):
		return MetricCosine, nil
	case string(MetricEuclidean), "l2":
		return MetricEuclidean, nil
	case string(MetricDot), "ip", "dotproduct":
		return MetricDot, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedMetric, s)
	}
}
