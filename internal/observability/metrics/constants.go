// Package metrics provides the Prometheus collectors of the tree survey
// tool, one struct per component.
package metrics

// Namespace prefixes every metric name.
const Namespace = "treesurvey"

// Outcome labels shared by all recorders.
const (
	StatusSuccess = "success"
	StatusPartial = "partial"
	StatusError   = "error"
)

// Histogram bucket parameters.
const (
	BucketStart1ms = 0.001
	BucketStart64B = 64
	BucketStart1KB = 1024
	BucketFactor2  = 2
	BucketFactor4  = 4
	BucketCount10  = 10
	BucketCount12  = 12
	BucketCount15  = 15
)
