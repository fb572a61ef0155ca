package clients

import (
	"time"

	"github.com/nonyonah/hedwig/internal/metrics"
)

// observeVendor records one vendor call's latency. Capture the start time
// at method entry and defer the call.
func observeVendor(vendor, operation string, start time.Time) {
	metrics.VendorCallDuration.WithLabelValues(vendor, operation).Observe(time.Since(start).Seconds())
}
