package clients

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nonyonah/hedwig/internal/metrics"
)

// vendorCallCount reads the sample count of one vendor/operation latency
// series.
func vendorCallCount(t *testing.T, vendor, operation string) uint64 {
	t.Helper()
	observer, err := metrics.VendorCallDuration.GetMetricWithLabelValues(vendor, operation)
	require.NoError(t, err)
	var pb dto.Metric
	require.NoError(t, observer.(prometheus.Metric).Write(&pb))
	return pb.GetHistogram().GetSampleCount()
}

func TestVendorCallsRecordLatency(t *testing.T) {
	before := vendorCallCount(t, "custody", "create_wallet")

	client := newTestCustodyClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(VendorWallet{
			ID:      "w-1",
			Address: "0xFB6916095ca1df60bB79Ce92cE3Ea74c37c5d359",
		})
	})

	_, err := client.CreateWallet(context.Background(), "ethereum")
	require.NoError(t, err)

	assert.Equal(t, before+1, vendorCallCount(t, "custody", "create_wallet"))
}
