package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInspectionMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewInspectionMetrics(reg)
	require.NoError(t, err)

	m.RecordIntake("upload", ResultOK)
	m.RecordIntake("upload", ResultOK)
	m.RecordIntake("capture", ResultRejected)
	m.ObserveOracle(0.2, true)
	m.ObserveOracle(0.1, false)
	m.AddBlobBytes(2048)
	m.RecordConfirm(ResultOK)
	m.RecordDelete(ResultRejected)
	m.IncrementBlobDeleteErrors()
	m.AddSweepRemoved(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.IntakeTotal.WithLabelValues("upload", ResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IntakeTotal.WithLabelValues("capture", ResultRejected)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OraclePlaceholders))
	assert.Equal(t, 2048.0, testutil.ToFloat64(m.BlobBytes))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ConfirmTotal.WithLabelValues(ResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DeleteTotal.WithLabelValues(ResultRejected)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BlobDeleteErrors))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.SweepRemoved))
	assert.Equal(t, 1, testutil.CollectAndCount(m.OracleDuration))
}

func TestInspectionMetrics_DoubleRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewInspectionMetrics(reg)
	require.NoError(t, err)
	_, err = NewInspectionMetrics(reg)
	assert.Error(t, err)
}

func TestInspectionMetrics_NilIsNoop(t *testing.T) {
	var m *InspectionMetrics
	assert.NotPanics(t, func() {
		m.RecordIntake("upload", ResultOK)
		m.ObserveOracle(1, true)
		m.AddBlobBytes(1)
		m.RecordConfirm(ResultError)
		m.RecordDelete(ResultOK)
		m.IncrementBlobDeleteErrors()
		m.AddSweepRemoved(1)
	})
}

func TestHandler_Exposition(t *testing.T) {
	reg := NewRegistry()
	m, err := NewInspectionMetrics(reg)
	require.NoError(t, err)
	m.RecordConfirm(ResultOK)

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `inspection_confirm_total{result="ok"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
