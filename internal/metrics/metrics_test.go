package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestObserveChainCall(t *testing.T) {
	m := Get()
	ok := testutil.ToFloat64(m.ChainCalls.WithLabelValues("termsDetails", "success"))
	failed := testutil.ToFloat64(m.ChainCalls.WithLabelValues("termsDetails", "error"))

	m.ObserveChainCall("termsDetails", nil)
	m.ObserveChainCall("termsDetails", errors.New("execution reverted"))
	m.ObserveChainCall("termsDetails", nil)

	require.Equal(t, ok+2, testutil.ToFloat64(m.ChainCalls.WithLabelValues("termsDetails", "success")))
	require.Equal(t, failed+1, testutil.ToFloat64(m.ChainCalls.WithLabelValues("termsDetails", "error")))
}

func TestNilMetricsIgnored(t *testing.T) {
	var m *Metrics
	m.ObserveChainCall("x", nil)
}

func TestGetIsSingleton(t *testing.T) {
	require.Same(t, Get(), Get())
}

func TestStatusClass(t *testing.T) {
	tests := map[int]string{200: "2xx", 201: "2xx", 302: "3xx", 404: "4xx", 429: "4xx", 502: "5xx"}
	for status, want := range tests {
		if got := StatusClass(status); got != want {
			t.Errorf("StatusClass(%d) = %q, want %q", status, got, want)
		}
	}
}
