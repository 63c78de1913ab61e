package metrics

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCollectors_FramesDecoded_ScrapesAsIncremented(t *testing.T) {
	c := New()
	c.FramesDecoded.WithLabelValues("mining").Inc()
	c.NotifiesEmitted.Inc()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	c.Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, "sv2bridge_frames_decoded_total")
	require.Contains(t, body, "sv2bridge_v1_notify_emitted_total 1")
}
