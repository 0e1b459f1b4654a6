package prom

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YiuTerran/go-gamegate/admission"
	"github.com/YiuTerran/go-gamegate/protocol"
)

func TestAdmissionObserver(t *testing.T) {
	o := AdmissionObserver{}
	before := testutil.ToFloat64(AdmissionTotal.WithLabelValues("binary", "LOG_IN", "auth"))
	o.AdmissionDone("binary", protocol.LogIn, admission.ErrAuthentication)
	o.AdmissionDone("binary", protocol.LogIn, admission.ErrAuthentication)
	assert.Equal(t, before+2, testutil.ToFloat64(AdmissionTotal.WithLabelValues("binary", "LOG_IN", "auth")))

	bound := testutil.ToFloat64(SecondaryBindings)
	o.SecondaryBound()
	assert.Equal(t, bound+1, testutil.ToFloat64(SecondaryBindings))
}

func TestHandlerExposesMetrics(t *testing.T) {
	AdmissionObserver{}.AdmissionDone("text", protocol.Reconnect, nil)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `gamegate_admission_total{event="RECONNECT",result="ok",transport="text"}`)
}
