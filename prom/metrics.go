package prom

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/YiuTerran/go-gamegate/admission"
	"github.com/YiuTerran/go-gamegate/protocol"
)

var (
	AdmissionTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gamegate_admission_total",
		Help: "Admission attempts by transport, first event and result.",
	}, []string{"transport", "event", "result"})
	SessionsConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gamegate_sessions_connected",
		Help: "Sessions currently connected to a room.",
	})
	SecondaryBindings = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gamegate_secondary_bindings_total",
		Help: "Secondary transport addresses registered during admission.",
	})
)

// AdmissionObserver 把准入结果写到prometheus
type AdmissionObserver struct{}

var _ admission.Observer = AdmissionObserver{}

func (AdmissionObserver) AdmissionDone(transport string, event protocol.Opcode, err error) {
	AdmissionTotal.WithLabelValues(transport, event.String(), admission.Reason(err)).Inc()
}

func (AdmissionObserver) SecondaryBound() {
	SecondaryBindings.Inc()
}

func Handler() http.Handler {
	return promhttp.Handler()
}
