// Package metrics provides the Prometheus collectors of the fetcher server
package metrics

import (
	"math/big"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	ResultOK       = "ok"
	ResultRejected = "rejected"
	ResultFailed   = "failed"
)

type Metrics struct {
	Calls       *prometheus.CounterVec
	CoinPrice   prometheus.Gauge
	Fetched     prometheus.Gauge
	Subscribers prometheus.Gauge
}

// NewMetrics creates the collectors and registers them on reg
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "coin_price_fetch"
	}
	m := &Metrics{
		Calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_total",
			Help:      "Mutating calls by method and result",
		}, []string{"method", "result"}),
		CoinPrice: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "coin_price",
			Help:      "Captured coin price scaled by the source decimals, 0 until fetched",
		}),
		Fetched: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "fetched",
			Help:      "1 once the coin price has been fetched",
		}),
		Subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "event_subscribers",
			Help:      "Connected websocket event subscribers",
		}),
	}
	reg.MustRegister(m.Calls, m.CoinPrice, m.Fetched, m.Subscribers)
	return m
}

func (m *Metrics) ObserveCall(method, result string) {
	m.Calls.WithLabelValues(method, result).Inc()
}

// SetPrice publishes the captured price as a float scaled down by decimals
func (m *Metrics) SetPrice(price *big.Int, decimals uint8, fetched bool) {
	scaled, _ := new(big.Float).Quo(
		new(big.Float).SetInt(price),
		new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)),
	).Float64()
	m.CoinPrice.Set(scaled)
	if fetched {
		m.Fetched.Set(1)
	} else {
		m.Fetched.Set(0)
	}
}
