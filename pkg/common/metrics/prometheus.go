/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package metrics

import (
	kitmetrics "github.com/go-kit/kit/metrics"
	kitprom "github.com/go-kit/kit/metrics/prometheus"
	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusProvider registers collectors on Registerer (the default registerer when nil).
// Asking twice for the same metric returns an instrument backed by the already registered collector.
type PrometheusProvider struct {
	Registerer prom.Registerer
}

func (p *PrometheusProvider) registerer() prom.Registerer {
	if p.Registerer == nil {
		return prom.DefaultRegisterer
	}
	return p.Registerer
}

// NewCounter creates a counter vector.
func (p *PrometheusProvider) NewCounter(o CounterOpts) kitmetrics.Counter {
	cv := prom.NewCounterVec(
		prom.CounterOpts{
			Namespace: o.Namespace,
			Subsystem: o.Subsystem,
			Name:      o.Name,
			Help:      o.Help,
		},
		o.LabelNames,
	)
	if err := p.registerer().Register(cv); err != nil {
		are, ok := err.(prom.AlreadyRegisteredError)
		if !ok {
			panic(err)
		}
		cv = are.ExistingCollector.(*prom.CounterVec)
	}
	return kitprom.NewCounter(cv)
}

// NewHistogram creates a histogram vector.
func (p *PrometheusProvider) NewHistogram(o HistogramOpts) kitmetrics.Histogram {
	hv := prom.NewHistogramVec(
		prom.HistogramOpts{
			Namespace: o.Namespace,
			Subsystem: o.Subsystem,
			Name:      o.Name,
			Help:      o.Help,
			Buckets:   o.Buckets,
		},
		o.LabelNames,
	)
	if err := p.registerer().Register(hv); err != nil {
		are, ok := err.(prom.AlreadyRegisteredError)
		if !ok {
			panic(err)
		}
		hv = are.ExistingCollector.(*prom.HistogramVec)
	}
	return kitprom.NewHistogram(hv)
}
