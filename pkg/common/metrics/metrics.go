/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package metrics creates the counters and histograms recorded by the client.
// Metrics are go-kit instruments; the Prometheus provider backs them with
// collectors registered on a caller supplied registry.
package metrics

import (
	kitmetrics "github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
)

// CounterOpts describes a counter.
type CounterOpts struct {
	Namespace  string
	Subsystem  string
	Name       string
	Help       string
	LabelNames []string
}

// HistogramOpts describes a histogram.
type HistogramOpts struct {
	Namespace  string
	Subsystem  string
	Name       string
	Help       string
	Buckets    []float64
	LabelNames []string
}

// Provider creates metric instruments.
type Provider interface {
	NewCounter(CounterOpts) kitmetrics.Counter
	NewHistogram(HistogramOpts) kitmetrics.Histogram
}

// DisabledProvider creates instruments that record nothing.
type DisabledProvider struct{}

// NewCounter returns a discarding counter.
func (DisabledProvider) NewCounter(CounterOpts) kitmetrics.Counter {
	return discard.NewCounter()
}

// NewHistogram returns a discarding histogram.
func (DisabledProvider) NewHistogram(HistogramOpts) kitmetrics.Histogram {
	return discard.NewHistogram()
}
