/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package metrics

import (
	kitmetrics "github.com/go-kit/kit/metrics"
)

var (
	queriesReceived = CounterOpts{
		Namespace:  "channel",
		Name:       "queries_received",
		Help:       "The number of chaincode queries received.",
		LabelNames: []string{"chaincode", "Fcn"},
	}
	queriesFailed = CounterOpts{
		Namespace:  "channel",
		Name:       "queries_failed",
		Help:       "The number of chaincode queries that failed.",
		LabelNames: []string{"chaincode", "Fcn", "fail"},
	}
	queryDuration = HistogramOpts{
		Namespace:  "channel",
		Name:       "query_duration",
		Help:       "The time to complete a chaincode query.",
		LabelNames: []string{"chaincode", "Fcn"},
	}
	executionsReceived = CounterOpts{
		Namespace:  "channel",
		Name:       "executions_received",
		Help:       "The number of chaincode executions received.",
		LabelNames: []string{"chaincode", "Fcn"},
	}
	executionsFailed = CounterOpts{
		Namespace:  "channel",
		Name:       "executions_failed",
		Help:       "The number of chaincode executions that failed.",
		LabelNames: []string{"chaincode", "Fcn", "fail"},
	}
	executionDuration = HistogramOpts{
		Namespace:  "channel",
		Name:       "execution_duration",
		Help:       "The time to complete a chaincode execution.",
		LabelNames: []string{"chaincode", "Fcn"},
	}
)

// ClientMetrics contains the metrics used by the channel client
type ClientMetrics struct {
	QueriesReceived    kitmetrics.Counter
	QueriesFailed      kitmetrics.Counter
	QueryDuration      kitmetrics.Histogram
	ExecutionsReceived kitmetrics.Counter
	ExecutionsFailed   kitmetrics.Counter
	ExecutionDuration  kitmetrics.Histogram
}

// NewClientMetrics builds a new instance of ClientMetrics
func NewClientMetrics(p Provider) *ClientMetrics {
	if p == nil {
		p = DisabledProvider{}
	}
	return &ClientMetrics{
		QueriesReceived:    p.NewCounter(queriesReceived),
		QueriesFailed:      p.NewCounter(queriesFailed),
		QueryDuration:      p.NewHistogram(queryDuration),
		ExecutionsReceived: p.NewCounter(executionsReceived),
		ExecutionsFailed:   p.NewCounter(executionsFailed),
		ExecutionDuration:  p.NewHistogram(executionDuration),
	}
}
