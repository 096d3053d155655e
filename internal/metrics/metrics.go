// Package metrics holds the prometheus collectors for the rewards service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BillsIngestedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rewards_bills_ingested_total",
		Help: "Total number of bills recorded",
	})

	PointsIssuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rewards_points_issued_total",
		Help: "Total reward points credited to wallets",
	})

	PointsRedeemedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rewards_points_redeemed_total",
		Help: "Total reward points debited from wallets",
	})

	RedemptionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rewards_redemptions_total",
		Help: "Redemption attempts by kind and outcome",
	}, []string{"kind", "outcome"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rewards_http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
)
