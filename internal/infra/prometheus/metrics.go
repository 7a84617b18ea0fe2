package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LinksCreated counts successfully persisted links.
	LinksCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "shortlink",
		Name:      "links_created_total",
		Help:      "Number of short links created.",
	})

	// Redirects counts redirect resolutions by result.
	Redirects = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shortlink",
		Name:      "redirects_total",
		Help:      "Number of redirect resolutions.",
	}, []string{"result"})

	// ClicksRecorded counts click events drained from the firehose.
	ClicksRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "shortlink",
		Name:      "clicks_recorded_total",
		Help:      "Number of click events consumed from the stream.",
	})
)
