package crawler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pagesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "siteharvest_pages_processed_total",
		Help: "Pages fetched, extracted, and persisted.",
	})
	fetchErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "siteharvest_fetch_errors_total",
		Help: "Addresses abandoned because the fetch pipeline yielded no content.",
	})
	rendersTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "siteharvest_renders_total",
		Help: "Rendering passes attempted.",
	})
	renderFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "siteharvest_render_failures_total",
		Help: "Rendering passes that failed and fell back to raw content.",
	})
	robotsDenied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "siteharvest_robots_denied_total",
		Help: "Tasks discarded by the robots politeness gate.",
	})
	frontierDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "siteharvest_frontier_dropped_total",
		Help: "Discovered tasks dropped because the frontier queue was full.",
	})
	imagesSaved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "siteharvest_images_saved_total",
		Help: "Image assets downloaded and persisted.",
	})
)
