// Package prometheus exposes engine metrics through client_golang.
//
// [Exporter] is a prometheus.Collector that reads
// [goSession.Engine.MetricsSnapshot] on every scrape. Counters are named
// gosession_*_total; the refresh latency histogram is
// gosession_refresh_latency_seconds.
//
// # What this package must NOT do
//
//   - Register in the global Prometheus registry. [Exporter.Handler] serves a
//     private registry; callers wanting the default one register the
//     Exporter themselves.
//   - Mutate engine state.
package prometheus
