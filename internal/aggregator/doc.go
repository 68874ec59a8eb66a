// Package aggregator folds per-frame detector output into plate readings.
//
// Streaming mode (Best) looks at one frame at a time. Collect-all mode
// (Collector) keeps the strongest observation of every plate across a bounded
// scan, after which SelectPrimary picks the plate to act on.
package aggregator
