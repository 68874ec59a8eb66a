// Package detector wraps the external plate localization and recognition
// capability behind a single fail-closed adapter.
package detector
