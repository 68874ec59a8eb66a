// Package evidence stores proof images. A proof is captured under a temporary
// name at detection time and promoted to a plate-and-time name once a challan
// is issued for it.
package evidence
