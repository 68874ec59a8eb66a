// Package events fans live plate detections out to subscribers and keeps the
// most recent camera frame for the MJPEG feed.
package events
