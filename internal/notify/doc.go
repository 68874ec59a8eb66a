// Package notify renders challan documents and delivers them to vehicle
// owners. Delivery runs on a bounded background queue and is attempted once.
package notify
