// Package reference loads the vehicle reference dataset once at startup and
// serves read-only lookups by normalized plate.
package reference
