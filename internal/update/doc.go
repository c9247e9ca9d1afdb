// Package update checks GitHub for newer released versions of the tool.
//
// The check is deliberately quiet: results are cached for a day, the
// API call is bounded by a short timeout, and every failure is silent.
// Monitoring runs must never be disturbed by release housekeeping.
package update
