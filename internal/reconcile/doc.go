// Package reconcile deduplicates mapped resources by identity key and merges
// duplicate sightings into a single canonical record per entity.
package reconcile
