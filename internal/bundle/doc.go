// Package bundle wraps validated resources into the terminal Bundle
// artifact and places the finished document in the archive.
package bundle
