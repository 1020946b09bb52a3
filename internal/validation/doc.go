// Package validation annotates reconciled resources with the verdict of an
// external validation service. Enrichment is total: transport failures and
// unexpected replies become error annotations, never stage failures.
package validation
