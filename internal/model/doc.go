// Package model defines the persistent domain types of ThreatLens:
// threat records, alert rules with their match conditions and trigger
// bookkeeping, user accounts, and alert events. It also provides IoC
// value validation, normalization, and type auto-detection used by the
// ingest and search paths.
package model
