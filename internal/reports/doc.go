// Package reports builds summary reports over the threat store and
// writes CSV/JSON exports of threat records.
package reports
