// Package domain implements the weather event correlation and date-of-loss
// (DOL) inference logic. Everything here is pure computation: no I/O, no
// shared mutable state, deterministic for a given input.
//
// # Event Sources
//
// Events arrive through three independent channels, normalized by the
// collector adapters into [WeatherEvent]:
//
//	alert          CAP-style severe weather warnings. Polygon geometry, no
//	               numeric magnitude, quality derived from alert certainty.
//	ground_report  Local storm reports: point observations of hail size
//	               (inches), wind speed (mph), or tornado intensity (EF
//	               scale) submitted by spotters and stations.
//	radar_derived  Storm-cell signatures inferred from radar reflectivity.
//	               Polygon footprint, MESH hail size estimate as magnitude,
//	               model confidence as quality. No ground confirmation.
//
// Source authority for dedup tie-breaks is alert > ground_report >
// radar_derived: a formally issued warning or a direct observation outranks
// radar inference.
//
// # Scoring Conventions
//
// Magnitudes are normalized against NWS severe-weather criteria (1.5 inch
// hail, 58 mph wind) so a "just severe" event of any type scores the same
// before the proximity decay. Proximity decays linearly to zero at the
// configured radius (default 25 miles); events beyond it never contribute to
// a recommendation but are still counted in TotalEventsScanned.
//
// # Date Selection
//
// Events are bucketed by UTC calendar date. A bucket corroborated by two or
// more independent sources gets a fixed bonus multiplier, because agreement
// across channels is stronger evidence than volume from one channel. The
// resulting recommendation feeds real insurance claims, so the whole chain
// stays explainable: named constants, a linear decay, and a sum. No opaque
// model.
package domain
