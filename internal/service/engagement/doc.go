// Package engagement implements the email engagement ingestion pipeline.
//
// The service applies open/click events to delivery records, pairs each
// first-open/first-click decision with exactly one campaign aggregate
// increment, and appends every occurrence to the tracking event log. It
// depends on repository interfaces defined in this package and should never
// import from the HTTP layer.
//
// Repository implementations live in repository/postgres/ and
// repository/memory/.
package engagement
