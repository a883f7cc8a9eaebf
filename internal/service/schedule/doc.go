// Package schedule implements the campaign schedule registry.
//
// The service layer owns all lifecycle rules for scheduling: which
// transitions are legal, and the strictly-in-the-future rule for dispatch
// times. It depends on the Repository interface defined in this package and
// should never import from api/.
//
// Repository implementations live in repository/postgres/ (production) and
// test files (in-memory fakes).
package schedule
