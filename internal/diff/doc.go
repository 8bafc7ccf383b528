// Package diff compares two recorded runs of the same target.
//
// Resources are matched by relative path. Each path is reported as added,
// removed or modified; unchanged paths are only counted. Bodies are
// re-indented before a line diff so that the output shows which properties
// changed, and volatile top-level properties can be ignored.
package diff
