// Package catalog defines the reference collections served by the
// repositories and the contract of the sources that fetch them.
package catalog
