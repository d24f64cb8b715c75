// Package helper provides test data arrangement and observability spies for
// the circulation engine test suites.
package helper
