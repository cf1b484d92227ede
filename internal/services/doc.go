// Package services carries cross-cutting helpers shared by pipeline stages:
// context annotation for book/stage/correlation identifiers and the sentinel
// error taxonomy used to classify stage failures.
package services
