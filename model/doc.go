// Package model defines the shared data types of the ragkit core:
// scored candidates, confidence scores and cache entries.
//
// The package is a leaf; it imports nothing from the rest of the module.
package model
