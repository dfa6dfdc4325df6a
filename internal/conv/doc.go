// Package conv provides checked integer conversions.
//
// They guard values decoded from images (page counts, block lengths, slot
// fields) before they are used as sizes or indices. Conversions that are
// provably safe by construction use plain casts instead.
package conv
