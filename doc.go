// Package harp implements the HARP product model: the in-memory
// representation of a harmonised atmospheric-remote-sensing product
// (satellite, ground-based, or in-situ) shared by the action pipeline
// (package action) and the collocation engine (package collocate).
//
// harp itself only knows about Dimension, Variable and Product; unit
// parsing lives in package unit, derivation in package derive.
package harp
