// Package pipeline holds the declarative table of registration stages and
// strategies. The table is written in HCL; a default is embedded in the
// binary and can be replaced by a user file.
package pipeline
