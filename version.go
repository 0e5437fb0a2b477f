// Package hatch bootstraps projects from templates and recipes.
package hatch

// Version is the current hatch release.
const Version = "0.1.0"
