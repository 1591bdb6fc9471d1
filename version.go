package vellum

// Version is the release of the library and of the vellum command.
const Version = "0.3.0"
