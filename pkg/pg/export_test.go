package pg

// PinSearchPath exposes the migration session pinning to tests.
var PinSearchPath = pinSearchPath
