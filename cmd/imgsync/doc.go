// Package main hosts the imgsync CLI entrypoint and command graph.
//
// Running imgsync without a subcommand localizes the configured document tree
// once. Subcommands cover continuous watching, read-only audits, run history,
// ffmpeg acquisition, configuration scaffolding, and an environment status
// report. Configuration resolution and logger setup live in commandContext so
// subcommands only wire internal packages together.
package main
