// Package preflight provides readiness checks for the filesystem paths and
// external programs imgsync depends on.
//
// These checks run in two contexts:
//   - Every sync, audit, and watch invocation calls RunAll before touching a
//     document. A failed directory check aborts the run with a non-zero exit.
//   - The CLI "imgsync status" command uses the individual check functions
//     to display directory, ffmpeg, and codec download health.
package preflight
