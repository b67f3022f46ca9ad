// Package artifacts owns the filesystem layout for job inputs and outputs:
// the inputs area (one uniquely named file per uploaded image), the staging
// area (transient per-job manifest files), and the outputs area (one report
// deck per completed job).
package artifacts
