// Package preflight provides readiness checks for the paths and services
// fieldsnap depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll at startup and logs every failed check. Nothing
//     here is fatal: uploads stay queued until the dependency recovers.
//   - The CLI "fieldsnap status" command uses the individual checks
//     (CheckDirectoryAccess, CheckStorageFromConfig) when no daemon answers.
package preflight
