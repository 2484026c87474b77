// Package command provides the slotcache-cli subcommands, built on
// urfave/cli/v2 for flag parsing and command dispatch.
//
//   - root.go: app assembly, global flags, the shared appContext every
//     command pulls its storage driver and codecs from
//   - snapshot.go: export, export-json, convert-to-json, restore, reset
//     -- everything that reads or writes a site's single cache backup
//   - rowhistory.go: export-history, export-object-history,
//     print-object-history, restore-history -- everything that walks
//     or rewrites the durable per-object row store
package command
