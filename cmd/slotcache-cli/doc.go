// Package main provides the entry point for slotcache-cli.
//
// Every subcommand requires --site (a name present in --config's
// `[site]` section) and reads the Badger directory given by --data-dir
// (default ./data); the
// destructive ones -- restore, restore-history, reset -- additionally
// require --force.
//
// Usage:
//
//	slotcache-cli --config cfg.yaml --data-dir ./data --site main export > backup.bin
//	slotcache-cli --config cfg.yaml --data-dir ./data --site main export-json
//	slotcache-cli --config cfg.yaml --data-dir ./data --site main restore --force backup.bin
//	slotcache-cli --config cfg.yaml --data-dir ./data --site main export-history > history.jsonl
//	slotcache-cli --config cfg.yaml --data-dir ./data --site main restore-history --force --progress history.jsonl
package main
