// Command bookforge prepares e-books from a delimited catalog and publishes
// them in resumable batches. The prepare, run, and daemon subcommands cover
// the pipeline; status, ledger, and history inspect its progress.
package main
