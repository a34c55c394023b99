// Package main is the entry point for the wnbimport forensically-sound
// media ingestion engine. It initializes all subcommands and executes the
// root command.
package main

import (
	"github.com/wnbrewery/wnbimport/cmd"
	_ "github.com/wnbrewery/wnbimport/cmd/ingest"
	_ "github.com/wnbrewery/wnbimport/cmd/resume"
	_ "github.com/wnbrewery/wnbimport/cmd/verifybag"
	_ "github.com/wnbrewery/wnbimport/cmd/verifymanifest"
)

// main is the entry point of the application.
// It executes the root command which handles all CLI interactions.
func main() {
	cmd.Execute()
}
