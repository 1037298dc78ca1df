// Package logging provides leveled, colored output for the xlsguard CLI.
//
// Info messages are shown with --verbose, debug messages with --debug.
// Warnings and errors are always written to the error stream.
//
//	log := logging.Logger{Verbose: verbose}
//	log.Infof("checking %d files", len(args))
package logging
