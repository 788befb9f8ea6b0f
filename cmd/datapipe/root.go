package main

import "github.com/spf13/cobra"

var rootCmd = &cobra.Command{
	Use:   "datapipe",
	Short: "Tabular data processing pipeline",
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(restoreCmd)
}
