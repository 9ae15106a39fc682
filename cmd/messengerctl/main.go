// Command messengerctl is a terminal client for the messenger API and the
// maintenance console for its database.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
