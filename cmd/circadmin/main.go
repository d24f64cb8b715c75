// circadmin is a small operations CLI for the circulation database:
// schema migration, member registration and manual circulation actions.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
