// Command reelctl is the operator tool for reelscout: schema migrations,
// the configured tier table and search lockout inspection.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(defaultApp()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
