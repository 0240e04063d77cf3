// pepfoot - peptide footprinting analysis tool
package main

import (
	"fmt"
	"os"

	"github.com/ChrisMcGann/pepfoot/cmd/pepfoot/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
