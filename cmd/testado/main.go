// Command testado redacts personal data from Mexican environmental permit
// PDFs.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "testado: %v\n", err)
		os.Exit(1)
	}
}
