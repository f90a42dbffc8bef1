// Command a11yscan scans web pages for WCAG 2.0 A/AA violations and
// pre-consent cookies.
//
//	a11yscan serve            # HTTP API on :3000
//	a11yscan scan <url>       # one-shot scan, JSON on stdout
//	a11yscan demo             # fixture site on :9999
package main

import (
	"os"

	"github.com/raysh454/a11yscan/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
