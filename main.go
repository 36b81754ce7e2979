// SPDX-License-Identifier: MIT
package main

import (
	"os"

	"spectro/cmd"
	applog "spectro/internal/log"
)

func main() {
	if err := cmd.Execute(); err != nil {
		applog.Errorf("%v", err)
		os.Exit(1)
	}
}
