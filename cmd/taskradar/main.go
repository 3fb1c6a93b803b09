// Command taskradar turns app notifications into tasks and raises
// proximity alerts for tasks that can be done nearby.
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
