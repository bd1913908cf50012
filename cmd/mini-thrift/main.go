// Command mini-thrift serves the example SharedService and calls it.
//
//	mini-thrift serve --config mini-thrift.yaml
//	mini-thrift call getStruct 1
//	mini-thrift version
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
