package main

import (
	"fmt"
	"os"

	splicecmder "github.com/papercomputeco/splice/cmd/splice"
	"github.com/papercomputeco/splice/pkg/cliui"
)

func main() {
	cmd := splicecmder.NewSpliceCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", cliui.FailMark, err)
		os.Exit(1)
	}
}
