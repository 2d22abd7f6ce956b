package main

import (
	"os"

	"github.com/aksharjobs/matchscore/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
