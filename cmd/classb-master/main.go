package main

import (
	"flag"

	"github.com/robotalks/classb/pkg/cli/sh"
	"github.com/robotalks/classb/pkg/config"

	_ "github.com/robotalks/classb/pkg/cli/cmds/link"
)

//go-build: CGO_ENABLED=0

func init() {
	config.SetupFlags(flag.CommandLine)
}

func main() {
	sh.Main()
}
