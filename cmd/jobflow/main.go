package main

import (
	"os"

	"github.com/fieldworks/jobflow/internal/buildinfo"
	"github.com/fieldworks/jobflow/internal/interface/cli"
)

func main() {
	os.Exit(cli.Execute(buildinfo.Version))
}
