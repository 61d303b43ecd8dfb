package main

import (
	"github.com/treeverse/pgpack/cmd/pgpack/cmd"
)

func main() {
	cmd.Execute()
}
