package main

import (
	"github.com/luma/courier/cmd"
)

func main() {
	cmd.Execute()
}
