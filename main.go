package main

import "github.com/yugabyte/build-gcc/cmd"

func main() {
	cmd.Execute()
}
