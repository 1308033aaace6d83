package main

import "github.com/jwulff/steno/history/cmd"

func main() {
	cmd.Execute()
}
