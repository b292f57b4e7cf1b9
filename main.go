package main

import "github.com/ghyeongl/pendingfs/cmd"

func main() {
	cmd.Execute()
}
