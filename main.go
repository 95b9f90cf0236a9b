package main

import "github.com/glagolgames/wordchain/cmd"

func main() {
	cmd.Execute()
}
