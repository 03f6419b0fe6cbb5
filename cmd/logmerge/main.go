package main

import "github.com/faisal-shah/logmerge/internal/cmd"

func main() {
	cmd.Execute()
}
