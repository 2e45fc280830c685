package main

import "github.com/audiolibrelab/interviewprep/cmd"

func main() {
	cmd.Execute()
}
