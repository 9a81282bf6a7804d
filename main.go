package main

import (
	"fmt"
	"os"

	"razza-canvas-server/cmd"
)

// 빌드 시 -ldflags "-X main.version=..." 로 주입
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	if err := cmd.Execute(version, buildTime, gitCommit); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
