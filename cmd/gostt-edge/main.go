// Package main provides the gostt-edge CLI: offline streaming speech
// recognition with a quantized Wav2Letter model.
//
// Usage:
//
//	gostt-edge [flags] <command> [args]
//
// Commands:
//
//	transcribe  - Transcribe a WAV file
//	listen      - Transcribe the default microphone live
//	geometry    - Show a model's input framing
//	models      - List and download model files
//	config      - Create or show the configuration file
package main

import (
	"fmt"
	"os"

	"github.com/chaz8081/gostt-edge/cmd/gostt-edge/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
