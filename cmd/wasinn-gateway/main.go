// Command wasinn-gateway serves image classification and chat completion
// requests through a sandboxed WASI-NN guest backed by ONNX Runtime.
package main

import "github.com/scriptmaster/wasinn-gateway/internal/cli"

func main() {
	cli.Execute()
}
