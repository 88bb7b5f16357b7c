//go:build !linux

package main

import "fmt"

// The coroutine I/O runtime is Linux-only (spec §1: "Linux-class kernels"),
// so the real demo (main.go) is excluded from non-Linux builds; this stub
// keeps `go build ./...` working everywhere else in the module.
func main() {
	fmt.Println("coroiodemo: this runtime targets Linux-class kernels only")
}
