package main

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

func main() {
	bin, err := exec.LookPath("rcsched")
	if err != nil {
		fmt.Fprintln(os.Stderr, "rcs: rcsched not found on PATH")
		os.Exit(1)
	}
	if err := syscall.Exec(bin, append([]string{"rcsched"}, os.Args[1:]...), os.Environ()); err != nil {
		fmt.Fprintf(os.Stderr, "rcs: %v\n", err)
		os.Exit(1)
	}
}
