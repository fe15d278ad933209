package main

import (
	"log"
	"runtime"

	"vktriangle/internal/render"
)

func init() {
	// SDL and the Vulkan surface must stay on the thread that created them.
	runtime.LockOSThread()
}

func main() {
	err := render.Run()
	if err != nil {
		log.Fatalf("%+v\n", err)
	}
}
