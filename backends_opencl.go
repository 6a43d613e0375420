//go:build opencl

package main

import (
	"github.com/haormj/tvgen/accelerated"
	"github.com/haormj/tvgen/accelerated/blackcl"
	"github.com/haormj/tvgen/accelerated/goopencl"
)

func init() {
	backends["blackcl"] = func() accelerated.Backend { return blackcl.New() }
	backends["goopencl"] = func() accelerated.Backend { return &goopencl.OpenCL{} }
}
