package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/haormj/tvgen/accelerated"
	"github.com/haormj/tvgen/accelerated/cpu"
	"github.com/haormj/tvgen/accelerated/gonum"
)

var backends = map[string]func() accelerated.Backend{
	"cpu":   func() accelerated.Backend { return &cpu.CPU{} },
	"gonum": func() accelerated.Backend { return &gonum.Gonum{} },
}

func newBackend(name string) (accelerated.Backend, error) {
	ctor, ok := backends[name]
	if !ok {
		return nil, fmt.Errorf("unknown backend %q (have %s)", name, strings.Join(backendNames(), ", "))
	}

	return ctor(), nil
}

func backendNames() []string {
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}
