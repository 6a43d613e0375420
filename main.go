// Command tvgen generates random operand matrices and their exact product
// as hex test vectors for a systolic PE-grid matrix multiplier.
//
// Usage:
//
//	tvgen --out vectors                     # 256x256x256, 8 bit, 32x32 grid
//	tvgen --m 64 --k 128 --n 32 --wrap legacy --decimal --seed 42
//	tvgen verify --out vectors              # recheck answer.hex
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
