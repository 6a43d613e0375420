package accelerated

// Backend multiplies row-major integer matrices: out (m x n) = a (m x k) * b (k x n).
type Backend interface {
	SetupContext() error
	MatMul(out, a, b []uint64, m, k, n int) error
	Release() error
}
