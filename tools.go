//go:build tools

package tools

// Mocks are generated by the mockery binary, not via go run, so no tool
// import is tracked here. Run: mockery (from the repository root).
