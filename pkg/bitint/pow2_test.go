// SPDX-License-Identifier: MIT
package bitint

import (
	"fmt"
	"testing"
)

func TestNextPowerOfTwo(t *testing.T) {
	tests := []struct {
		n        int
		expected int
	}{
		{-10, 1},     // Negative number
		{0, 1},       // Zero
		{1, 1},       // One
		{512, 512},   // Hop size
		{1000, 1024}, // Near window size
		{1025, 2048}, // Just past a power
		{16383, 16384},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d→%d", tt.n, tt.expected), func(t *testing.T) {
			result := NextPowerOfTwo(tt.n)
			if result != tt.expected {
				t.Errorf("NextPowerOfTwo(%d) = %d, expected %d", tt.n, result, tt.expected)
			}
		})
	}
}

func TestIsPowerOfTwo(t *testing.T) {
	tests := []struct {
		n        int
		expected bool
	}{
		{-1024, false}, // Negative number
		{0, false},     // Zero
		{1, true},      // One
		{1024, true},   // Default window
		{1000, false},  // Not power of two
		{1 << 20, true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d→%t", tt.n, tt.expected), func(t *testing.T) {
			result := IsPowerOfTwo(tt.n)
			if result != tt.expected {
				t.Errorf("IsPowerOfTwo(%d) = %v, expected %v", tt.n, result, tt.expected)
			}
		})
	}
}

func TestIsMultipleOf(t *testing.T) {
	tests := []struct {
		n, unit  int
		expected bool
	}{
		{16384, 1024, true},
		{16384, 1000, false},
		{1024, 1024, true},
		{0, 1024, false},
		{1024, 0, false},
		{-2048, 1024, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d/%d", tt.n, tt.unit), func(t *testing.T) {
			if got := IsMultipleOf(tt.n, tt.unit); got != tt.expected {
				t.Errorf("IsMultipleOf(%d, %d) = %v, expected %v", tt.n, tt.unit, got, tt.expected)
			}
		})
	}
}

func BenchmarkNextPowerOfTwo(b *testing.B) {
	var i int
	b.ReportAllocs()
	for b.Loop() {
		NextPowerOfTwo(i % 10000)
		i++
	}
}

func BenchmarkIsPowerOfTwo(b *testing.B) {
	var i int
	b.ReportAllocs()
	for b.Loop() {
		IsPowerOfTwo(i % 10000)
		i++
	}
}
