package platform

import (
	"testing"
)

func BenchmarkNormalize(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = Normalize("Darwin", "arm64")
	}
}

func BenchmarkInfo_OSArch(b *testing.B) {
	info := Info{System: Linux, Arch: AArch64}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = info.OSArch()
	}
}

func BenchmarkMapFamily(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = mapFamily("ubuntu")
	}
}
