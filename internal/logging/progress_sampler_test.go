package logging

import "testing"

func TestNewProgressSamplerDefaultsBucket(t *testing.T) {
	tests := []struct {
		name       string
		bucketSize float64
		wantSize   float64
	}{
		{"zero", 0, 5},
		{"negative", -1, 5},
		{"custom", 10, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewProgressSampler(tt.bucketSize)
			if s.bucketSize != tt.wantSize {
				t.Errorf("bucketSize = %v, want %v", s.bucketSize, tt.wantSize)
			}
			if s.lastBucket != -1 {
				t.Errorf("lastBucket = %d, want -1", s.lastBucket)
			}
		})
	}
}

func TestProgressSamplerNilAlwaysLogs(t *testing.T) {
	var s *ProgressSampler
	if !s.ShouldLog(50, "https://example.com/a.png") {
		t.Error("nil sampler should always log")
	}
	s.Reset()
}

func TestProgressSamplerBuckets(t *testing.T) {
	s := NewProgressSampler(25)
	const url = "https://example.com/a.png"
	steps := []struct {
		percent float64
		want    bool
	}{
		{0, true},
		{10, false},
		{25, true},
		{49, false},
		{50, true},
		{100, true},
		{105, false},
	}
	for _, step := range steps {
		if got := s.ShouldLog(step.percent, url); got != step.want {
			t.Fatalf("ShouldLog(%v) = %v, want %v", step.percent, got, step.want)
		}
	}
}

func TestProgressSamplerNewKeyResetsBucket(t *testing.T) {
	s := NewProgressSampler(5)
	s.ShouldLog(80, "https://example.com/a.png")
	if !s.ShouldLog(10, "  https://example.com/b.png  ") {
		t.Fatal("new transfer should log")
	}
	if s.lastKey != "https://example.com/b.png" {
		t.Fatalf("lastKey = %q, want trimmed url", s.lastKey)
	}
	if s.ShouldLog(12, "https://example.com/b.png") {
		t.Fatal("same bucket should not log")
	}
}

func TestProgressSamplerUnknownPercent(t *testing.T) {
	s := NewProgressSampler(5)
	if !s.ShouldLog(-1, "chunked") {
		t.Fatal("first event for a key should log")
	}
	if s.ShouldLog(-1, "chunked") {
		t.Fatal("unknown percent should not trigger bucket logging")
	}
}

func TestProgressSamplerReset(t *testing.T) {
	s := NewProgressSampler(5)
	s.ShouldLog(50, "u")
	s.Reset()
	if s.lastKey != "" || s.lastBucket != -1 {
		t.Fatalf("unexpected state after reset: %q %d", s.lastKey, s.lastBucket)
	}
	if !s.ShouldLog(50, "u") {
		t.Fatal("should log after reset")
	}
}
