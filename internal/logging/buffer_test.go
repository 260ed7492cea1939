package logging

import "testing"

func TestRingBufferTail(t *testing.T) {
	rb := NewRingBuffer(3)
	if got := rb.Tail(0); got != nil {
		t.Fatalf("empty buffer Tail = %v, want nil", got)
	}

	for _, msg := range []string{"a", "b", "c", "d", "e"} {
		rb.Write(LogEntry{Message: msg})
	}

	if rb.Count() != 3 {
		t.Fatalf("Count = %d, want 3", rb.Count())
	}

	tests := []struct {
		n    int
		want []string
	}{
		{0, []string{"c", "d", "e"}},
		{2, []string{"d", "e"}},
		{10, []string{"c", "d", "e"}},
	}
	for _, tt := range tests {
		got := rb.Tail(tt.n)
		if len(got) != len(tt.want) {
			t.Fatalf("Tail(%d) len = %d, want %d", tt.n, len(got), len(tt.want))
		}
		for i := range got {
			if got[i].Message != tt.want[i] {
				t.Errorf("Tail(%d)[%d] = %q, want %q", tt.n, i, got[i].Message, tt.want[i])
			}
		}
	}
}
