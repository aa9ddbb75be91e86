package progress

import (
	"bytes"
	"io"
	"testing"
)

// TestReader_ReportsAtInterval verifies the callback fires per interval, not
// per read
func TestReader_ReportsAtInterval(t *testing.T) {
	src := bytes.NewReader(make([]byte, 1000))

	var reports []int64
	pr := NewReader(src, 1000, 300, func(read, total int64) {
		reports = append(reports, read)

		if total != 1000 {
			t.Errorf("total = %d, want 1000", total)
		}
	})

	// Read in fixed 100-byte steps. io.Copy variants may bypass the buffer
	// size via ReaderFrom, which would defeat the interval assertions.
	buf := make([]byte, 100)

	for {
		_, err := pr.Read(buf)
		if err == io.EOF {
			break
		}

		if err != nil {
			t.Fatalf("read error = %v", err)
		}
	}

	// 100-byte reads against a 300-byte interval report at 300, 600, 900.
	want := []int64{300, 600, 900}
	if len(reports) != len(want) {
		t.Fatalf("got %d reports %v, want %v", len(reports), reports, want)
	}

	for i := range want {
		if reports[i] != want[i] {
			t.Errorf("report %d = %d, want %d", i, reports[i], want[i])
		}
	}

	if pr.TotalRead() != 1000 {
		t.Errorf("TotalRead() = %d, want 1000", pr.TotalRead())
	}
}

// TestReader_NilCallback verifies the stream works without a subscriber
func TestReader_NilCallback(t *testing.T) {
	pr := NewReader(bytes.NewReader([]byte("abc")), 3, 1, nil)

	out, err := io.ReadAll(pr)
	if err != nil {
		t.Fatalf("ReadAll error = %v", err)
	}

	if string(out) != "abc" {
		t.Errorf("read %q, want %q", out, "abc")
	}
}
