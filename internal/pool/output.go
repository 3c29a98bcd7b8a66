package pool

import (
	"io"
	"os"
)

// newOutputCapture creates two temp files wasmtime's WasiConfig can redirect
// guest stdout/stderr into. wasmtime-go's WASI config takes file paths
// rather than in-memory pipes, so a temp file stands in for the Rust
// original's MemoryOutputPipe.
func newOutputCapture(maxBytes int) (stdout, stderr *os.File, cleanup func(), err error) {
	stdout, err = os.CreateTemp("", "booster-stdout-*")
	if err != nil {
		return nil, nil, nil, err
	}
	stderr, err = os.CreateTemp("", "booster-stderr-*")
	if err != nil {
		stdout.Close()
		os.Remove(stdout.Name())
		return nil, nil, nil, err
	}

	cleanup = func() {
		stdout.Close()
		stderr.Close()
		os.Remove(stdout.Name())
		os.Remove(stderr.Name())
	}
	return stdout, stderr, cleanup, nil
}

// readOutputCapture reads back the captured output, truncating each stream
// to maxBytes and decoding it as lossy UTF-8 the way the Rust original's
// String::from_utf8_lossy does.
func readOutputCapture(stdout, stderr *os.File, maxBytes int) (string, string, error) {
	out, err := readCapped(stdout.Name(), maxBytes)
	if err != nil {
		return "", "", err
	}
	errOut, err := readCapped(stderr.Name(), maxBytes)
	if err != nil {
		return "", "", err
	}
	return out, errOut, nil
}

func readCapped(path string, maxBytes int) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	buf := make([]byte, maxBytes)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", err
	}
	return lossyUTF8(buf[:n]), nil
}

// lossyUTF8 mirrors Rust's String::from_utf8_lossy: invalid byte sequences
// are replaced with the Unicode replacement character rather than rejected.
func lossyUTF8(b []byte) string {
	return string([]rune(string(b)))
}
