package valixdrive

import (
	"sync"
	"time"
)

// MockDevice is an in-memory implementation of Device for testing.
// It can simulate the counterfeit-drive aliasing pattern and inject
// per-offset I/O failures, and tracks method calls for verification.
type MockDevice struct {
	data      []byte
	size      int64
	alignment int
	closed    bool

	// aliasLimit, when positive, redirects every access at or beyond it
	// to offset 0. This models a controller that advertises size but only
	// backs the first aliasLimit bytes, with overflow wrapping onto the
	// real region.
	aliasLimit int64

	// Injected failures keyed by requested offset.
	readErrs  map[int64]error
	writeErrs map[int64]error

	// Method call tracking
	mu         sync.Mutex
	readCalls  int
	writeCalls int
}

// NewMockDevice creates a mock device of the given size with no alignment
// constraint.
func NewMockDevice(size int64) *MockDevice {
	return &MockDevice{
		data:      make([]byte, size),
		size:      size,
		readErrs:  make(map[int64]error),
		writeErrs: make(map[int64]error),
	}
}

// SetAlignment sets the alignment requirement reported by MemoryAlignment.
func (m *MockDevice) SetAlignment(align int) {
	m.alignment = align
}

// SetAliasLimit makes accesses at or beyond limit land at offset 0,
// simulating a capacity-misreporting device.
func (m *MockDevice) SetAliasLimit(limit int64) {
	m.aliasLimit = limit
}

// FailReadAt injects an error for reads issued at exactly offset.
func (m *MockDevice) FailReadAt(offset int64, err error) {
	m.readErrs[offset] = err
}

// FailWriteAt injects an error for writes issued at exactly offset.
func (m *MockDevice) FailWriteAt(offset int64, err error) {
	m.writeErrs[offset] = err
}

// SetContents replaces the device's backing bytes.
func (m *MockDevice) SetContents(p []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy(m.data, p)
}

// Contents returns a copy of the device's backing bytes.
func (m *MockDevice) Contents() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]byte, len(m.data))
	copy(out, m.data)
	return out
}

// CallCounts returns how many reads and writes the device has seen.
func (m *MockDevice) CallCounts() (reads, writes int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.readCalls, m.writeCalls
}

// IsClosed reports whether Close has been called.
func (m *MockDevice) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *MockDevice) effectiveOffset(offset int64) int64 {
	if m.aliasLimit > 0 && offset >= m.aliasLimit {
		return 0
	}
	return offset
}

// Size implements the Device interface
func (m *MockDevice) Size() int64 {
	return m.size
}

// MemoryAlignment implements the Device interface
func (m *MockDevice) MemoryAlignment() int {
	return m.alignment
}

// Identify implements the Device interface
func (m *MockDevice) Identify() (*DeviceInfo, error) {
	return &DeviceInfo{Size: m.size}, nil
}

// Read implements the Device interface
func (m *MockDevice) Read(offset int64, p []byte) (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.readCalls++

	if err, ok := m.readErrs[offset]; ok {
		return 0, NewIOError("READ_BLOCK", "mock", offset, err)
	}

	eff := m.effectiveOffset(offset)
	if eff+int64(len(p)) > m.size {
		return 0, NewIOError("READ_BLOCK", "mock", offset, errShortAccess)
	}
	copy(p, m.data[eff:eff+int64(len(p))])
	return time.Microsecond, nil
}

// Write implements the Device interface
func (m *MockDevice) Write(offset int64, p []byte) (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.writeCalls++

	if err, ok := m.writeErrs[offset]; ok {
		return 0, NewIOError("WRITE_BLOCK", "mock", offset, err)
	}

	eff := m.effectiveOffset(offset)
	if eff+int64(len(p)) > m.size {
		return 0, NewIOError("WRITE_BLOCK", "mock", offset, errShortAccess)
	}
	copy(m.data[eff:eff+int64(len(p))], p)
	return time.Microsecond, nil
}

// Close implements the Device interface
func (m *MockDevice) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

var errShortAccess = NewError("MOCK", ErrCodeIOError, "access beyond end of device")

// Compile-time interface check
var _ Device = (*MockDevice)(nil)
