//go:build !wasip1

package hostabi

import "strings"

// FakeHost is an in-memory Host used by every build except the wasip1
// guest itself: handler tests construct one directly instead of spinning up
// a wazero-hosted module for every case (spec.md §6's semantics, not its
// wire encoding, is what the handler needs to exercise). The optional
// wazero end-to-end harness (SPEC_FULL.md §2.4) does not use it: that test
// has its own raw-ABI host module and skips when no precompiled guest binary
// is available.
type FakeHost struct {
	ConfigJSON      []byte
	RequestURI      string
	RequestMethod   string
	ProtoVersion    string
	Addr            string
	RequestHeaders  map[string]string
	ResponseHeaders map[string]string
	RequestBody     []byte
	ResponseBody    []byte
	Status          uint32

	EnabledFeatures uint32
	Logs            []FakeLogEntry

	// Err, when non-nil for a given method name, makes that method fail —
	// lets tests exercise the "buffer too small"/host-failure fallback
	// paths without a real buffer-too-small host.
	Err map[string]error

	writtenBody map[Kind][]byte
}

// FakeLogEntry records one Log call for assertions in tests.
type FakeLogEntry struct {
	Level LogLevel
	Msg   string
}

func (f *FakeHost) Log(level LogLevel, msg string) {
	f.Logs = append(f.Logs, FakeLogEntry{Level: level, Msg: msg})
}

func (f *FakeHost) EnableFeatures(mask uint32) (uint32, error) {
	if err := f.Err["EnableFeatures"]; err != nil {
		return 0, err
	}
	f.EnabledFeatures |= mask
	return f.EnabledFeatures, nil
}

func (f *FakeHost) Config() ([]byte, error) {
	if err := f.Err["Config"]; err != nil {
		return nil, err
	}
	return f.ConfigJSON, nil
}

func (f *FakeHost) URI() (string, error) {
	if err := f.Err["URI"]; err != nil {
		return "", err
	}
	return f.RequestURI, nil
}

func (f *FakeHost) Method() (string, error) {
	if err := f.Err["Method"]; err != nil {
		return "", err
	}
	return f.RequestMethod, nil
}

func (f *FakeHost) ProtocolVersion() (string, error) {
	if err := f.Err["ProtocolVersion"]; err != nil {
		return "", err
	}
	return f.ProtoVersion, nil
}

func (f *FakeHost) SourceAddr() (string, error) {
	if err := f.Err["SourceAddr"]; err != nil {
		return "", err
	}
	return f.Addr, nil
}

func (f *FakeHost) HeaderNames(kind Kind) ([]string, error) {
	if err := f.Err["HeaderNames"]; err != nil {
		return nil, err
	}
	headers := f.headersFor(kind)
	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	return names, nil
}

func (f *FakeHost) HeaderValue(kind Kind, name string) (string, error) {
	if err := f.Err["HeaderValue"]; err != nil {
		return "", err
	}
	headers := f.headersFor(kind)
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v, nil
		}
	}
	return "", nil
}

func (f *FakeHost) headersFor(kind Kind) map[string]string {
	if kind == KindResponse {
		return f.ResponseHeaders
	}
	return f.RequestHeaders
}

func (f *FakeHost) ReadBody(kind Kind) ([]byte, error) {
	if err := f.Err["ReadBody"]; err != nil {
		return nil, err
	}
	if kind == KindResponse {
		return f.ResponseBody, nil
	}
	return f.RequestBody, nil
}

func (f *FakeHost) WriteBody(kind Kind, body []byte) error {
	if err := f.Err["WriteBody"]; err != nil {
		return err
	}
	if f.writtenBody == nil {
		f.writtenBody = make(map[Kind][]byte)
	}
	f.writtenBody[kind] = body
	return nil
}

// WrittenBody returns whatever was last passed to WriteBody for kind, for
// test assertions.
func (f *FakeHost) WrittenBody(kind Kind) []byte {
	return f.writtenBody[kind]
}

func (f *FakeHost) StatusCode() (uint32, error) {
	if err := f.Err["StatusCode"]; err != nil {
		return 0, err
	}
	return f.Status, nil
}
