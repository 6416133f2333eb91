// Package schema holds the fixed wire-format record types shipped to the
// collector. Maintained as a single source of truth because the collector's
// parser is externally versioned (spec.md §4.9).
package schema

import (
	"encoding/json"
	"strconv"
)

// SDKName and SDKVersion identify this guest to the collector.
const (
	SDKName    = "wasm-go"
	SDKVersion = 1
)

// OSInfo describes the operating system of the server block (spec.md §3).
// The payload builder fills it from the guest runtime's GOOS/GOARCH.
type OSInfo struct {
	Name         string `json:"name"`
	Release      string `json:"release"`
	Architecture string `json:"architecture"`
}

// ServerInfo describes the proxy instance the guest is running inside.
type ServerInfo struct {
	IP        string `json:"ip"`
	Timezone  string `json:"timezone"`
	Protocol  string `json:"protocol"`
	OS        OSInfo `json:"os"`
	Software  string `json:"software,omitempty"`
	Signature string `json:"signature,omitempty"`
	Encoding  string `json:"encoding,omitempty"`
}

// LanguageInfo describes the guest runtime itself.
type LanguageInfo struct {
	Name          string `json:"name"`
	Version       string `json:"version"`
	ExposeErrors  *bool  `json:"expose_errors,omitempty"`
	DisplayErrors *bool  `json:"display_errors,omitempty"`
}

// RequestInfo is the normalized request description (spec.md §3).
type RequestInfo struct {
	Timestamp string            `json:"timestamp"`
	IP        string            `json:"ip"`
	URL       string            `json:"url"`
	UserAgent string            `json:"user_agent"`
	Method    string            `json:"method"`
	Headers   map[string]string `json:"headers"`
	Body      json.RawMessage   `json:"body"`
}

// ResponseInfo is the normalized response description. Code and Size are
// numeric inputs but must be serialized as JSON strings: the collector's
// wire contract is historical and must not be "corrected" (spec.md §9 Open
// Questions (b)).
type ResponseInfo struct {
	Code     StringifiedInt   `json:"code"`
	Size     StringifiedInt   `json:"size"`
	LoadTime float64          `json:"load_time"`
	Headers  map[string]string `json:"headers"`
	Body     json.RawMessage  `json:"body"`
}

// ErrorEntry is one entry in TransactionRecord.Errors.
type ErrorEntry struct {
	Source    string `json:"source"`
	ErrorType string `json:"error_type"`
	Message   string `json:"message"`
	File      string `json:"file"`
	Line      int    `json:"line"`
}

// TransactionRecord is the complete payload POSTed to the collector.
type TransactionRecord struct {
	APIKey    string        `json:"api_key"`
	ProjectID string        `json:"project_id"`
	SDK       string        `json:"sdk"`
	Version   int           `json:"version"`
	Server    ServerInfo    `json:"server"`
	Language  LanguageInfo  `json:"language"`
	Request   *RequestInfo  `json:"request,omitempty"`
	Response  *ResponseInfo `json:"response,omitempty"`
	Errors    []ErrorEntry  `json:"errors,omitempty"`
}

// StringifiedInt marshals an int as a JSON string, per the collector's
// historical wire contract (response.code, response.size).
type StringifiedInt int

func (s StringifiedInt) MarshalJSON() ([]byte, error) {
	return json.Marshal(strconv.Itoa(int(s)))
}

func (s *StringifiedInt) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		n, convErr := strconv.Atoi(str)
		if convErr != nil {
			return convErr
		}
		*s = StringifiedInt(n)
		return nil
	}
	var n int
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*s = StringifiedInt(n)
	return nil
}
