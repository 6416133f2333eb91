// Package handler owns the two entry points the host invokes (spec.md §4.8,
// C9): feature negotiation, the request/response decision pipeline, and
// orchestration of every other component. It is the guest's state machine;
// cmd/guest only adapts its methods to the wasip1 export ABI.
package handler

import (
	"context"
	"encoding/json"
	"regexp"
	"sync"
	"time"

	"github.com/Mindburn-Labs/treblle-http-wasm/internal/blacklist"
	"github.com/Mindburn-Labs/treblle-http-wasm/internal/certs"
	"github.com/Mindburn-Labs/treblle-http-wasm/internal/config"
	"github.com/Mindburn-Labs/treblle-http-wasm/internal/errs"
	"github.com/Mindburn-Labs/treblle-http-wasm/internal/hostabi"
	"github.com/Mindburn-Labs/treblle-http-wasm/internal/httpclient"
	"github.com/Mindburn-Labs/treblle-http-wasm/internal/logging"
	"github.com/Mindburn-Labs/treblle-http-wasm/internal/payload"
	"github.com/Mindburn-Labs/treblle-http-wasm/internal/redact"
	"github.com/Mindburn-Labs/treblle-http-wasm/internal/schema"
	"github.com/Mindburn-Labs/treblle-http-wasm/internal/telemetry"
)

// contentTypeHeader is the request header the JSON gate inspects (spec.md
// §4.8 step 2).
const contentTypeHeader = "Content-Type"

// Handler is the guest's process-wide state machine. It is constructed once
// per guest instance and reused across every handle_request/handle_response
// invocation (spec.md §5 "Shared state").
type Handler struct {
	host hostabi.Host

	initOnce sync.Once
	cfg      config.Config
	logger   *logging.Logger
	bl       *blacklist.Blacklist
	redactor *redact.Redactor
	builder  *payload.Builder
	client   *httpclient.Client
	telem    *telemetry.Provider

	featuresOnce sync.Once

	mu               sync.Mutex
	pendingReqStart  time.Time
	havePendingStart bool
}

// New constructs a Handler bound to host. Nothing expensive happens until
// the first entry-point call (spec.md §9 "Global singletons": lazily
// initialized, never reassigned).
func New(host hostabi.Host) *Handler {
	return &Handler{host: host}
}

// ensureInit performs the one-time construction spec.md §4.8 describes:
// logger, config, and (if buffer_response) the feature-negotiation call.
// A malformed config degrades to Default() (P10), and a bad root_ca_path
// degrades to the built-in trust store (spec.md §4.6); both are logged once
// initialization has a logger to log through. The one failure that escapes
// is an invalid routeBlacklist pattern, which panics (spec.md §4.2).
func (h *Handler) ensureInit() {
	h.initOnce.Do(func() {
		h.logger = logging.New(logging.LevelNone, func(level int32, msg string) {
			h.host.Log(hostabi.LogLevel(level), msg)
		})

		raw, cfgReadErr := h.host.Config()
		var result config.Result
		if cfgReadErr != nil {
			result = config.Result{Config: config.Default(), Diagnostic: errs.Wrap(errs.KindHostFunction, "get_config failed", cfgReadErr)}
		} else {
			result = config.Parse(raw)
		}
		h.cfg = result.Config
		h.logger = logging.New(logging.ParseLevel(string(h.cfg.LogLevel)), func(level int32, msg string) {
			h.host.Log(hostabi.LogLevel(level), msg)
		})
		if result.Diagnostic != nil {
			h.logger.Errorf("config: %v", result.Diagnostic)
		}
		h.logger.Debugf("config: %s", h.cfg.Summary())

		bl, err := blacklist.Compile(h.cfg.RouteBlacklist)
		if err != nil {
			// spec.md §4.2: an invalid operator-supplied pattern is a
			// deployment error and is allowed to panic at construction.
			panic(err)
		}
		h.bl = bl

		sensitive, err := regexp.Compile(h.cfg.SensitiveKeysRegex)
		if err != nil {
			h.logger.Errorf("sensitive_keys_regex invalid, redaction disabled: %v", err)
			sensitive = nil
		}
		h.redactor = redact.New(sensitive)
		h.builder = payload.NewBuilder(h.cfg, h.redactor)

		rootCAs, certErr := certs.Load(h.cfg.RootCAPath, nil)
		if certErr != nil {
			h.logger.Errorf("certs: %v", certErr)
		}
		h.client = httpclient.New(h.cfg.APIKey, h.cfg.CollectorEndpoints, rootCAs)

		telem, telemErr := telemetry.New(context.Background(), h.cfg.OTLPEndpoint)
		if telemErr != nil {
			h.logger.Errorf("telemetry: %v", telemErr)
			telem = nil
		}
		h.telem = telem
	})

	if h.cfg.BufferResponse {
		h.featuresOnce.Do(func() {
			if _, err := h.host.EnableFeatures(hostabi.FeatureResponseBuffering); err != nil {
				h.logger.Errorf("enable_features failed: %v", err)
			}
		})
	}
}

// HandleRequest implements the request-phase pipeline (spec.md §4.8). It
// always returns 1: every internal failure is caught, logged, and treated
// as "skip transmission, let the proxy continue" (P1).
func (h *Handler) HandleRequest() int64 {
	h.ensureInit()
	start := time.Now()
	_, txn := h.logger.Transaction()

	uri, err := h.host.URI()
	if err != nil {
		txn.Errorf("get_uri failed: %v", err)
		return 1
	}

	if h.bl.IsBlacklisted(uri) {
		txn.Infof("blacklisted uri %q, skipping", uri)
		return 1
	}

	contentType, _ := h.host.HeaderValue(hostabi.KindRequest, contentTypeHeader)
	if !payload.IsJSONContentType(contentType) {
		txn.Infof("non-json content-type %q, skipping", contentType)
		return 1
	}

	method, err := h.host.Method()
	if err != nil {
		txn.Errorf("get_method failed: %v", err)
		return 1
	}
	headers := hostabi.Headers(h.host, hostabi.KindRequest)
	body, err := h.host.ReadBody(hostabi.KindRequest)
	if err != nil {
		txn.Errorf("read_body failed: %v", err)
		return 1
	}
	if werr := h.host.WriteBody(hostabi.KindRequest, body); werr != nil {
		txn.Errorf("write_body failed: %v", werr)
	}

	protocol, _ := h.host.ProtocolVersion()

	record := h.builder.Base(protocol)
	record.Request = h.builder.BuildRequest(method, uri, headers, body, start)

	h.setPendingStart(start)
	h.send(txn, record)

	return 1
}

// HandleResponse implements the response-phase pipeline, only meaningful
// when buffer_response negotiated successfully (spec.md §4.8). It has no
// return value: the host does not expect one.
func (h *Handler) HandleResponse(reqCtx int32, isError int32) {
	h.ensureInit()
	if !h.cfg.BufferResponse {
		return
	}

	_, txn := h.logger.Transaction()
	start, hadPending := h.takePendingStart()
	if !hadPending {
		start = time.Now()
	}

	headers := hostabi.Headers(h.host, hostabi.KindResponse)
	body, err := h.host.ReadBody(hostabi.KindResponse)
	if err != nil {
		txn.Errorf("read_body (response) failed: %v", err)
		return
	}
	if werr := h.host.WriteBody(hostabi.KindResponse, body); werr != nil {
		txn.Errorf("write_body (response) failed: %v", werr)
	}

	status, err := h.host.StatusCode()
	if err != nil {
		txn.Errorf("get_status_code failed: %v", err)
		return
	}

	protocol, _ := h.host.ProtocolVersion()
	record := h.builder.Base(protocol)
	record.Response = h.builder.BuildResponse(int(status), headers, body, time.Since(start))

	if isError != 0 || status >= 400 {
		record.Errors = append(record.Errors, payload.StatusError(int(status)))
	}

	h.send(txn, record)
}

// send serializes record and POSTs it to the collector, recording telemetry
// and logging any failure. It never returns an error: every caller already
// committed to returning "continue" regardless of outcome (spec.md §7).
func (h *Handler) send(txn *logging.TransactionLogger, record schema.TransactionRecord) {
	if !h.cfg.Valid {
		txn.Warnf("config invalid (missing api_key/project_id), not sending")
		return
	}

	body, err := json.Marshal(record)
	if err != nil {
		txn.Errorf("serialize failed: %v", err)
		return
	}

	sendStart := time.Now()
	ctx, span := h.telem.StartSpan(context.Background(), "collector.send")
	endpoint, sendErr := h.client.Send(ctx, body)
	span.End()
	h.telem.RecordSend(ctx, endpoint, time.Since(sendStart), errorOrNil(sendErr))

	if sendErr != nil {
		txn.Errorf("send to %s failed: %v", endpoint, sendErr)
		return
	}
	txn.Debugf("sent to %s", endpoint)
}

func (h *Handler) setPendingStart(t time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pendingReqStart = t
	h.havePendingStart = true
}

func (h *Handler) takePendingStart() (time.Time, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	t, ok := h.pendingReqStart, h.havePendingStart
	h.havePendingStart = false
	return t, ok
}

func errorOrNil(e *errs.Error) error {
	if e == nil {
		return nil
	}
	return e
}
