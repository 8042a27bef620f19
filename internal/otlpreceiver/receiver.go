// Package otlpreceiver implements a minimal OTLP/gRPC logs receiver. It
// flattens every incoming ResourceLogs/ScopeLogs/LogRecord into a
// JSON-rendered model.IngestEnvelope, the same shape the stdin and TCP
// transports produce, so it shares the normaliser in internal/ingest
// rather than re-implementing field extraction for the OTLP wire shape.
package otlpreceiver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"net"

	"google.golang.org/grpc"

	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	logspb "go.opentelemetry.io/proto/otlp/logs/v1"

	"github.com/feedtriage/triage/internal/model"
)

// Receiver implements collogspb.LogsServiceServer, accepting OTLP log
// export requests over gRPC and emitting model.IngestEnvelope values on
// its channel.
type Receiver struct {
	collogspb.UnimplementedLogsServiceServer

	addr   string
	ch     chan model.IngestEnvelope
	server *grpc.Server
}

// Config tunes the receiver's channel buffering.
type Config struct {
	ChannelBuffer int
}

// DefaultConfig returns the receiver's default configuration.
func DefaultConfig() Config {
	return Config{ChannelBuffer: 1024}
}

// NewReceiver creates a Receiver that will listen on addr once Start is
// called.
func NewReceiver(addr string, conf ...Config) *Receiver {
	c := DefaultConfig()
	if len(conf) > 0 {
		c = conf[0]
	}
	return &Receiver{addr: addr, ch: make(chan model.IngestEnvelope, c.ChannelBuffer)}
}

// Start begins listening for gRPC connections and serving the
// LogsService. It returns once the listener is bound; serving continues
// in a background goroutine.
func (r *Receiver) Start() error {
	ln, err := net.Listen("tcp", r.addr)
	if err != nil {
		return fmt.Errorf("otlpreceiver: listen: %w", err)
	}

	r.server = grpc.NewServer()
	collogspb.RegisterLogsServiceServer(r.server, r)

	go func() {
		if err := r.server.Serve(ln); err != nil {
			log.Printf("otlpreceiver: serve: %v", err)
		}
	}()

	log.Printf("otlpreceiver: listening on %s", r.addr)
	return nil
}

// Stop gracefully shuts down the gRPC server and closes the channel.
func (r *Receiver) Stop() {
	if r.server != nil {
		r.server.GracefulStop()
	}
	close(r.ch)
}

// Lines returns the channel of flattened envelopes.
func (r *Receiver) Lines() <-chan model.IngestEnvelope { return r.ch }

// Name identifies this transport for IngestEnvelope.Source.
func (r *Receiver) Name() string { return "otlp" }

// Export implements collogspb.LogsServiceServer. Every LogRecord in the
// request is flattened into its own envelope and pushed onto the
// channel; a full channel drops the record rather than blocking the
// gRPC call indefinitely.
func (r *Receiver) Export(ctx context.Context, req *collogspb.ExportLogsServiceRequest) (*collogspb.ExportLogsServiceResponse, error) {
	var dropped int64
	for _, rl := range req.GetResourceLogs() {
		resourceAttrs := attrsToMap(rl.GetResource().GetAttributes())
		for _, sl := range rl.GetScopeLogs() {
			scopeName := sl.GetScope().GetName()
			for _, lr := range sl.GetLogRecords() {
				line, producer := flattenLogRecord(lr, resourceAttrs, scopeName)
				env := model.IngestEnvelope{Source: r.Name(), FeedKind: model.FeedOTLP, Producer: producer, Line: line}
				select {
				case r.ch <- env:
				case <-ctx.Done():
					return nil, ctx.Err()
				default:
					dropped++
				}
			}
		}
	}

	resp := &collogspb.ExportLogsServiceResponse{}
	if dropped > 0 {
		resp.PartialSuccess = &collogspb.ExportLogsPartialSuccess{
			RejectedLogRecords: dropped,
			ErrorMessage:       "otlpreceiver: channel full, records dropped",
		}
	}
	return resp, nil
}

// flattenLogRecord renders one LogRecord plus its resource attributes as
// a flat JSON object and returns the producer label derived from the
// resource's "service.name" attribute, if present.
func flattenLogRecord(lr *logspb.LogRecord, resourceAttrs map[string]interface{}, scopeName string) (string, string) {
	fields := make(map[string]interface{}, len(resourceAttrs)+8)
	for k, v := range resourceAttrs {
		fields[k] = v
	}
	for _, kv := range lr.GetAttributes() {
		fields[kv.GetKey()] = anyValueToInterface(kv.GetValue())
	}

	if scopeName != "" {
		fields["scope"] = scopeName
	}
	if sev := lr.GetSeverityText(); sev != "" {
		fields["level"] = sev
	} else if n := lr.GetSeverityNumber(); n != 0 {
		fields["severity_number"] = int32(n)
	}
	if ts := lr.GetTimeUnixNano(); ts != 0 {
		fields["timestamp"] = ts
	} else if ts := lr.GetObservedTimeUnixNano(); ts != 0 {
		fields["timestamp"] = ts
	}
	if len(lr.GetTraceId()) > 0 {
		fields["trace_id"] = base64.StdEncoding.EncodeToString(lr.GetTraceId())
	}
	if len(lr.GetSpanId()) > 0 {
		fields["span_id"] = base64.StdEncoding.EncodeToString(lr.GetSpanId())
	}

	fields["message"] = anyValueToInterface(lr.GetBody())

	producer, _ := resourceAttrs["service.name"].(string)
	if producer == "" {
		producer = "otlp"
	}

	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Sprintf(`{"message":%q}`, fmt.Sprintf("%v", fields["message"])), producer
	}
	return string(data), producer
}

func attrsToMap(attrs []*commonpb.KeyValue) map[string]interface{} {
	m := make(map[string]interface{}, len(attrs))
	for _, kv := range attrs {
		m[kv.GetKey()] = anyValueToInterface(kv.GetValue())
	}
	return m
}

func anyValueToInterface(v *commonpb.AnyValue) interface{} {
	if v == nil {
		return nil
	}
	switch {
	case v.GetStringValue() != "":
		return v.GetStringValue()
	case v.GetBoolValue():
		return v.GetBoolValue()
	case v.GetIntValue() != 0:
		return v.GetIntValue()
	case v.GetDoubleValue() != 0:
		return v.GetDoubleValue()
	case v.GetArrayValue() != nil:
		vals := v.GetArrayValue().GetValues()
		out := make([]interface{}, len(vals))
		for i, e := range vals {
			out[i] = anyValueToInterface(e)
		}
		return out
	case v.GetKvlistValue() != nil:
		out := make(map[string]interface{}, len(v.GetKvlistValue().GetValues()))
		for _, kv := range v.GetKvlistValue().GetValues() {
			out[kv.GetKey()] = anyValueToInterface(kv.GetValue())
		}
		return out
	case len(v.GetBytesValue()) > 0:
		return base64.StdEncoding.EncodeToString(v.GetBytesValue())
	default:
		return ""
	}
}
