package observability

import (
	"bytes"
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	colmetricpb "go.opentelemetry.io/proto/otlp/collector/metrics/v1"
	coltracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	"google.golang.org/grpc"
)

// traceCollector is an in-process OTLP trace endpoint
type traceCollector struct {
	coltracepb.UnimplementedTraceServiceServer
	mu    sync.Mutex
	spans []string
}

func (c *traceCollector) Export(_ context.Context, req *coltracepb.ExportTraceServiceRequest) (*coltracepb.ExportTraceServiceResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, rs := range req.GetResourceSpans() {
		for _, ss := range rs.GetScopeSpans() {
			for _, span := range ss.GetSpans() {
				c.spans = append(c.spans, span.GetName())
			}
		}
	}
	return &coltracepb.ExportTraceServiceResponse{}, nil
}

func (c *traceCollector) names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.spans...)
}

type metricsCollector struct {
	colmetricpb.UnimplementedMetricsServiceServer
}

func (metricsCollector) Export(context.Context, *colmetricpb.ExportMetricsServiceRequest) (*colmetricpb.ExportMetricsServiceResponse, error) {
	return &colmetricpb.ExportMetricsServiceResponse{}, nil
}

// startCollector serves OTLP/gRPC on a loopback port chosen by the kernel
func startCollector(t *testing.T) (string, *traceCollector) {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	traces := &traceCollector{}
	srv := grpc.NewServer()
	coltracepb.RegisterTraceServiceServer(srv, traces)
	colmetricpb.RegisterMetricsServiceServer(srv, metricsCollector{})
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	return lis.Addr().String(), traces
}

func TestInitOTel_Disabled(t *testing.T) {
	providers, err := InitOTel(context.Background(), OTelConfig{Enabled: false}, NewLogger(InfoLevel, &bytes.Buffer{}))
	assert.NoError(t, err)
	assert.Nil(t, providers)
}

func TestInitOTel_Enabled(t *testing.T) {
	logger := NewLogger(InfoLevel, &bytes.Buffer{})
	endpoint, traces := startCollector(t)

	prevTP, prevMP := otel.GetTracerProvider(), otel.GetMeterProvider()
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetMeterProvider(prevMP)
	})

	providers, err := InitOTel(context.Background(), OTelConfig{
		Enabled:        true,
		Endpoint:       endpoint,
		ServiceName:    "subledger-test",
		ServiceVersion: "test",
		Insecure:       true,
		SampleRatio:    1,
	}, logger)
	require.NoError(t, err)
	require.NotNil(t, providers)

	_, span := StartSpan(context.Background(), "fx.convert")
	EndSpan(span, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, ShutdownOTel(ctx, providers, logger))
	assert.Equal(t, []string{"fx.convert"}, traces.names())
}

func TestShutdownOTel_Nil(t *testing.T) {
	assert.NoError(t, ShutdownOTel(context.Background(), nil, NewLogger(InfoLevel, &bytes.Buffer{})))
}

func TestStartSpanAndEndSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prev)

	ctx, span := StartSpan(context.Background(), "billing.simulate")
	EndSpan(span, errors.New("boom"))

	var buf bytes.Buffer
	FromContext(WithLogger(ctx, NewLogger(InfoLevel, &buf))).Info("traced")
	assert.Contains(t, buf.String(), "trace_id")

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "billing.simulate", ended[0].Name())
	assert.Equal(t, codes.Error, ended[0].Status().Code)
}
