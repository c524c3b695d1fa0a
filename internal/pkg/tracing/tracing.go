// Package tracing installs an OpenTelemetry tracer provider that writes
// finished spans as JSON lines to a local file.
package tracing

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/doeshing/genosma/internal/pkg/filesystem"
)

// ServiceName tags every exported span.
const ServiceName = "genosma"

// Options configures the provider.
type Options struct {
	Enabled bool
	// Path defaults to ~/.genosma/logs/traces.jsonl.
	Path string
	// Syncer exports each span as it ends instead of batching. Tests and
	// short CLI runs use it so nothing is lost on exit.
	Syncer bool
}

// Provider owns the SDK tracer provider and the file it exports to.
// A nil or disabled Provider hands out no-op tracers.
type Provider struct {
	sdk  *sdktrace.TracerProvider
	file *os.File
	path string
}

// DefaultPath is where spans go when Options.Path is empty.
func DefaultPath() string {
	return filesystem.DataPath("logs", "traces.jsonl")
}

// New builds a provider. When opts.Enabled is false it returns a disabled
// provider and never touches the filesystem.
func New(opts Options) (*Provider, error) {
	if !opts.Enabled {
		return &Provider{}, nil
	}
	path := filesystem.ExpandPath(opts.Path)
	if path == "" {
		path = DefaultPath()
	}
	if err := filesystem.EnsureParentDir(path); err != nil {
		return nil, fmt.Errorf("create trace dir: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(file))
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}

	export := sdktrace.WithBatcher(exporter)
	if opts.Syncer {
		export = sdktrace.WithSyncer(exporter)
	}
	sdk := sdktrace.NewTracerProvider(
		export,
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", ServiceName))),
	)
	return &Provider{sdk: sdk, file: file, path: path}, nil
}

// Enabled reports whether spans are exported.
func (p *Provider) Enabled() bool {
	return p != nil && p.sdk != nil
}

// Path is the export file, empty when disabled.
func (p *Provider) Path() string {
	if p == nil {
		return ""
	}
	return p.path
}

// TracerProvider returns the provider to hand to instrumented code.
func (p *Provider) TracerProvider() trace.TracerProvider {
	if !p.Enabled() {
		return noop.NewTracerProvider()
	}
	return p.sdk
}

// Install makes the provider the otel global.
func (p *Provider) Install() {
	if p.Enabled() {
		otel.SetTracerProvider(p.sdk)
	}
}

// Shutdown flushes pending spans and closes the export file.
func (p *Provider) Shutdown(ctx context.Context) error {
	if !p.Enabled() {
		return nil
	}
	err := p.sdk.Shutdown(ctx)
	return errors.Join(err, p.file.Close())
}
