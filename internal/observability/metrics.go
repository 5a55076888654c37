package observability

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/exemplar"

	"github.com/globetrotter/identity-service/internal/config"
)

type AppMetrics struct {
	registrationCounter  metric.Int64Counter
	otpVerifyCounter     metric.Int64Counter
	otpResendCounter     metric.Int64Counter
	resetFlowCounter     metric.Int64Counter
	adminLoginCounter    metric.Int64Counter
	emailDispatchCounter metric.Int64Counter
	authReqDuration      metric.Float64Histogram
}

var (
	metricsMu  sync.RWMutex
	appMetrics *AppMetrics
)

func InitMetrics(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sdkmetric.MeterProvider, error) {
	if !cfg.OTELMetricsEnabled {
		mp := sdkmetric.NewMeterProvider()
		otel.SetMeterProvider(mp)
		logger.Info("otel metrics disabled")
		return mp, nil
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTELExporterOTLPEndpoint)}
	if cfg.OTELExporterOTLPInsecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp metric exporter: %w", err)
	}

	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create metric resource: %w", err)
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.OTELMetricsExportInterval))
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
		sdkmetric.WithExemplarFilter(exemplar.TraceBasedFilter),
		sdkmetric.WithView(sdkmetric.NewView(
			sdkmetric.Instrument{Name: "auth.request.duration"},
			sdkmetric.Stream{
				Aggregation: sdkmetric.AggregationExplicitBucketHistogram{
					Boundaries: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
				},
			},
		)),
	)
	otel.SetMeterProvider(mp)

	meter := mp.Meter("globetrotter-identity")
	m := &AppMetrics{}
	if m.registrationCounter, err = meter.Int64Counter("auth.registration.attempts"); err != nil {
		return nil, err
	}
	if m.otpVerifyCounter, err = meter.Int64Counter("auth.otp.verifications"); err != nil {
		return nil, err
	}
	if m.otpResendCounter, err = meter.Int64Counter("auth.otp.resends"); err != nil {
		return nil, err
	}
	if m.resetFlowCounter, err = meter.Int64Counter("auth.password_reset.events"); err != nil {
		return nil, err
	}
	if m.adminLoginCounter, err = meter.Int64Counter("auth.admin.login.attempts"); err != nil {
		return nil, err
	}
	if m.emailDispatchCounter, err = meter.Int64Counter("email.dispatch.events"); err != nil {
		return nil, err
	}
	if m.authReqDuration, err = meter.Float64Histogram("auth.request.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Duration of auth endpoint requests in seconds")); err != nil {
		return nil, err
	}

	metricsMu.Lock()
	appMetrics = m
	metricsMu.Unlock()

	logger.Info("otel metrics initialized", "endpoint", cfg.OTELExporterOTLPEndpoint)
	return mp, nil
}

func current() *AppMetrics {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return appMetrics
}

func RecordRegistration(ctx context.Context, status string) {
	if m := current(); m != nil && m.registrationCounter != nil {
		m.registrationCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	}
}

func RecordOTPVerification(ctx context.Context, status string) {
	if m := current(); m != nil && m.otpVerifyCounter != nil {
		m.otpVerifyCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	}
}

func RecordOTPResend(ctx context.Context, status string) {
	if m := current(); m != nil && m.otpResendCounter != nil {
		m.otpResendCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	}
}

func RecordPasswordResetEvent(ctx context.Context, step, status string) {
	if m := current(); m != nil && m.resetFlowCounter != nil {
		m.resetFlowCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("step", step),
			attribute.String("status", status),
		))
	}
}

func RecordAdminLogin(ctx context.Context, status string) {
	if m := current(); m != nil && m.adminLoginCounter != nil {
		m.adminLoginCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	}
}

func RecordEmailDispatch(ctx context.Context, kind, status string) {
	if m := current(); m != nil && m.emailDispatchCounter != nil {
		m.emailDispatchCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("kind", kind),
			attribute.String("status", status),
		))
	}
}

func RecordAuthRequestDuration(ctx context.Context, endpoint, status string, duration time.Duration) {
	if m := current(); m != nil && m.authReqDuration != nil {
		m.authReqDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
			attribute.String("endpoint", endpoint),
			attribute.String("status", status),
		))
	}
}
