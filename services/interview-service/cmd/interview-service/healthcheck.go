package main

import (
	"context"
	"fmt"
	"time"

	"github.com/adoptly/adoptly/libs/grpcx"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// probeHealth backs the "healthcheck" subcommand used by container probes. It
// asks the local gRPC health service whether service is SERVING.
func probeHealth(ctx context.Context, addr, service string) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	conn, err := grpcx.Dial(ctx, addr, grpcx.DialOptions{Timeout: 2 * time.Second})
	if err != nil {
		return err
	}
	defer conn.Close()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return err
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("%s is %s", service, resp.GetStatus())
	}
	return nil
}
