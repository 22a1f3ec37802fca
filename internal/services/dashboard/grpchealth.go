package dashboard

import (
	"net"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/emy-mhmd/Smart-Irrigation-System/internal/model/entities"
	"github.com/emy-mhmd/Smart-Irrigation-System/internal/model/messages"
)

// BrokerService is the gRPC health service name tracking the MQTT link.
const BrokerService = "smart_irrigation.broker"

// GRPCHealth serves grpc.health.v1. It is a UI sink so that connection
// events flip the serving status of BrokerService.
type GRPCHealth struct {
	srv *grpc.Server
	hs  *health.Server
	log zerolog.Logger
}

func NewGRPCHealth(log zerolog.Logger) *GRPCHealth {
	hs := health.NewServer()
	hs.SetServingStatus(BrokerService, healthpb.HealthCheckResponse_NOT_SERVING)
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	return &GRPCHealth{srv: srv, hs: hs, log: log}
}

func (g *GRPCHealth) Emit(ev messages.UIEvent) {
	if ev.Kind != messages.UIConnection {
		return
	}
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if ev.Text == string(entities.ConnConnected) {
		st = healthpb.HealthCheckResponse_SERVING
	}
	g.hs.SetServingStatus(BrokerService, st)
}

// Serve blocks until Stop.
func (g *GRPCHealth) Serve(lis net.Listener) error {
	g.log.Info().Str("addr", lis.Addr().String()).Msg("grpc health listening")
	return g.srv.Serve(lis)
}

func (g *GRPCHealth) Stop() {
	g.hs.Shutdown()
	g.srv.GracefulStop()
}
