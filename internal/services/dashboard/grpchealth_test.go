package dashboard

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/emy-mhmd/Smart-Irrigation-System/internal/model/entities"
	"github.com/emy-mhmd/Smart-Irrigation-System/internal/model/messages"
)

func TestGRPCHealthFollowsConnection(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	g := NewGRPCHealth(zerolog.Nop())
	go func() { _ = g.Serve(lis) }()
	defer g.Stop()

	cc, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatal(err)
	}
	defer cc.Close()
	client := healthpb.NewHealthClient(cc)

	check := func() healthpb.HealthCheckResponse_ServingStatus {
		t.Helper()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: BrokerService})
		if err != nil {
			t.Fatalf("Check: %v", err)
		}
		return resp.GetStatus()
	}

	if st := check(); st != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("initial status = %v", st)
	}
	g.Emit(messages.UIEvent{Kind: messages.UIConnection, Text: string(entities.ConnConnected)})
	if st := check(); st != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("status after connect = %v", st)
	}
	g.Emit(messages.UIEvent{Kind: messages.UIAlert, Text: "ignored"})
	g.Emit(messages.UIEvent{Kind: messages.UIConnection, Text: string(entities.ConnReconnecting)})
	if st := check(); st != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("status after loss = %v", st)
	}
}
