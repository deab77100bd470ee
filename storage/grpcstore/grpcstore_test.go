package grpcstore

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"xdao.co/in3/storage"
	"xdao.co/in3/storage/memory"
	"xdao.co/in3/storage/testkit"
)

func newBufconnClient(t *testing.T, backend storage.Storage) *Client {
	t.Helper()
	lis := bufconn.Listen(1024 * 1024)
	srv := grpc.NewServer()
	RegisterStoreServer(srv, &Server{Store: backend})
	go func() {
		_ = srv.Serve(lis)
	}()
	t.Cleanup(srv.Stop)

	dialer := func(ctx context.Context, s string) (net.Conn, error) { return lis.Dial() }
	cc, err := grpc.NewClient(
		"passthrough:///bufnet",
		grpc.WithContextDialer(dialer),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	client := NewClient(cc)
	client.Timeout = 2 * time.Second
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestGRPCStore_Conformance(t *testing.T) {
	testkit.RunStorageConformance(t, func(t *testing.T) storage.Storage {
		t.Helper()
		backend, err := memory.New(0)
		if err != nil {
			t.Fatalf("memory.New: %v", err)
		}
		return newBufconnClient(t, backend)
	})
}

func TestGRPCStore_WritesReachBackend(t *testing.T) {
	backend, err := memory.New(0)
	if err != nil {
		t.Fatalf("memory.New: %v", err)
	}
	client := newBufconnClient(t, backend)

	if err := client.Set("nodelist_0x1", []byte("blob")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := backend.Get("nodelist_0x1")
	if err != nil {
		t.Fatalf("backend Get: %v", err)
	}
	if string(got) != "blob" {
		t.Fatalf("got %q", got)
	}
}

func TestGRPCStore_MissingStore(t *testing.T) {
	client := newBufconnClient(t, nil)
	if _, err := client.Get("k"); err == nil || storage.IsNotFound(err) {
		t.Fatalf("expected a precondition error, got %v", err)
	}
}
