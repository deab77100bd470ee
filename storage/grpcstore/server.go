package grpcstore

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"xdao.co/in3/storage"
)

// Server exposes a storage.Storage over the Store gRPC service.
type Server struct {
	UnimplementedStoreServer
	Store  storage.Storage
	Logger *zap.Logger
}

func (s *Server) Get(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.BytesValue, error) {
	if s == nil || s.Store == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing store")
	}
	b, err := s.Store.Get(in.GetValue())
	if err != nil {
		return nil, s.mapErr("get", err)
	}
	return wrapperspb.Bytes(b), nil
}

func (s *Server) Set(ctx context.Context, in *wrapperspb.BytesValue) (*emptypb.Empty, error) {
	if s == nil || s.Store == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing store")
	}
	key := keyFromContext(ctx)
	if err := s.Store.Set(key, in.GetValue()); err != nil {
		return nil, s.mapErr("set", err)
	}
	return &emptypb.Empty{}, nil
}

func (s *Server) Clear(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	if s == nil || s.Store == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing store")
	}
	if err := s.Store.Clear(); err != nil {
		return nil, s.mapErr("clear", err)
	}
	return &emptypb.Empty{}, nil
}

func keyFromContext(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if v := md.Get(KeyMetadata); len(v) > 0 {
		return v[0]
	}
	return ""
}

func (s *Server) mapErr(op string, err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, storage.ErrInvalidKey):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		if s.Logger != nil {
			s.Logger.Warn("storage operation failed", zap.String("op", op), zap.Error(err))
		}
		return status.Error(codes.Internal, err.Error())
	}
}
