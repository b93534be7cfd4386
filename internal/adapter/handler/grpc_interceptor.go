package handler

import (
	"context"
	"encoding/base64"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/rl1809/library-lending/internal/port"
)

// UnaryLogger logs every call at Debug and internal failures at Error.
func UnaryLogger(logger zerolog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		code := status.Code(err)
		event := logger.Debug()
		if code == codes.Internal || code == codes.Unavailable {
			event = logger.Error().Err(err)
		}
		event.
			Str("method", info.FullMethod).
			Str("code", code.String()).
			Dur("duration", time.Since(start)).
			Msg("grpc request")
		return resp, err
	}
}

// UnaryBasicAuth checks "authorization: Basic ..." metadata against auth.
func UnaryBasicAuth(auth port.Authenticator) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		md, _ := metadata.FromIncomingContext(ctx)
		values := md.Get("authorization")
		if len(values) == 0 {
			return nil, status.Error(codes.Unauthenticated, "valid credentials required")
		}
		user, pass, ok := parseBasicAuth(values[0])
		if !ok || !auth.Authenticate(user, pass) {
			return nil, status.Error(codes.Unauthenticated, "valid credentials required")
		}
		return handler(ctx, req)
	}
}

func parseBasicAuth(header string) (string, string, bool) {
	const prefix = "Basic "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", "", false
	}
	decoded, err := base64.StdEncoding.DecodeString(header[len(prefix):])
	if err != nil {
		return "", "", false
	}
	user, pass, ok := strings.Cut(string(decoded), ":")
	return user, pass, ok
}

// BasicCredentials attaches basic auth metadata to every client call.
type BasicCredentials struct {
	Username string
	Password string
}

func (c BasicCredentials) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	token := base64.StdEncoding.EncodeToString([]byte(c.Username + ":" + c.Password))
	return map[string]string{"authorization": "Basic " + token}, nil
}

// RequireTransportSecurity is false so the tool works against a plaintext
// listener on a trusted network.
func (c BasicCredentials) RequireTransportSecurity() bool { return false }
