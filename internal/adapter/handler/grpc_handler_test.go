package handler

import (
	"context"
	"net"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/rl1809/library-lending/internal/adapter/auth"
	"github.com/rl1809/library-lending/internal/core/domain"
	"github.com/rl1809/library-lending/internal/port"
)

func startGRPC(t *testing.T, authenticator port.Authenticator, dialOpts ...grpc.DialOption) *GRPCClient {
	t.Helper()

	interceptors := []grpc.UnaryServerInterceptor{UnaryLogger(zerolog.Nop())}
	if authenticator != nil {
		interceptors = append(interceptors, UnaryBasicAuth(authenticator))
	}
	server := grpc.NewServer(grpc.ChainUnaryInterceptor(interceptors...))
	RegisterLendingServer(server, NewGRPCHandler(newTestEngine(t)))

	lis := bufconn.Listen(1 << 20)
	go server.Serve(lis)
	t.Cleanup(server.Stop)

	opts := append([]grpc.DialOption{
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, dialOpts...)
	conn, err := grpc.NewClient("passthrough:///bufnet", opts...)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return NewGRPCClient(conn)
}

func TestGRPC_LendingFlow(t *testing.T) {
	client := startGRPC(t, nil)
	ctx := context.Background()

	book, err := client.CreateBook(ctx, domain.BookInput{
		Title: "Dune", Author: "Herbert", ISBN: "9780441013593", TotalCopies: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, book.AvailableCopies)

	alice, err := client.CreateBorrower(ctx, domain.BorrowerInput{Name: "Alice"})
	require.NoError(t, err)

	loan, err := client.BorrowBook(ctx, BorrowRequest{BookID: book.ID, BorrowerID: alice.ID, BorrowDate: "2024-03-01"})
	require.NoError(t, err)
	assert.Equal(t, "open", loan.State)

	got, err := client.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.AvailableCopies)

	updated, err := client.UpdateBook(ctx, book.ID, domain.BookInput{
		Title: "Dune", Author: "Frank Herbert", ISBN: "9780441013593", TotalCopies: 5,
	})
	require.NoError(t, err)
	assert.Equal(t, 4, updated.AvailableCopies)

	_, err = client.UpdateBook(ctx, book.ID, domain.BookInput{
		Title: "Dune", Author: "Frank Herbert", ISBN: "9780441013593", TotalCopies: 0,
	})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	err = client.DeleteBorrower(ctx, alice.ID)
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	open, err := client.ListBorrowings(ctx, ListBorrowingsRequest{OpenOnly: true})
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "Alice", open[0].BorrowerName)

	returned, err := client.ReturnBook(ctx, ReturnRequest{BorrowingID: loan.ID, ReturnDate: "2024-03-05"})
	require.NoError(t, err)
	assert.Equal(t, "closed", returned.State)

	_, err = client.ReturnBook(ctx, ReturnRequest{BorrowingID: loan.ID})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	require.NoError(t, client.DeleteBorrower(ctx, alice.ID))
	_, err = client.GetBorrower(ctx, alice.ID)
	assert.Equal(t, codes.NotFound, status.Code(err))

	history, err := client.GetBorrowing(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-05", history.ReturnDate)

	books, err := client.ListBooks(ctx, ListBooksRequest{Search: "herbert"})
	require.NoError(t, err)
	assert.Len(t, books, 1)

	discrepancies, err := client.Audit(ctx)
	require.NoError(t, err)
	assert.Empty(t, discrepancies)
}

func TestGRPC_ErrorCodes(t *testing.T) {
	client := startGRPC(t, nil)
	ctx := context.Background()

	_, err := client.GetBook(ctx, 42)
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = client.BorrowBook(ctx, BorrowRequest{BookID: 1, BorrowerID: 1, BorrowDate: "03/01/2024"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	in := domain.BookInput{Title: "Emma", Author: "Austen", ISBN: "0141439587", TotalCopies: 1}
	_, err = client.CreateBook(ctx, in)
	require.NoError(t, err)
	in.ISBN = "0141439587 "
	_, err = client.CreateBook(ctx, in)
	assert.Equal(t, codes.AlreadyExists, status.Code(err))
}

func TestGRPC_BasicAuth(t *testing.T) {
	authenticator := auth.NewStatic("admin", "secret")
	ctx := context.Background()

	anonymous := startGRPC(t, authenticator)
	_, err := anonymous.ListBooks(ctx, ListBooksRequest{})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	wrong := startGRPC(t, authenticator, grpc.WithPerRPCCredentials(BasicCredentials{Username: "admin", Password: "nope"}))
	_, err = wrong.ListBooks(ctx, ListBooksRequest{})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	admin := startGRPC(t, authenticator, grpc.WithPerRPCCredentials(BasicCredentials{Username: "admin", Password: "secret"}))
	books, err := admin.ListBooks(ctx, ListBooksRequest{})
	require.NoError(t, err)
	assert.Empty(t, books)
}

func TestParseBasicAuth(t *testing.T) {
	creds, err := BasicCredentials{Username: "admin", Password: "p:w"}.GetRequestMetadata(context.Background())
	require.NoError(t, err)

	user, pass, ok := parseBasicAuth(creds["authorization"])
	assert.True(t, ok)
	assert.Equal(t, "admin", user)
	assert.Equal(t, "p:w", pass)

	_, _, ok = parseBasicAuth("Bearer token")
	assert.False(t, ok)
}
