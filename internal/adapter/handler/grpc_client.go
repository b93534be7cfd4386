package handler

import (
	"context"

	"google.golang.org/grpc"

	"github.com/rl1809/library-lending/internal/core/domain"
)

// GRPCClient calls a remote LendingServer over a connection created by the
// caller. Errors are gRPC status errors.
type GRPCClient struct {
	conn grpc.ClientConnInterface
}

func NewGRPCClient(conn grpc.ClientConnInterface) *GRPCClient {
	return &GRPCClient{conn: conn}
}

func (c *GRPCClient) invoke(ctx context.Context, method string, in, out any) error {
	return c.conn.Invoke(ctx, fullMethod(method), in, out, grpc.CallContentSubtype(codecName))
}

func (c *GRPCClient) CreateBook(ctx context.Context, in domain.BookInput) (*BookResponse, error) {
	out := new(BookResponse)
	return out, c.invoke(ctx, "CreateBook", &in, out)
}

func (c *GRPCClient) UpdateBook(ctx context.Context, id int64, in domain.BookInput) (*BookResponse, error) {
	out := new(BookResponse)
	return out, c.invoke(ctx, "UpdateBook", &UpdateBookRequest{ID: id, Book: in}, out)
}

func (c *GRPCClient) DeleteBook(ctx context.Context, id int64) error {
	return c.invoke(ctx, "DeleteBook", &IDRequest{ID: id}, new(Empty))
}

func (c *GRPCClient) GetBook(ctx context.Context, id int64) (*BookResponse, error) {
	out := new(BookResponse)
	return out, c.invoke(ctx, "GetBook", &IDRequest{ID: id}, out)
}

func (c *GRPCClient) ListBooks(ctx context.Context, req ListBooksRequest) ([]BookResponse, error) {
	out := new(BookList)
	if err := c.invoke(ctx, "ListBooks", &req, out); err != nil {
		return nil, err
	}
	return out.Books, nil
}

func (c *GRPCClient) CreateBorrower(ctx context.Context, in domain.BorrowerInput) (*BorrowerResponse, error) {
	out := new(BorrowerResponse)
	return out, c.invoke(ctx, "CreateBorrower", &in, out)
}

func (c *GRPCClient) UpdateBorrower(ctx context.Context, id int64, in domain.BorrowerInput) (*BorrowerResponse, error) {
	out := new(BorrowerResponse)
	return out, c.invoke(ctx, "UpdateBorrower", &UpdateBorrowerRequest{ID: id, Borrower: in}, out)
}

func (c *GRPCClient) DeleteBorrower(ctx context.Context, id int64) error {
	return c.invoke(ctx, "DeleteBorrower", &IDRequest{ID: id}, new(Empty))
}

func (c *GRPCClient) GetBorrower(ctx context.Context, id int64) (*BorrowerResponse, error) {
	out := new(BorrowerResponse)
	return out, c.invoke(ctx, "GetBorrower", &IDRequest{ID: id}, out)
}

func (c *GRPCClient) ListBorrowers(ctx context.Context, search string) ([]BorrowerResponse, error) {
	out := new(BorrowerList)
	if err := c.invoke(ctx, "ListBorrowers", &ListBorrowersRequest{Search: search}, out); err != nil {
		return nil, err
	}
	return out.Borrowers, nil
}

func (c *GRPCClient) BorrowBook(ctx context.Context, req BorrowRequest) (*BorrowingResponse, error) {
	out := new(BorrowingResponse)
	return out, c.invoke(ctx, "BorrowBook", &req, out)
}

func (c *GRPCClient) ReturnBook(ctx context.Context, req ReturnRequest) (*BorrowingResponse, error) {
	out := new(BorrowingResponse)
	return out, c.invoke(ctx, "ReturnBook", &req, out)
}

func (c *GRPCClient) GetBorrowing(ctx context.Context, id int64) (*BorrowingResponse, error) {
	out := new(BorrowingResponse)
	return out, c.invoke(ctx, "GetBorrowing", &IDRequest{ID: id}, out)
}

func (c *GRPCClient) ListBorrowings(ctx context.Context, req ListBorrowingsRequest) ([]BorrowingResponse, error) {
	out := new(BorrowingList)
	if err := c.invoke(ctx, "ListBorrowings", &req, out); err != nil {
		return nil, err
	}
	return out.Borrowings, nil
}

func (c *GRPCClient) Audit(ctx context.Context) ([]DiscrepancyResponse, error) {
	out := new(AuditResponse)
	if err := c.invoke(ctx, "Audit", &Empty{}, out); err != nil {
		return nil, err
	}
	return out.Discrepancies, nil
}
