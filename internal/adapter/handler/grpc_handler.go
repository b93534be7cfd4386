package handler

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/rl1809/library-lending/internal/core/domain"
	"github.com/rl1809/library-lending/internal/core/service"
)

const ServiceName = "lending.v1.Lending"

type IDRequest struct {
	ID int64 `json:"id"`
}

type UpdateBookRequest struct {
	ID   int64            `json:"id"`
	Book domain.BookInput `json:"book"`
}

type UpdateBorrowerRequest struct {
	ID       int64                `json:"id"`
	Borrower domain.BorrowerInput `json:"borrower"`
}

type ListBooksRequest struct {
	Search        string `json:"search,omitempty"`
	AvailableOnly bool   `json:"available_only,omitempty"`
}

type ListBorrowersRequest struct {
	Search string `json:"search,omitempty"`
}

type ListBorrowingsRequest struct {
	Search     string `json:"search,omitempty"`
	OpenOnly   bool   `json:"open_only,omitempty"`
	BookID     int64  `json:"book_id,omitempty"`
	BorrowerID int64  `json:"borrower_id,omitempty"`
}

type Empty struct{}

type BookList struct {
	Books []BookResponse `json:"books"`
}

type BorrowerList struct {
	Borrowers []BorrowerResponse `json:"borrowers"`
}

type BorrowingList struct {
	Borrowings []BorrowingResponse `json:"borrowings"`
}

type AuditResponse struct {
	Discrepancies []DiscrepancyResponse `json:"discrepancies"`
}

// LendingServer is the gRPC surface of the engine.
type LendingServer interface {
	CreateBook(context.Context, *domain.BookInput) (*BookResponse, error)
	UpdateBook(context.Context, *UpdateBookRequest) (*BookResponse, error)
	DeleteBook(context.Context, *IDRequest) (*Empty, error)
	GetBook(context.Context, *IDRequest) (*BookResponse, error)
	ListBooks(context.Context, *ListBooksRequest) (*BookList, error)

	CreateBorrower(context.Context, *domain.BorrowerInput) (*BorrowerResponse, error)
	UpdateBorrower(context.Context, *UpdateBorrowerRequest) (*BorrowerResponse, error)
	DeleteBorrower(context.Context, *IDRequest) (*Empty, error)
	GetBorrower(context.Context, *IDRequest) (*BorrowerResponse, error)
	ListBorrowers(context.Context, *ListBorrowersRequest) (*BorrowerList, error)

	BorrowBook(context.Context, *BorrowRequest) (*BorrowingResponse, error)
	ReturnBook(context.Context, *ReturnRequest) (*BorrowingResponse, error)
	GetBorrowing(context.Context, *IDRequest) (*BorrowingResponse, error)
	ListBorrowings(context.Context, *ListBorrowingsRequest) (*BorrowingList, error)
	Audit(context.Context, *Empty) (*AuditResponse, error)
}

type GRPCHandler struct {
	engine *service.Engine
}

func NewGRPCHandler(engine *service.Engine) *GRPCHandler {
	return &GRPCHandler{engine: engine}
}

func RegisterLendingServer(s grpc.ServiceRegistrar, srv LendingServer) {
	s.RegisterService(&lendingServiceDesc, srv)
}

func (h *GRPCHandler) CreateBook(ctx context.Context, req *domain.BookInput) (*BookResponse, error) {
	book, err := h.engine.CreateBook(ctx, *req)
	if err != nil {
		return nil, grpcError(err)
	}
	resp := toBookResponse(book)
	return &resp, nil
}

func (h *GRPCHandler) UpdateBook(ctx context.Context, req *UpdateBookRequest) (*BookResponse, error) {
	book, err := h.engine.UpdateBook(ctx, req.ID, req.Book)
	if err != nil {
		return nil, grpcError(err)
	}
	resp := toBookResponse(book)
	return &resp, nil
}

func (h *GRPCHandler) DeleteBook(ctx context.Context, req *IDRequest) (*Empty, error) {
	if err := h.engine.DeleteBook(ctx, req.ID); err != nil {
		return nil, grpcError(err)
	}
	return &Empty{}, nil
}

func (h *GRPCHandler) GetBook(ctx context.Context, req *IDRequest) (*BookResponse, error) {
	book, err := h.engine.GetBook(ctx, req.ID)
	if err != nil {
		return nil, grpcError(err)
	}
	resp := toBookResponse(book)
	return &resp, nil
}

func (h *GRPCHandler) ListBooks(ctx context.Context, req *ListBooksRequest) (*BookList, error) {
	books, err := h.engine.ListBooks(ctx, domain.BookFilter{
		Search:        req.Search,
		AvailableOnly: req.AvailableOnly,
	})
	if err != nil {
		return nil, grpcError(err)
	}
	return &BookList{Books: mapSlice(books, toBookResponse)}, nil
}

func (h *GRPCHandler) CreateBorrower(ctx context.Context, req *domain.BorrowerInput) (*BorrowerResponse, error) {
	borrower, err := h.engine.CreateBorrower(ctx, *req)
	if err != nil {
		return nil, grpcError(err)
	}
	resp := toBorrowerResponse(borrower)
	return &resp, nil
}

func (h *GRPCHandler) UpdateBorrower(ctx context.Context, req *UpdateBorrowerRequest) (*BorrowerResponse, error) {
	borrower, err := h.engine.UpdateBorrower(ctx, req.ID, req.Borrower)
	if err != nil {
		return nil, grpcError(err)
	}
	resp := toBorrowerResponse(borrower)
	return &resp, nil
}

func (h *GRPCHandler) DeleteBorrower(ctx context.Context, req *IDRequest) (*Empty, error) {
	if err := h.engine.DeleteBorrower(ctx, req.ID); err != nil {
		return nil, grpcError(err)
	}
	return &Empty{}, nil
}

func (h *GRPCHandler) GetBorrower(ctx context.Context, req *IDRequest) (*BorrowerResponse, error) {
	borrower, err := h.engine.GetBorrower(ctx, req.ID)
	if err != nil {
		return nil, grpcError(err)
	}
	resp := toBorrowerResponse(borrower)
	return &resp, nil
}

func (h *GRPCHandler) ListBorrowers(ctx context.Context, req *ListBorrowersRequest) (*BorrowerList, error) {
	borrowers, err := h.engine.ListBorrowers(ctx, domain.BorrowerFilter{Search: req.Search})
	if err != nil {
		return nil, grpcError(err)
	}
	return &BorrowerList{Borrowers: mapSlice(borrowers, toBorrowerResponse)}, nil
}

func (h *GRPCHandler) BorrowBook(ctx context.Context, req *BorrowRequest) (*BorrowingResponse, error) {
	borrowDate, err := optionalDay(req.BorrowDate)
	if err != nil {
		return nil, grpcError(err)
	}
	record, err := h.engine.BorrowBookOnce(ctx, req.RequestKey, req.BookID, req.BorrowerID, borrowDate)
	if err != nil {
		return nil, grpcError(err)
	}
	resp := toBorrowingResponse(record)
	return &resp, nil
}

func (h *GRPCHandler) ReturnBook(ctx context.Context, req *ReturnRequest) (*BorrowingResponse, error) {
	returnDate, err := optionalDay(req.ReturnDate)
	if err != nil {
		return nil, grpcError(err)
	}
	record, err := h.engine.ReturnBook(ctx, req.BorrowingID, returnDate)
	if err != nil {
		return nil, grpcError(err)
	}
	resp := toBorrowingResponse(record)
	return &resp, nil
}

func (h *GRPCHandler) GetBorrowing(ctx context.Context, req *IDRequest) (*BorrowingResponse, error) {
	record, err := h.engine.GetBorrowing(ctx, req.ID)
	if err != nil {
		return nil, grpcError(err)
	}
	resp := toBorrowingResponse(record)
	return &resp, nil
}

func (h *GRPCHandler) ListBorrowings(ctx context.Context, req *ListBorrowingsRequest) (*BorrowingList, error) {
	details, err := h.engine.ListBorrowings(ctx, domain.BorrowingFilter{
		Search:     req.Search,
		OpenOnly:   req.OpenOnly,
		BookID:     req.BookID,
		BorrowerID: req.BorrowerID,
	})
	if err != nil {
		return nil, grpcError(err)
	}
	return &BorrowingList{Borrowings: mapSlice(details, toBorrowingDetailResponse)}, nil
}

func (h *GRPCHandler) Audit(ctx context.Context, _ *Empty) (*AuditResponse, error) {
	found, err := h.engine.Audit(ctx)
	if err != nil {
		return nil, grpcError(err)
	}
	return &AuditResponse{Discrepancies: mapSlice(found, toDiscrepancyResponse)}, nil
}

func grpcError(err error) error {
	m := mapError(err)
	return status.Error(m.code, publicMessage(err, m))
}

var lendingServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LendingServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("CreateBook", LendingServer.CreateBook),
		unary("UpdateBook", LendingServer.UpdateBook),
		unary("DeleteBook", LendingServer.DeleteBook),
		unary("GetBook", LendingServer.GetBook),
		unary("ListBooks", LendingServer.ListBooks),
		unary("CreateBorrower", LendingServer.CreateBorrower),
		unary("UpdateBorrower", LendingServer.UpdateBorrower),
		unary("DeleteBorrower", LendingServer.DeleteBorrower),
		unary("GetBorrower", LendingServer.GetBorrower),
		unary("ListBorrowers", LendingServer.ListBorrowers),
		unary("BorrowBook", LendingServer.BorrowBook),
		unary("ReturnBook", LendingServer.ReturnBook),
		unary("GetBorrowing", LendingServer.GetBorrowing),
		unary("ListBorrowings", LendingServer.ListBorrowings),
		unary("Audit", LendingServer.Audit),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "lending/v1/lending.proto",
}

func fullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

// unary adapts a typed server method to grpc.MethodDesc, the job protoc
// generated code usually does.
func unary[Req, Resp any](name string, call func(LendingServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(LendingServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(LendingServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}
