package handler

import (
	"context"
	"errors"
	"math"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/rl1809/vending/internal/core/service"
	"github.com/rl1809/vending/internal/port"
)

const VendingServiceName = "vending.v1.VendingService"

// VendingServer is the gRPC surface of the machine. Messages are
// google.protobuf.Struct so clients need no generated stubs.
type VendingServer interface {
	List(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	AddMoney(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Buy(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Cancel(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var VendingServiceDesc = grpc.ServiceDesc{
	ServiceName: VendingServiceName,
	HandlerType: (*VendingServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "List", Handler: unaryHandler("List", VendingServer.List)},
		{MethodName: "AddMoney", Handler: unaryHandler("AddMoney", VendingServer.AddMoney)},
		{MethodName: "Buy", Handler: unaryHandler("Buy", VendingServer.Buy)},
		{MethodName: "Cancel", Handler: unaryHandler("Cancel", VendingServer.Cancel)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "vending/v1/vending.proto",
}

func RegisterVendingServer(s grpc.ServiceRegistrar, srv VendingServer) {
	s.RegisterService(&VendingServiceDesc, srv)
}

type unaryMethod func(VendingServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(name string, method unaryMethod) func(interface{}, context.Context, func(interface{}) error, grpc.UnaryServerInterceptor) (interface{}, error) {
	fullMethod := "/" + VendingServiceName + "/" + name
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return method(srv.(VendingServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return method(srv.(VendingServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

type GRPCHandler struct {
	vending     *service.VendingService
	idempotency port.IdempotencyRepository // optional
	logger      *zap.Logger
}

func NewGRPCHandler(vending *service.VendingService, idempotency port.IdempotencyRepository, logger *zap.Logger) *GRPCHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GRPCHandler{vending: vending, idempotency: idempotency, logger: logger}
}

func (h *GRPCHandler) List(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	slots := h.vending.List(ctx)
	items := make([]interface{}, 0, len(slots))
	for _, slot := range slots {
		items = append(items, itemFields(newItemView(slot.Position, slot.Item)))
	}
	return newStruct(map[string]interface{}{"items": items})
}

func (h *GRPCHandler) AddMoney(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	amount, err := decimal.NewFromString(req.GetFields()["amount"].GetStringValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "amount must be a decimal string")
	}

	if err := h.vending.AddMoney(ctx, amount); err != nil {
		return nil, h.toStatus(err)
	}
	return newStruct(map[string]interface{}{"message": "money accepted"})
}

func (h *GRPCHandler) Buy(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	pos, ok := positionArg(req.GetFields()["position"])
	if !ok {
		return nil, status.Error(codes.InvalidArgument, "position must be a whole number")
	}

	requestID := req.GetFields()["request_id"].GetStringValue()
	if requestID != "" && h.idempotency != nil {
		ok, err := h.idempotency.SetIdempotency(ctx, requestID)
		if err != nil {
			h.logger.Error("idempotency check failed", zap.String("request_id", requestID), zap.Error(err))
			return nil, status.Error(codes.Internal, "internal error")
		}
		if !ok {
			return nil, status.Error(codes.AlreadyExists, "duplicate request")
		}
	}

	purchase, err := h.vending.Buy(ctx, pos)
	if err != nil {
		if requestID != "" && h.idempotency != nil && chargeFree(err) {
			if relErr := h.idempotency.ReleaseIdempotency(ctx, requestID); relErr != nil {
				h.logger.Warn("failed to release request id", zap.String("request_id", requestID), zap.Error(relErr))
			}
		}
		return nil, h.toStatus(err)
	}

	fields := map[string]interface{}{
		"item":  itemFields(newItemView(purchase.Position, purchase.Item)),
		"tx_id": purchase.Tx.ID.String(),
	}
	if purchase.Change.Valid {
		fields["change"] = purchase.Change.Decimal.String()
	}
	return newStruct(fields)
}

func (h *GRPCHandler) Cancel(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	change, err := h.vending.Cancel(ctx)
	if err != nil {
		return nil, h.toStatus(err)
	}

	fields := map[string]interface{}{"message": "transaction cancelled"}
	if change.Valid {
		fields["change"] = change.Decimal.String()
	}
	return newStruct(fields)
}

func (h *GRPCHandler) toStatus(err error) error {
	_, message := classify(err)
	code := codes.Internal
	switch {
	case errors.Is(err, service.ErrDispenseFailed):
		code = codes.Internal
	case errors.Is(err, service.ErrInvalidPosition), errors.Is(err, service.ErrUnknownItem):
		code = codes.NotFound
	case errors.Is(err, service.ErrInvalidAmount):
		code = codes.InvalidArgument
	case errors.Is(err, service.ErrCashNotSupported):
		code = codes.Unimplemented
	case errors.Is(err, service.ErrUnavailable),
		errors.Is(err, service.ErrTransactionFailed),
		errors.Is(err, service.ErrNoTransaction),
		errors.Is(err, service.ErrSlotUnavailable),
		errors.Is(err, service.ErrAlreadySettled):
		code = codes.FailedPrecondition
	case errors.Is(err, service.ErrReversalFailed):
		code = codes.Aborted
	}
	if code == codes.Internal {
		h.logger.Error("rpc failed", zap.Error(err))
	}
	return status.Error(code, message)
}

// positionArg accepts only a whole number that fits in an int32.
func positionArg(v *structpb.Value) (int, bool) {
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, false
	}
	f := n.NumberValue
	if f != math.Trunc(f) || f < math.MinInt32 || f > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

func itemFields(view ItemView) map[string]interface{} {
	return map[string]interface{}{
		"position": view.Position,
		"code":     view.Code,
		"name":     view.Name,
		"count":    view.Count,
		"price":    view.Price.String(),
	}
}

func newStruct(fields map[string]interface{}) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return s, nil
}
