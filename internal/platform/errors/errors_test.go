package errors

import (
	"fmt"
	"testing"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestGRPCCodeMapping(t *testing.T) {
	cases := map[Code]codes.Code{
		CodeTerrainSizeInvalid:   codes.InvalidArgument,
		CodeUnsupportedOperation: codes.InvalidArgument,
		CodeTransactionNotFound:  codes.NotFound,
		CodeTerrainGroupNotFound: codes.NotFound,
		CodeTileNotFound:         codes.NotFound,
		CodeTransactionFailed:    codes.Internal,
		CodePersistenceFailed:    codes.Internal,
		CodeGrowthExhausted:      codes.Internal,
		CodeUnknown:              codes.Internal,
	}
	for code, want := range cases {
		if got := code.GRPCCode(); got != want {
			t.Fatalf("%s.GRPCCode() = %v, want %v", code, got, want)
		}
	}
}

func TestErrorIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("commit: %w", Wrap(CodeTransactionFailed, "commit transaction", fmt.Errorf("disk full")))
	if !IsCode(err, CodeTransactionFailed) {
		t.Fatalf("code = %s, want %s", GetCode(err), CodeTransactionFailed)
	}
	if GetCode(fmt.Errorf("plain")) != CodeUnknown {
		t.Fatal("expected unknown code for plain errors")
	}
	if got := err.Error(); got != "commit: commit transaction: disk full" {
		t.Fatalf("message = %q", got)
	}
}

func TestHandleErrorAttachesDetails(t *testing.T) {
	err := HandleError(WithMetadata(CodeTransactionNotFound, "transaction missing", map[string]string{"TransactionID": "tx-1"}), "")
	st, ok := status.FromError(err)
	if !ok {
		t.Fatalf("expected status error, got %T", err)
	}
	if st.Code() != codes.NotFound {
		t.Fatalf("code = %v, want NotFound", st.Code())
	}

	var info *errdetails.ErrorInfo
	var localized *errdetails.LocalizedMessage
	for _, detail := range st.Details() {
		switch d := detail.(type) {
		case *errdetails.ErrorInfo:
			info = d
		case *errdetails.LocalizedMessage:
			localized = d
		}
	}
	if info == nil || info.GetReason() != string(CodeTransactionNotFound) {
		t.Fatalf("error info = %v", info)
	}
	if localized == nil || localized.GetMessage() != "Transaction tx-1 was not found or already finished." {
		t.Fatalf("localized = %v", localized)
	}
}

func TestHandleErrorPassesStatusAndHidesUnknown(t *testing.T) {
	passthrough := status.Error(codes.Unavailable, "down")
	if got := HandleError(passthrough, "en-US"); got != passthrough {
		t.Fatalf("expected status passthrough, got %v", got)
	}
	if got := status.Code(HandleError(fmt.Errorf("boom"), "")); got != codes.Internal {
		t.Fatalf("code = %v, want Internal", got)
	}
	if HandleError(nil, "") != nil {
		t.Fatal("expected nil for nil error")
	}
}
