package s3

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/ghyeongl/pendingfs/storage"
)

// classify maps SDK errors onto provider statuses. Errors that never reached
// the service are connection failures and retryable; throttling and server
// faults are retryable errors.
func classify(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var se *storage.Error
	if errors.As(err, &se) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return storage.NewError(op, path, storage.StatusCancelled, err)
	}
	if isNoSuchKey(err) {
		return storage.NewError(op, path, storage.StatusNotFound, err)
	}

	var ae smithy.APIError
	if !errors.As(err, &ae) {
		return storage.Retryable(op, path, storage.StatusConnectionFailed, err)
	}
	switch ae.ErrorCode() {
	case "NoSuchKey", "NotFound", "NoSuchBucket":
		return storage.NewError(op, path, storage.StatusNotFound, err)
	case "AccessDenied", "Forbidden", "InvalidAccessKeyId", "SignatureDoesNotMatch", "AllAccessDisabled":
		return storage.NewError(op, path, storage.StatusPermissionDenied, err)
	case "NotImplemented":
		return storage.NewError(op, path, storage.StatusUnimplemented, err)
	case "SlowDown", "Throttling", "ThrottlingException", "RequestTimeout", "RequestTimeTooSkewed":
		return storage.Retryable(op, path, storage.StatusError, err)
	}
	if ae.ErrorFault() == smithy.FaultServer {
		return storage.Retryable(op, path, storage.StatusError, err)
	}
	return storage.NewError(op, path, storage.StatusError, err)
}

// isNoSuchKey reports the typed not-found errors the S3 client returns.
func isNoSuchKey(err error) bool {
	var nsk *types.NoSuchKey
	var nf *types.NotFound
	var nb *types.NoSuchBucket
	return errors.As(err, &nsk) || errors.As(err, &nf) || errors.As(err, &nb)
}
