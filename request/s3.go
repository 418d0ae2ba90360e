package request

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/c360/dataprocessor/errors"
)

// S3GetObjectAPI is the part of *s3.Client used by S3.
type S3GetObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3 reads one object from an S3 bucket.
type S3 struct {
	Base
	client S3GetObjectAPI
	bucket string
	key    string

	body io.ReadCloser
}

// NewS3 returns a request for bucket/key.
func NewS3(client S3GetObjectAPI, bucket, key string, opts ...Option) *S3 {
	r := &S3{client: client, bucket: bucket, key: key}
	r.init(opts)
	return r
}

// InputStream fetches the object and returns its body.
func (r *S3) InputStream(ctx context.Context) (io.ReadCloser, error) {
	r.markStarted()
	r.logCall("s3", r.String())

	if r.client == nil {
		r.setStatus(StatusNoConnection, noConnectionMessage)
		return nil, errors.WrapTransient(errors.ErrNoConnection, "S3", "InputStream", "get object")
	}

	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(r.key),
	})
	if err != nil {
		return nil, r.fail(err)
	}

	r.body = out.Body
	r.setStatus(http.StatusOK, http.StatusText(http.StatusOK))
	return out.Body, nil
}

func (r *S3) fail(err error) error {
	code, message := StatusNoConnection, err.Error()

	var respErr *awshttp.ResponseError
	if stderrors.As(err, &respErr) {
		code = respErr.HTTPStatusCode()
	}
	var apiErr smithy.APIError
	if stderrors.As(err, &apiErr) {
		message = apiErr.ErrorCode()
		if msg := apiErr.ErrorMessage(); msg != "" {
			message += ": " + msg
		}
	}

	var noKey *types.NoSuchKey
	var noBucket *types.NoSuchBucket
	if stderrors.As(err, &noKey) || stderrors.As(err, &noBucket) {
		if code == StatusNoConnection {
			code = http.StatusNotFound
		}
		r.setStatus(code, message)
		return errors.Wrap(fmt.Errorf("%w: %s", errors.ErrNotFound, r.String()), "S3", "InputStream", "get object")
	}

	r.setStatus(code, message)
	return classifyTransportError(err, "S3")
}

// Close releases the object body.
func (r *S3) Close() error {
	return r.closeWith(func() error {
		if r.body == nil {
			return nil
		}
		return r.body.Close()
	})
}

// String returns the s3:// location.
func (r *S3) String() string { return "s3://" + r.bucket + "/" + r.key }
