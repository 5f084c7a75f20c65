package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3API is the subset of the S3 client used for multipart uploads.
type S3API interface {
	CreateMultipartUpload(ctx context.Context, params *s3.CreateMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error)
	UploadPart(ctx context.Context, params *s3.UploadPartInput, optFns ...func(*s3.Options)) (*s3.UploadPartOutput, error)
	CompleteMultipartUpload(ctx context.Context, params *s3.CompleteMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error)
	AbortMultipartUpload(ctx context.Context, params *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error)
}

// S3 uploads with the multipart API, one part per chunk. S3 requires every
// part but the last to be at least 5 MiB, which matches DefaultChunkSize.
type S3 struct {
	client S3API
	bucket string
}

func NewS3(client S3API, bucket string) *S3 {
	return &S3{client: client, bucket: bucket}
}

// NewS3Client loads the default AWS configuration chain. endpoint, when set,
// points the client at an S3 compatible service using path style addressing.
func NewS3Client(ctx context.Context, region, endpoint string) (*s3.Client, error) {
	var loadOpts []func(*config.LoadOptions) error
	if region != "" {
		loadOpts = append(loadOpts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	var s3Opts []func(*s3.Options)
	if endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		})
	}
	return s3.NewFromConfig(cfg, s3Opts...), nil
}

func (c *S3) CreateUpload(ctx context.Context, obj Object, parentID string) (Session, error) {
	key := obj.Name
	if parentID != "" {
		key = path.Join(parentID, obj.Name)
	}

	input := &s3.CreateMultipartUploadInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	}
	if obj.ContentType != "" {
		input.ContentType = aws.String(obj.ContentType)
	}
	out, err := c.client.CreateMultipartUpload(ctx, input)
	if err != nil {
		return nil, s3Error("s3 create multipart upload", err)
	}

	return &s3Session{
		client:   c.client,
		bucket:   c.bucket,
		key:      key,
		uploadID: aws.ToString(out.UploadId),
		obj:      obj,
		chunk:    obj.chunkSize(),
	}, nil
}

type s3Session struct {
	client   S3API
	bucket   string
	key      string
	uploadID string
	obj      Object
	chunk    int64
	offset   int64
	parts    []types.CompletedPart
}

func (s *s3Session) SendNextChunk(ctx context.Context) (Progress, *Uploaded, error) {
	// An empty object still needs one (empty) part to be completed.
	if s.offset < s.obj.Size || len(s.parts) == 0 {
		n := nextChunk(s.offset, s.obj.Size, s.chunk)
		partNumber := int32(len(s.parts) + 1)
		out, err := s.client.UploadPart(ctx, &s3.UploadPartInput{
			Bucket:        aws.String(s.bucket),
			Key:           aws.String(s.key),
			UploadId:      aws.String(s.uploadID),
			PartNumber:    aws.Int32(partNumber),
			Body:          io.NewSectionReader(s.obj.Content, s.offset, n),
			ContentLength: aws.Int64(n),
		})
		if err != nil {
			return Progress{}, nil, s3Error("s3 upload part", err)
		}
		s.parts = append(s.parts, types.CompletedPart{
			ETag:       out.ETag,
			PartNumber: aws.Int32(partNumber),
		})
		s.offset += n
		if s.offset < s.obj.Size {
			return Progress{Sent: s.offset, Total: s.obj.Size}, nil, nil
		}
	}

	out, err := s.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(s.bucket),
		Key:             aws.String(s.key),
		UploadId:        aws.String(s.uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{Parts: s.parts},
	})
	if err != nil {
		return Progress{}, nil, s3Error("s3 complete multipart upload", err)
	}

	link := aws.ToString(out.Location)
	if link == "" {
		link = fmt.Sprintf("s3://%s/%s", s.bucket, s.key)
	}
	uploaded := &Uploaded{
		ID:   s.key,
		Name: s.obj.Name,
		Link: link,
	}
	return Progress{Sent: s.obj.Size, Total: s.obj.Size}, uploaded, nil
}

func (s *s3Session) Abort(ctx context.Context) error {
	_, err := s.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(s.key),
		UploadId: aws.String(s.uploadID),
	})
	if err != nil {
		return s3Error("s3 abort multipart upload", err)
	}
	return nil
}

func s3Error(op string, err error) error {
	var re *awshttp.ResponseError
	if errors.As(err, &re) {
		return &StatusError{Op: op, Code: re.HTTPStatusCode(), Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}
