package library

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"razza-canvas-server/modules/common/model"
)

// S3API - S3Source 가 사용하는 S3 메서드
type S3API interface {
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source - S3 호환 버킷의 <prefix>/<category>[/<subcategory>]/<file>
type S3Source struct {
	client S3API
	bucket string
	prefix string
}

// NewS3Source - 주어진 클라이언트로 S3Source 생성
func NewS3Source(client S3API, bucket, prefix string) *S3Source {
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &S3Source{client: client, bucket: bucket, prefix: prefix}
}

// NewS3Client - 기본 자격 증명 체인으로 S3 클라이언트 생성
// baseEndpoint 가 있으면 path-style (MinIO 등)
func NewS3Client(ctx context.Context, region, baseEndpoint string) (*s3.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if baseEndpoint != "" {
			o.BaseEndpoint = aws.String(baseEndpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// List - prefix 아래 모든 객체를 페이지 단위로 조회
func (s *S3Source) List(ctx context.Context) ([]model.ReferenceImage, error) {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})

	var images []model.ReferenceImage
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list s3://%s/%s: %w", s.bucket, s.prefix, err)
		}
		for _, obj := range page.Contents {
			if img, ok := s.imageFromKey(aws.ToString(obj.Key)); ok {
				images = append(images, img)
			}
		}
	}
	return images, nil
}

func (s *S3Source) imageFromKey(key string) (model.ReferenceImage, bool) {
	rel := strings.TrimPrefix(key, s.prefix)
	parts := strings.Split(rel, "/")
	if len(parts) < 2 || !IsImageFile(rel) {
		return model.ReferenceImage{}, false
	}

	category := parts[0]
	filename := path.Base(rel)
	subcategory := ""
	if len(parts) > 2 {
		subcategory = parts[1]
	}
	if category == "" || filename == "" {
		return model.ReferenceImage{}, false
	}

	return model.ReferenceImage{
		Category:     category,
		Subcategory:  subcategory,
		Filename:     filename,
		Path:         key,
		RelativePath: relativePath(category, subcategory, filename),
	}, true
}

// ReadBytes - 객체 다운로드, 없으면 ErrReferenceMissing
func (s *S3Source) ReadBytes(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, fmt.Errorf("s3://%s/%s: %w", s.bucket, key, model.ErrReferenceMissing)
		}
		return nil, fmt.Errorf("get s3://%s/%s: %w", s.bucket, key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read s3://%s/%s: %w", s.bucket, key, err)
	}
	return data, nil
}
