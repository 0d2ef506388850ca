// Package storage archiva en S3 (o compatible: MinIO, LocalStack) los comprobantes autorizados.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"

	"github.com/jhoicas/osiris-api/internal/application/electronic"
	"github.com/jhoicas/osiris-api/pkg/config"
)

var _ electronic.Archive = (*S3Archive)(nil)

// S3Archive implementa electronic.Archive sobre un bucket S3.
type S3Archive struct {
	client *s3.Client
	bucket string
	log    zerolog.Logger
}

// NewS3Archive construye el cliente. Con Endpoint definido usa direccionamiento por path (MinIO).
func NewS3Archive(ctx context.Context, cfg config.StorageConfig, log zerolog.Logger) (*S3Archive, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("storage: bucket requerido")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage: configuración AWS: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.UsePathStyle = true
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		}
	})

	return &S3Archive{
		client: client,
		bucket: cfg.Bucket,
		log:    log.With().Str("component", "archivo_s3").Str("bucket", cfg.Bucket).Logger(),
	}, nil
}

// EnsureBucket crea el bucket si no existe. Se llama al arrancar.
func (a *S3Archive) EnsureBucket(ctx context.Context) error {
	_, err := a.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(a.bucket)})
	if err == nil {
		return nil
	}
	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) {
		return fmt.Errorf("storage: verificar bucket: %w", err)
	}

	a.log.Info().Msg("creando bucket de comprobantes")
	_, err = a.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(a.bucket)})
	if err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &owned) {
			return nil
		}
		return fmt.Errorf("storage: crear bucket: %w", err)
	}
	return nil
}

// Put sube un objeto; una clave existente se sobrescribe.
func (a *S3Archive) Put(ctx context.Context, key, contentType string, data []byte) error {
	if key == "" {
		return errors.New("storage: clave requerida")
	}
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return fmt.Errorf("storage: subir %s: %w", key, err)
	}
	a.log.Debug().Str("clave", key).Int("bytes", len(data)).Msg("objeto archivado")
	return nil
}
