package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	sc "github.com/dmitrijs2005/daybook/internal/server/config"
	"github.com/stretchr/testify/require"
)

// stubAWS replaces the AWS seams for one test.
func stubAWS(t *testing.T) {
	t.Helper()
	oldLoad, oldNew, oldPresign := loadDefaultAWSConfig, newS3ClientFromConfig, newS3PresignClient
	oldPut, oldGet := putObject, presignGetObject
	t.Cleanup(func() {
		loadDefaultAWSConfig, newS3ClientFromConfig, newS3PresignClient = oldLoad, oldNew, oldPresign
		putObject, presignGetObject = oldPut, oldGet
	})

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*config.LoadOptions) error) (aws.Config, error) {
		return aws.Config{Region: "us-east-1"}, nil
	}
}

func s3Config() *sc.Config {
	return &sc.Config{
		S3Region:       "us-east-1",
		S3RootUser:     "x",
		S3RootPassword: "y",
		S3BaseEndpoint: "http://127.0.0.1:9000",
		S3Bucket:       "bucket",
	}
}

func TestS3Store_PutAndPresign(t *testing.T) {
	stubAWS(t)

	var builds int
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		builds++
		o := s3.Options{}
		for _, fn := range optFns {
			fn(&o)
		}
		require.Equal(t, "http://127.0.0.1:9000", aws.ToString(o.BaseEndpoint))
		require.True(t, o.UsePathStyle)
		return s3.NewFromConfig(cfg, optFns...)
	}

	var putKey, putType string
	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		putKey = aws.ToString(in.Key)
		putType = aws.ToString(in.ContentType)
		require.Equal(t, "bucket", aws.ToString(in.Bucket))
		return &s3.PutObjectOutput{}, nil
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		o := s3.PresignOptions{}
		for _, fn := range optFns {
			fn(&o)
		}
		require.Equal(t, 10*time.Minute, o.Expires)
		return &v4.PresignedHTTPRequest{URL: "https://signed/" + aws.ToString(in.Key)}, nil
	}

	st := NewS3Store(s3Config())
	require.NoError(t, st.Put(context.Background(), "exports/a.json", []byte("{}"), "application/json"))
	require.Equal(t, "exports/a.json", putKey)
	require.Equal(t, "application/json", putType)

	url, err := st.PresignGet(context.Background(), "exports/a.json", 10*time.Minute)
	require.NoError(t, err)
	require.Equal(t, "https://signed/exports/a.json", url)
	require.Equal(t, 1, builds, "clients are built once")
}

func TestS3Store_ConfigError(t *testing.T) {
	stubAWS(t)
	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*config.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("no config")
	}

	st := NewS3Store(s3Config())
	require.ErrorContains(t, st.Put(context.Background(), "k", nil, "application/json"), "no config")
	_, err := st.PresignGet(context.Background(), "k", time.Minute)
	require.ErrorContains(t, err, "no config")
}

func TestS3Store_PresignError(t *testing.T) {
	stubAWS(t)
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return nil, errors.New("presign failed")
	}
	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return nil, errors.New("put failed")
	}

	st := NewS3Store(s3Config())
	require.ErrorContains(t, st.Put(context.Background(), "k", []byte("x"), "text/plain"), "put failed")
	_, err := st.PresignGet(context.Background(), "k", time.Minute)
	require.ErrorContains(t, err, "presign failed")
}
