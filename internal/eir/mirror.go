package eir

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// MirrorClient wraps an S3-compatible client for the source mirror. It
// serves two jobs: resolving s3:// manifest URIs during fetch, and pushing
// the local source cache so other hosts can bootstrap without touching the
// upstream servers.
type MirrorClient struct {
	Client *s3.Client
	Bucket string
}

// NewMirrorClient initializes the mirror client from configuration values.
func NewMirrorClient(cfg *Config) (*MirrorClient, error) {
	endpoint := cfg.Values["EIR_MIRROR_ENDPOINT"]
	accessKey := cfg.Values["EIR_MIRROR_ACCESS_KEY_ID"]
	secretKey := cfg.Values["EIR_MIRROR_SECRET_ACCESS_KEY"]
	bucket := cfg.Values["EIR_MIRROR_BUCKET"]

	if accessKey == "" || secretKey == "" || bucket == "" {
		return nil, fmt.Errorf("mirror credentials missing in configuration (EIR_MIRROR_ACCESS_KEY_ID, EIR_MIRROR_SECRET_ACCESS_KEY, EIR_MIRROR_BUCKET)")
	}

	options := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
		awsconfig.WithRegion(cfg.value("EIR_MIRROR_REGION", "auto")),
	}
	if Debug {
		options = append(options, awsconfig.WithClientLogMode(aws.LogRetries|aws.LogRequest))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.TODO(), options...)
	if err != nil {
		return nil, fmt.Errorf("failed to load mirror config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = true
	})

	return &MirrorClient{Client: client, Bucket: bucket}, nil
}

// parseS3URI splits s3://bucket/key into its parts.
func parseS3URI(uri string) (bucket, key string, err error) {
	rest := strings.TrimPrefix(uri, "s3://")
	if rest == uri {
		return "", "", fmt.Errorf("not an s3 URI: %s", uri)
	}
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("malformed s3 URI: %s", uri)
	}
	return parts[0], parts[1], nil
}

// DownloadTo streams one object into w.
func (mc *MirrorClient) DownloadTo(ctx context.Context, bucket, key string, w io.Writer) error {
	if bucket == "" {
		bucket = mc.Bucket
	}
	out, err := mc.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("mirror get %s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()
	if _, err := io.Copy(w, out.Body); err != nil {
		return fmt.Errorf("mirror read %s/%s: %w", bucket, key, err)
	}
	return nil
}

// Upload stores one object in the mirror bucket.
func (mc *MirrorClient) Upload(ctx context.Context, key string, r io.Reader) error {
	_, err := mc.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(mc.Bucket),
		Key:    aws.String(key),
		Body:   r,
	})
	if err != nil {
		return fmt.Errorf("mirror put %s: %w", key, err)
	}
	return nil
}

// mirrorPush uploads every archive in the source cache under sources/.
func mirrorPush(ctx context.Context, bc *BuildContext) error {
	mc, err := NewMirrorClient(bc.Cfg)
	if err != nil {
		return err
	}

	entries, err := os.ReadDir(bc.SourcesDir)
	if err != nil {
		return fmt.Errorf("could not read sources dir: %w", err)
	}

	var pushed int
	for _, e := range entries {
		if e.IsDir() || strings.HasSuffix(e.Name(), ".lock") || strings.HasSuffix(e.Name(), ".part") {
			continue
		}
		path := filepath.Join(bc.SourcesDir, e.Name())
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		colArrow.Print("-> ")
		colSuccess.Printf("Uploading %s\n", e.Name())
		err = mc.Upload(ctx, "sources/"+e.Name(), f)
		f.Close()
		if err != nil {
			return err
		}
		pushed++
	}

	colArrow.Print("-> ")
	colSuccess.Printf("Pushed %d source archive(s) to mirror\n", pushed)
	return nil
}
