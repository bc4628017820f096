package media

import (
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// S3Mirror copies staged media to an S3-compatible bucket so the public URL
// served to providers is backed by object storage instead of the local disk.
type S3Mirror struct {
	s3Client *s3.S3
	bucket   string
	baseURL  string
}

// NewS3MirrorFromEnv builds a mirror from S3_* environment variables.
// Returns (nil, nil) when no S3 configuration is present, leaving media
// local-only.
func NewS3MirrorFromEnv() (*S3Mirror, error) {
	endpoint := os.Getenv("S3_ENDPOINT")
	accessKey := os.Getenv("S3_ACCESS_KEY")
	secretKey := os.Getenv("S3_SECRET_KEY")
	bucket := os.Getenv("S3_BUCKET")

	if accessKey == "" || secretKey == "" || bucket == "" {
		return nil, nil
	}

	sess, err := session.NewSession(&aws.Config{
		Region:           aws.String("us-east-1"),
		Endpoint:         aws.String(endpoint),
		Credentials:      credentials.NewStaticCredentials(accessKey, secretKey, ""),
		S3ForcePathStyle: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return &S3Mirror{
		s3Client: s3.New(sess),
		bucket:   bucket,
		baseURL:  fmt.Sprintf("https://%s", bucket),
	}, nil
}

// Upload puts a local file into the bucket and returns its public URL.
func (m *S3Mirror) Upload(localPath, key, contentType string) (string, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat file: %w", err)
	}

	_, err = m.s3Client.PutObject(&s3.PutObjectInput{
		Bucket:        aws.String(m.bucket),
		Key:           aws.String(key),
		Body:          file,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}

	return fmt.Sprintf("%s/%s", m.baseURL, key), nil
}
