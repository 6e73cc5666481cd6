package storage

import (
	"bytes"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// ArchiveClient cold-archives large state snapshots to S3 once they grow
// past what's worth keeping inline in Postgres. Grounded on the teacher's
// storage/s3.go stub, filled in with the actual Put/Get calls it never had.
type ArchiveClient struct {
	client *s3.S3
	bucket string
}

// NewArchiveClient opens an S3 client scoped to bucket in region.
func NewArchiveClient(region, bucket string) (*ArchiveClient, error) {
	sess, err := session.NewSession(&aws.Config{Region: aws.String(region)})
	if err != nil {
		return nil, fmt.Errorf("storage: create s3 session: %w", err)
	}

	return &ArchiveClient{
		client: s3.New(sess),
		bucket: bucket,
	}, nil
}

// SaveSnapshotArchive uploads a snapshot's raw data under
// sessions/<sessionID>/<snapshotID>.json and returns its S3 key.
func (c *ArchiveClient) SaveSnapshotArchive(sessionID, snapshotID string, data []byte) (string, error) {
	key := archiveKey(sessionID, snapshotID)

	_, err := c.client.PutObject(&s3.PutObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return "", fmt.Errorf("storage: s3 put %s: %w", key, err)
	}
	return key, nil
}

// LoadSnapshotArchive downloads a previously archived snapshot by key.
func (c *ArchiveClient) LoadSnapshotArchive(key string) ([]byte, error) {
	out, err := c.client.GetObject(&s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("storage: s3 get %s: %w", key, err)
	}
	defer out.Body.Close()

	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(out.Body); err != nil {
		return nil, fmt.Errorf("storage: s3 read %s: %w", key, err)
	}
	return buf.Bytes(), nil
}

func archiveKey(sessionID, snapshotID string) string {
	return fmt.Sprintf("sessions/%s/%s.json", sessionID, snapshotID)
}
