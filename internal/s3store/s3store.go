// SPDX-FileCopyrightText: 2025 NetCracker Technology Corporation
//
// SPDX-License-Identifier: Apache-2.0

// Package s3store verifies backup presence in S3-compatible storage (MinIO
// included). The backup daemon owns uploads; this package only observes the
// bucket contents.
package s3store

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/netcracker/consul-e2e-framework/internal/config"
)

// StorageRoot is where the backup daemon keeps full backups inside the
// bucket. Granular backups live under StorageRoot/granular.
const (
	StorageRoot    = "/opt/consul/backup-storage"
	GranularPrefix = StorageRoot + "/granular"
)

// ObjectLister is the subset of the S3 API the store uses.
type ObjectLister interface {
	ListObjectsV2WithContext(aws.Context, *s3.ListObjectsV2Input, ...request.Option) (*s3.ListObjectsV2Output, error)
}

type Store struct {
	Bucket string
	API    ObjectLister
}

// NewStore builds an S3 client against the configured endpoint. Path-style
// addressing and disabled certificate verification match how the backup
// daemon itself talks to on-premise object storage.
func NewStore(cfg config.S3) (*Store, error) {
	sess, err := session.NewSession(&aws.Config{
		Endpoint:         aws.String(cfg.URL),
		Region:           aws.String("us-east-1"),
		S3ForcePathStyle: aws.Bool(true),
		Credentials:      credentials.NewStaticCredentials(cfg.KeyID, cfg.KeySecret, ""),
		HTTPClient: &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint: gosec
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create S3 session: %w", err)
	}

	return &Store{
		Bucket: cfg.Bucket,
		API:    s3.New(sess),
	}, nil
}

// BackupExists reports whether any object under path contains the backup id
// in its key.
func (s *Store) BackupExists(ctx aws.Context, path, id string) (bool, error) {
	prefix := strings.TrimPrefix(path, "/")

	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.Bucket),
		Prefix: aws.String(prefix),
	}

	for {
		out, err := s.API.ListObjectsV2WithContext(ctx, input)
		if err != nil {
			return false, fmt.Errorf("list objects under %s: %w", prefix, err)
		}

		for _, obj := range out.Contents {
			if obj.Key != nil && strings.Contains(*obj.Key, id) {
				return true, nil
			}
		}

		if out.IsTruncated == nil || !*out.IsTruncated {
			return false, nil
		}
		input.ContinuationToken = out.NextContinuationToken
	}
}
