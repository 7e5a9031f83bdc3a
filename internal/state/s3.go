package state

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"

	"github.com/relish-io/relish/internal/ir"
)

// s3Store keeps one object per node under a key prefix in an S3 bucket,
// with optional DynamoDB conditional-put locking.
type s3Store struct {
	bucket        string
	prefix        string
	region        string
	dynamoDBTable string
	encrypt       bool
	profile       string

	s3Client *s3.Client
	dbClient *dynamodb.Client
	lockID   string
}

func newS3Store(options map[string]string) (Store, error) {
	bucket := options["bucket"]
	if bucket == "" {
		return nil, fmt.Errorf("s3 backend requires 'bucket' configuration")
	}

	prefix := options["prefix"]
	if prefix == "" {
		prefix = "relish/state"
	}
	prefix = strings.TrimSuffix(prefix, "/")

	region := options["region"]
	if region == "" {
		region = "us-east-1"
	}

	b := &s3Store{
		bucket:        bucket,
		prefix:        prefix,
		region:        region,
		dynamoDBTable: options["dynamodb_table"],
		encrypt:       options["encrypt"] == "true",
		profile:       options["profile"],
	}

	if err := b.initClients(); err != nil {
		return nil, fmt.Errorf("failed to initialize S3 backend: %w", err)
	}
	return b, nil
}

func (b *s3Store) initClients() error {
	ctx := context.Background()

	var opts []func(*awsconfig.LoadOptions) error
	opts = append(opts, awsconfig.WithRegion(b.region))
	if b.profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(b.profile))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return fmt.Errorf("unable to load AWS config: %w", err)
	}

	b.s3Client = s3.NewFromConfig(cfg)
	if b.dynamoDBTable != "" {
		b.dbClient = dynamodb.NewFromConfig(cfg)
	}
	return nil
}

func (b *s3Store) recordKey(nodeID string) string {
	return path.Join(b.prefix, "resources", url.PathEscape(nodeID)+".json")
}

func (b *s3Store) metaKey() string {
	return path.Join(b.prefix, "meta.json")
}

func (b *s3Store) Load(ctx context.Context) (map[string]*ir.StateRecord, error) {
	records := make(map[string]*ir.StateRecord)

	listPrefix := path.Join(b.prefix, "resources") + "/"
	paginator := s3.NewListObjectsV2Paginator(b.s3Client, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(listPrefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list state objects in s3://%s/%s: %w", b.bucket, listPrefix, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if !strings.HasSuffix(key, ".json") {
				continue
			}
			rec, err := b.getRecord(ctx, key)
			if err != nil {
				return nil, err
			}
			records[rec.NodeID] = rec
		}
	}
	return records, nil
}

func (b *s3Store) getRecord(ctx context.Context, key string) (*ir.StateRecord, error) {
	content, err := b.getObject(ctx, key)
	if err != nil {
		return nil, err
	}

	var rec ir.StateRecord
	if err := json.Unmarshal(content, &rec); err != nil {
		return nil, fmt.Errorf("corrupt state record s3://%s/%s: %w", b.bucket, key, err)
	}
	return &rec, nil
}

func (b *s3Store) getObject(ctx context.Context, key string) ([]byte, error) {
	result, err := b.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read s3://%s/%s: %w", b.bucket, key, err)
	}
	defer result.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(result.Body); err != nil {
		return nil, fmt.Errorf("failed to read S3 object body: %w", err)
	}

	content, err := DecryptRecord(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt s3://%s/%s: %w", b.bucket, key, err)
	}
	return content, nil
}

func (b *s3Store) putObject(ctx context.Context, key string, content []byte) error {
	encrypted, err := EncryptRecord(content)
	if err != nil {
		return fmt.Errorf("failed to encrypt state: %w", err)
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(encrypted),
	}
	if b.encrypt {
		input.ServerSideEncryption = s3types.ServerSideEncryptionAes256
	}

	if _, err := b.s3Client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("failed to write s3://%s/%s: %w", b.bucket, key, err)
	}
	return nil
}

func (b *s3Store) Save(ctx context.Context, nodeID string, record *ir.StateRecord) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state record %s: %w", nodeID, err)
	}
	return b.putObject(ctx, b.recordKey(nodeID), append(data, '\n'))
}

func (b *s3Store) Delete(ctx context.Context, nodeID string) error {
	_, err := b.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.recordKey(nodeID)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete state record %s: %w", nodeID, err)
	}
	return nil
}

func (b *s3Store) Meta(ctx context.Context) (*ir.Meta, error) {
	content, err := b.getObject(ctx, b.metaKey())
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) || strings.Contains(err.Error(), "NoSuchKey") || strings.Contains(err.Error(), "404") {
			return &ir.Meta{Version: 1, Lineage: uuid.NewString()}, nil
		}
		return nil, err
	}

	var meta ir.Meta
	if err := json.Unmarshal(content, &meta); err != nil {
		return nil, fmt.Errorf("corrupt state metadata: %w", err)
	}
	return &meta, nil
}

func (b *s3Store) WriteMeta(ctx context.Context, meta *ir.Meta) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state metadata: %w", err)
	}
	return b.putObject(ctx, b.metaKey(), append(data, '\n'))
}

func (b *s3Store) Lock() error {
	if b.dynamoDBTable == "" {
		return nil // No locking without DynamoDB
	}

	b.lockID = fmt.Sprintf("relish-%d-%d", os.Getpid(), time.Now().UnixNano())

	_, err := b.dbClient.PutItem(context.Background(), &dynamodb.PutItemInput{
		TableName: aws.String(b.dynamoDBTable),
		Item: map[string]dbtypes.AttributeValue{
			"LockID":  &dbtypes.AttributeValueMemberS{Value: b.prefix},
			"Info":    &dbtypes.AttributeValueMemberS{Value: b.lockID},
			"Created": &dbtypes.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339)},
		},
		ConditionExpression: aws.String("attribute_not_exists(LockID)"),
	})
	if err != nil {
		if strings.Contains(err.Error(), "ConditionalCheckFailedException") {
			return fmt.Errorf("state is locked by another process. If this is an error, "+
				"manually delete the lock item with LockID=%q from DynamoDB table %q", b.prefix, b.dynamoDBTable)
		}
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	return nil
}

func (b *s3Store) Unlock() error {
	if b.dynamoDBTable == "" {
		return nil
	}

	_, err := b.dbClient.DeleteItem(context.Background(), &dynamodb.DeleteItemInput{
		TableName: aws.String(b.dynamoDBTable),
		Key: map[string]dbtypes.AttributeValue{
			"LockID": &dbtypes.AttributeValueMemberS{Value: b.prefix},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}
