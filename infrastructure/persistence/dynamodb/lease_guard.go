package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// leaseRecord is a save lease row. TTL lets DynamoDB sweep abandoned leases.
type leaseRecord struct {
	PK         string `dynamodbav:"PK"` // LEASE#<key>
	SK         string `dynamodbav:"SK"` // LEASE
	EntityType string `dynamodbav:"EntityType"`
	LeaseID    string `dynamodbav:"LeaseID"`
	AcquiredAt string `dynamodbav:"AcquiredAt"`
	ExpiresAt  int64  `dynamodbav:"ExpiresAt"` // unix nanos
	TTL        int64  `dynamodbav:"TTL"`       // unix seconds
}

// LeaseGuard is a ports.SaveGuard built on conditional writes, so saves of
// one session are exclusive across every instance sharing the table
type LeaseGuard struct {
	client    Client
	tableName string
	ttl       time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// NewLeaseGuard creates a lease guard. Leases expire after ttl even if never released.
func NewLeaseGuard(client Client, tableName string, ttl time.Duration, logger *zap.Logger) *LeaseGuard {
	return &LeaseGuard{
		client:    client,
		tableName: tableName,
		ttl:       ttl,
		logger:    logger,
		now:       time.Now,
	}
}

func leaseKey(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: "LEASE#" + key},
		"SK": &types.AttributeValueMemberS{Value: "LEASE"},
	}
}

// TryAcquire writes the lease unless a live one exists
func (g *LeaseGuard) TryAcquire(ctx context.Context, key string) (func(), bool, error) {
	now := g.now()
	expiresAt := now.Add(g.ttl)
	record := leaseRecord{
		PK:         "LEASE#" + key,
		SK:         "LEASE",
		EntityType: "LEASE",
		LeaseID:    uuid.NewString(),
		AcquiredAt: now.UTC().Format(time.RFC3339),
		ExpiresAt:  expiresAt.UnixNano(),
		TTL:        expiresAt.Unix(),
	}
	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal lease: %w", err)
	}

	cond := expression.AttributeNotExists(expression.Name("PK")).
		Or(expression.Name("ExpiresAt").LessThan(expression.Value(now.UnixNano())))
	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		return nil, false, fmt.Errorf("failed to build lease condition: %w", err)
	}

	_, err = g.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(g.tableName),
		Item:                      item,
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		var conditionalCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionalCheckFailed) {
			g.logger.Debug("Save lease already held", zap.String("key", key))
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to acquire save lease: %w", err)
	}

	g.logger.Debug("Save lease acquired",
		zap.String("key", key),
		zap.String("lease_id", record.LeaseID),
		zap.Duration("ttl", g.ttl),
	)

	release := func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := g.release(ctx, key, record.LeaseID); err != nil {
			g.logger.Warn("Failed to release save lease", zap.String("key", key), zap.Error(err))
		}
	}
	return sync.OnceFunc(release), true, nil
}

func (g *LeaseGuard) release(ctx context.Context, key, leaseID string) error {
	expr, err := expression.NewBuilder().
		WithCondition(expression.Name("LeaseID").Equal(expression.Value(leaseID))).
		Build()
	if err != nil {
		return err
	}

	_, err = g.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                 aws.String(g.tableName),
		Key:                       leaseKey(key),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		var conditionalCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionalCheckFailed) {
			// expired and taken over; nothing of ours to delete
			return nil
		}
		return err
	}
	return nil
}
