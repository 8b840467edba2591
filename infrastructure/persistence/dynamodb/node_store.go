// Package dynamodb stores sitemap pages and save leases in a single DynamoDB table
package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"sitemap-backend/domain/core/entities"
	"sitemap-backend/domain/core/valueobjects"
	pkgerrors "sitemap-backend/pkg/errors"
)

// Client is the subset of the DynamoDB API the stores use
type Client interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

const entityPage = "PAGE"

// pageItem is the table layout of one page.
// PK = SITEMAP#<sitemap id>, SK = PAGE#<zero padded node id>.
type pageItem struct {
	PK         string            `dynamodbav:"PK"`
	SK         string            `dynamodbav:"SK"`
	EntityType string            `dynamodbav:"EntityType"`
	SitemapID  int64             `dynamodbav:"SitemapID"`
	NodeID     int64             `dynamodbav:"NodeID"`
	ParentID   *int64            `dynamodbav:"ParentID,omitempty"`
	IsRoot     bool              `dynamodbav:"IsRoot"`
	Title      string            `dynamodbav:"Title"`
	Path       string            `dynamodbav:"Path,omitempty"`
	X          *float64          `dynamodbav:"X,omitempty"`
	Y          *float64          `dynamodbav:"Y,omitempty"`
	Status     string            `dynamodbav:"Status"`
	Attributes map[string]string `dynamodbav:"Attributes,omitempty"`
	Version    int               `dynamodbav:"Version"`
	UpdatedAt  string            `dynamodbav:"UpdatedAt"`
	Seq        int64             `dynamodbav:"Seq"` // first-insert order
}

func sitemapKey(id valueobjects.SitemapID) string {
	return fmt.Sprintf("SITEMAP#%d", id.Int64())
}

func pageKey(id valueobjects.NodeID) string {
	return fmt.Sprintf("PAGE#%019d", id.Int64())
}

func itemKey(sitemapID valueobjects.SitemapID, nodeID valueobjects.NodeID) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: sitemapKey(sitemapID)},
		"SK": &types.AttributeValueMemberS{Value: pageKey(nodeID)},
	}
}

// NodeStore is a ports.NodeStore over DynamoDB
type NodeStore struct {
	client    Client
	tableName string
	logger    *zap.Logger
	now       func() time.Time
}

// NewNodeStore creates a DynamoDB node store
func NewNodeStore(client Client, tableName string, logger *zap.Logger) *NodeStore {
	return &NodeStore{
		client:    client,
		tableName: tableName,
		logger:    logger,
		now:       time.Now,
	}
}

// ListBySitemap queries every page of a sitemap and returns them in first-insert order
func (s *NodeStore) ListBySitemap(ctx context.Context, sitemapID valueobjects.SitemapID) ([]*entities.Node, error) {
	keyCond := expression.Key("PK").Equal(expression.Value(sitemapKey(sitemapID))).
		And(expression.Key("SK").BeginsWith("PAGE#"))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	var items []pageItem
	var startKey map[string]types.AttributeValue
	for {
		out, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(s.tableName),
			KeyConditionExpression:    expr.KeyCondition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ExclusiveStartKey:         startKey,
		})
		if err != nil {
			return nil, pkgerrors.NewDatabaseError("list_pages", err)
		}

		var page []pageItem
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("failed to unmarshal pages: %w", err)
		}
		items = append(items, page...)

		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		startKey = out.LastEvaluatedKey
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].Seq < items[j].Seq })

	nodes := make([]*entities.Node, 0, len(items))
	for _, item := range items {
		node, err := toNode(item)
		if err != nil {
			s.logger.Error("Unreadable page",
				zap.Int64("sitemap_id", item.SitemapID),
				zap.Int64("node_id", item.NodeID),
				zap.Error(err),
			)
			return nil, pkgerrors.NewDatabaseError("read_page", err).
				WithDetails(map[string]interface{}{"node_id": item.NodeID})
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

func toNode(item pageItem) (*entities.Node, error) {
	var snap entities.NodeSnapshot
	var err error
	if snap.ID, err = valueobjects.NewNodeID(item.NodeID); err != nil {
		return nil, err
	}
	if snap.SitemapID, err = valueobjects.NewSitemapID(item.SitemapID); err != nil {
		return nil, err
	}
	if item.ParentID != nil {
		p, err := valueobjects.NewNodeID(*item.ParentID)
		if err != nil {
			return nil, err
		}
		snap.ParentID = &p
	}
	if item.X != nil && item.Y != nil {
		pos, err := valueobjects.NewPosition(*item.X, *item.Y)
		if err != nil {
			return nil, err
		}
		snap.Position = &pos
	}
	snap.IsRoot = item.IsRoot
	snap.Title = item.Title
	snap.Path = item.Path
	snap.Status = entities.NodeStatus(item.Status)
	snap.Attributes = item.Attributes
	snap.Version = item.Version
	if t, err := time.Parse(time.RFC3339Nano, item.UpdatedAt); err == nil {
		snap.UpdatedAt = t
	}
	return entities.ReconstructNode(snap)
}

// UpdatePosition writes a single page's coordinates
func (s *NodeStore) UpdatePosition(ctx context.Context, sitemapID valueobjects.SitemapID, nodeID valueobjects.NodeID, pos valueobjects.Position) error {
	update := expression.Set(expression.Name("X"), expression.Value(pos.X())).
		Set(expression.Name("Y"), expression.Value(pos.Y())).
		Set(expression.Name("UpdatedAt"), expression.Value(s.timestamp()))
	return s.updateExisting(ctx, "update_position", sitemapID, nodeID, update)
}

// UpdateParent moves a page under a new parent in the same sitemap
func (s *NodeStore) UpdateParent(ctx context.Context, sitemapID valueobjects.SitemapID, nodeID, parentID valueobjects.NodeID) error {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:            aws.String(s.tableName),
		Key:                  itemKey(sitemapID, parentID),
		ProjectionExpression: aws.String("PK"),
	})
	if err != nil {
		return pkgerrors.NewDatabaseError("update_parent", err)
	}
	if len(out.Item) == 0 {
		return pkgerrors.NewNotFoundError(fmt.Sprintf("node %s", parentID))
	}

	update := expression.Set(expression.Name("ParentID"), expression.Value(parentID.Int64())).
		Set(expression.Name("UpdatedAt"), expression.Value(s.timestamp())).
		Add(expression.Name("Version"), expression.Value(1))
	return s.updateExisting(ctx, "update_parent", sitemapID, nodeID, update)
}

func (s *NodeStore) updateExisting(ctx context.Context, op string, sitemapID valueobjects.SitemapID, nodeID valueobjects.NodeID, update expression.UpdateBuilder) error {
	expr, err := expression.NewBuilder().
		WithUpdate(update).
		WithCondition(expression.AttributeExists(expression.Name("PK"))).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build update: %w", err)
	}

	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.tableName),
		Key:                       itemKey(sitemapID, nodeID),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	return s.mapWriteError(op, nodeID, err)
}

// Delete removes a page
func (s *NodeStore) Delete(ctx context.Context, sitemapID valueobjects.SitemapID, nodeID valueobjects.NodeID) error {
	expr, err := expression.NewBuilder().
		WithCondition(expression.AttributeExists(expression.Name("PK"))).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build delete: %w", err)
	}

	_, err = s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                 aws.String(s.tableName),
		Key:                       itemKey(sitemapID, nodeID),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	return s.mapWriteError("delete_page", nodeID, err)
}

// Upsert writes a whole page. An existing page keeps its Seq and therefore its list position.
func (s *NodeStore) Upsert(ctx context.Context, node *entities.Node) error {
	snap := node.Snapshot()
	updatedAt := snap.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = s.now()
	}

	update := expression.Set(expression.Name("EntityType"), expression.Value(entityPage)).
		Set(expression.Name("SitemapID"), expression.Value(snap.SitemapID.Int64())).
		Set(expression.Name("NodeID"), expression.Value(snap.ID.Int64())).
		Set(expression.Name("IsRoot"), expression.Value(snap.IsRoot)).
		Set(expression.Name("Title"), expression.Value(snap.Title)).
		Set(expression.Name("Status"), expression.Value(string(snap.Status))).
		Set(expression.Name("Version"), expression.Value(snap.Version)).
		Set(expression.Name("UpdatedAt"), expression.Value(updatedAt.UTC().Format(time.RFC3339Nano))).
		Set(expression.Name("Seq"), expression.IfNotExists(expression.Name("Seq"), expression.Value(s.now().UnixNano())))

	if snap.Path != "" {
		update = update.Set(expression.Name("Path"), expression.Value(snap.Path))
	} else {
		update = update.Remove(expression.Name("Path"))
	}
	if snap.ParentID != nil {
		update = update.Set(expression.Name("ParentID"), expression.Value(snap.ParentID.Int64()))
	} else {
		update = update.Remove(expression.Name("ParentID"))
	}
	if snap.Position != nil {
		update = update.Set(expression.Name("X"), expression.Value(snap.Position.X())).
			Set(expression.Name("Y"), expression.Value(snap.Position.Y()))
	} else {
		update = update.Remove(expression.Name("X")).Remove(expression.Name("Y"))
	}
	if len(snap.Attributes) > 0 {
		update = update.Set(expression.Name("Attributes"), expression.Value(snap.Attributes))
	} else {
		update = update.Remove(expression.Name("Attributes"))
	}

	expr, err := expression.NewBuilder().WithUpdate(update).Build()
	if err != nil {
		return fmt.Errorf("failed to build upsert: %w", err)
	}

	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.tableName),
		Key:                       itemKey(snap.SitemapID, snap.ID),
		UpdateExpression:          expr.Update(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return pkgerrors.NewDatabaseError("upsert_page", err)
	}
	return nil
}

// Ping checks the table is reachable with a cheap keyed read
func (s *NodeStore) Ping(ctx context.Context) error {
	_, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: "HEALTH"},
			"SK": &types.AttributeValueMemberS{Value: "HEALTH"},
		},
	})
	return err
}

func (s *NodeStore) mapWriteError(op string, nodeID valueobjects.NodeID, err error) error {
	if err == nil {
		return nil
	}
	var conditionalCheckFailed *types.ConditionalCheckFailedException
	if errors.As(err, &conditionalCheckFailed) {
		return pkgerrors.NewNotFoundError(fmt.Sprintf("node %s", nodeID))
	}
	return pkgerrors.NewDatabaseError(op, err)
}

func (s *NodeStore) timestamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}
