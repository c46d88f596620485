package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"sayhey/internal/domain"
)

const (
	skPrefixMsg = "MSG#"
	skMeta      = "META#"
	ttlDuration = 30 * 24 * time.Hour // 30-day TTL

	// Fixed-width so sort keys order the same as their timestamps.
	skTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Client archives completed chat exchanges in a single DynamoDB table,
// partitioned by user id.
type Client struct {
	api       dynamodbAPI
	tableName string
	now       func() time.Time
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName, now: time.Now}, nil
}

func userPK(userID string) string {
	return "USER#" + userID
}

func msgSK(ts time.Time) string {
	return skPrefixMsg + ts.UTC().Format(skTimeLayout)
}

func (c *Client) ttlValue() int64 {
	return c.now().Add(ttlDuration).Unix()
}

// SaveExchange writes the exchange and bumps the per-user meta record in one
// transaction. A zero At is stamped with the current time.
func (c *Client) SaveExchange(ctx context.Context, ex domain.Exchange) error {
	if strings.TrimSpace(ex.UserID) == "" {
		return errors.New("repository: SaveExchange: user id is required")
	}
	if ex.At.IsZero() {
		ex.At = c.now()
	}
	pk := userPK(ex.UserID)
	ttl := strconv.FormatInt(c.ttlValue(), 10)

	_, err := c.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					TableName:           aws.String(c.tableName),
					Item:                exchangeItem(pk, ex, ttl),
					ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
				},
			},
			{
				Update: &types.Update{
					TableName: aws.String(c.tableName),
					Key: map[string]types.AttributeValue{
						"PK": &types.AttributeValueMemberS{Value: pk},
						"SK": &types.AttributeValueMemberS{Value: skMeta},
					},
					UpdateExpression: aws.String("SET userId = :uid, lastActivity = :last, #ttl = :ttl ADD exchanges :one"),
					ExpressionAttributeNames: map[string]string{
						"#ttl": "ttl",
					},
					ExpressionAttributeValues: map[string]types.AttributeValue{
						":uid":  &types.AttributeValueMemberS{Value: ex.UserID},
						":last": &types.AttributeValueMemberS{Value: ex.At.UTC().Format(time.RFC3339)},
						":ttl":  &types.AttributeValueMemberN{Value: ttl},
						":one":  &types.AttributeValueMemberN{Value: "1"},
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("repository: SaveExchange: %w", err)
	}
	return nil
}

// GetHistory returns up to limit of the most recent exchanges, oldest first.
func (c *Client) GetHistory(ctx context.Context, userID string, limit int) ([]domain.Exchange, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: userPK(userID)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixMsg},
		},
		// Read newest first so LIMIT favors the most recent exchanges.
		ScanIndexForward: aws.Bool(false),
	}
	if limit > 0 {
		in.Limit = aws.Int32(int32(limit))
	}

	out, err := c.api.Query(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("repository: GetHistory query: %w", err)
	}

	exchanges := make([]domain.Exchange, 0, len(out.Items))
	for _, item := range out.Items {
		ex, err := itemToExchange(item)
		if err != nil {
			return nil, fmt.Errorf("repository: GetHistory unmarshal: %w", err)
		}
		exchanges = append(exchanges, ex)
	}
	for i, j := 0, len(exchanges)-1; i < j; i, j = i+1, j-1 {
		exchanges[i], exchanges[j] = exchanges[j], exchanges[i]
	}
	return exchanges, nil
}

// GetExchangeCount returns the number of archived exchanges for a user.
func (c *Client) GetExchangeCount(ctx context.Context, userID string) (int, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: userPK(userID)},
			"SK": &types.AttributeValueMemberS{Value: skMeta},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return 0, fmt.Errorf("repository: GetExchangeCount get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return 0, nil
	}

	n, err := intAttr(out.Item, "exchanges")
	if err != nil {
		return 0, fmt.Errorf("repository: GetExchangeCount decode exchanges: %w", err)
	}
	return n, nil
}

func exchangeItem(pk string, ex domain.Exchange, ttl string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":               &types.AttributeValueMemberS{Value: pk},
		"SK":               &types.AttributeValueMemberS{Value: msgSK(ex.At)},
		"userId":           &types.AttributeValueMemberS{Value: ex.UserID},
		"question":         &types.AttributeValueMemberS{Value: ex.Question},
		"answer":           &types.AttributeValueMemberS{Value: ex.Answer},
		"sessionCancelled": &types.AttributeValueMemberBOOL{Value: ex.SessionCancelled},
		"ttl":              &types.AttributeValueMemberN{Value: ttl},
	}
}

func itemToExchange(item map[string]types.AttributeValue) (domain.Exchange, error) {
	sk, err := strAttr(item, "SK")
	if err != nil {
		return domain.Exchange{}, err
	}
	at, err := time.Parse(time.RFC3339Nano, strings.TrimPrefix(sk, skPrefixMsg))
	if err != nil {
		return domain.Exchange{}, fmt.Errorf("repository: parse sort key %q: %w", sk, err)
	}
	question, err := strAttr(item, "question")
	if err != nil {
		return domain.Exchange{}, err
	}
	userID, _ := strAttr(item, "userId") // allow empty
	answer, _ := strAttr(item, "answer") // allow empty

	cancelled := false
	if v, ok := item["sessionCancelled"].(*types.AttributeValueMemberBOOL); ok {
		cancelled = v.Value
	}

	return domain.Exchange{
		UserID:           userID,
		Question:         question,
		Answer:           answer,
		SessionCancelled: cancelled,
		At:               at,
	}, nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}

func intAttr(item map[string]types.AttributeValue, key string) (int, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("repository: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("repository: attribute %q is not a number", key)
	}
	parsed, err := strconv.Atoi(n.Value)
	if err != nil {
		return 0, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return parsed, nil
}
