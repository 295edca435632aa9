package dynamo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"qms/callboard-service/internal/store"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog"
)

// Mode selects how the DynamoDB client is built.
type Mode string

const (
	ModeLocal Mode = "local"
	ModeAWS   Mode = "aws"
)

type Config struct {
	Mode     Mode
	Endpoint string // local mode only
	Region   string
	Table    string
}

type item struct {
	Name      string `dynamodbav:"Name"`
	Body      string `dynamodbav:"Body"`
	UpdatedAt string `dynamodbav:"UpdatedAt"`
}

// Store keeps one item per document, keyed by Name, with the JSON in Body.
type Store struct {
	client *dynamodb.Client
	table  string
	logger zerolog.Logger
}

func NewStore(ctx context.Context, cfg Config, logger zerolog.Logger) (*Store, error) {
	var client *dynamodb.Client
	if cfg.Mode == ModeLocal {
		// Built directly so LoadDefaultConfig does not probe IMDS for credentials.
		client = dynamodb.New(dynamodb.Options{
			Region:       cfg.Region,
			BaseEndpoint: aws.String(cfg.Endpoint),
			Credentials:  credentials.NewStaticCredentialsProvider("local", "local", ""),
		})
	} else {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
		if err != nil {
			return nil, fmt.Errorf("load AWS config: %w", err)
		}
		client = dynamodb.NewFromConfig(awsCfg)
	}

	s := &Store{
		client: client,
		table:  cfg.Table,
		logger: logger.With().Str("component", "dynamo").Logger(),
	}
	if cfg.Mode == ModeLocal {
		if err := s.createTableIfNotExist(ctx); err != nil {
			return nil, err
		}
	}

	s.logger.Info().
		Str("mode", string(cfg.Mode)).
		Str("region", cfg.Region).
		Str("table", cfg.Table).
		Msg("DynamoDB document store initialized")
	return s, nil
}

func (s *Store) Load(ctx context.Context, name string, into any) error {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            map[string]dbtypes.AttributeValue{"Name": &dbtypes.AttributeValueMemberS{Value: name}},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("get %s: %w", name, err)
	}
	if out.Item == nil {
		return fmt.Errorf("%s: %w", name, store.ErrDocumentNotFound)
	}

	var it item
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return fmt.Errorf("unmarshal %s item: %w", name, err)
	}
	if err := json.Unmarshal([]byte(it.Body), into); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

func (s *Store) Save(ctx context.Context, name string, value any) error {
	body, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	av, err := attributevalue.MarshalMap(item{
		Name:      name,
		Body:      string(body),
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("marshal %s item: %w", name, err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", name, err)
	}
	return nil
}

func (s *Store) createTableIfNotExist(ctx context.Context) error {
	_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(s.table),
	})
	if err == nil {
		s.logger.Info().Str("table", s.table).Msg("table already exists")
		return nil
	}

	_, err = s.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(s.table),
		KeySchema: []dbtypes.KeySchemaElement{
			{AttributeName: aws.String("Name"), KeyType: dbtypes.KeyTypeHash},
		},
		AttributeDefinitions: []dbtypes.AttributeDefinition{
			{AttributeName: aws.String("Name"), AttributeType: dbtypes.ScalarAttributeTypeS},
		},
		BillingMode: dbtypes.BillingModePayPerRequest,
	})
	if err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	s.logger.Info().Str("table", s.table).Msg("table created")
	return nil
}
