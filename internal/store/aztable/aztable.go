// Package aztable keeps the todo table in Azure Table Storage. Each list is
// one partition; the row key is a time-ordered UUID so listing a partition
// returns rows in insertion order.
package aztable

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/google/uuid"

	"github.com/idilsaglam/todosync/internal/model"
	"github.com/idilsaglam/todosync/internal/store"
)

// DefaultPartition is used when no partition is configured.
const DefaultPartition = "default"

// Store implements store.Store over one Azure table partition.
type Store struct {
	table     *aztables.Client
	partition string
	newKey    func() string
}

var _ store.Store = (*Store)(nil)

// New connects to tableName using a storage connection string.
func New(connStr, tableName, partition string) (*Store, error) {
	opts := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute,
				RetryDelay:    time.Second,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &opts)
	if err != nil {
		return nil, fmt.Errorf("azure tables: %w", err)
	}
	if partition == "" {
		partition = DefaultPartition
	}
	return &Store{
		table:     svc.NewClient(tableName),
		partition: partition,
		newKey:    newRowKey,
	}, nil
}

func newRowKey() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Close is a no-op; the SDK client holds no long-lived resources.
func (s *Store) Close() error { return nil }

// EnsureTable creates the table if it does not exist yet.
func (s *Store) EnsureTable(ctx context.Context) error {
	_, err := s.table.CreateTable(ctx, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.ErrorCode == string(aztables.TableAlreadyExists) {
			return nil
		}
		return fmt.Errorf("create table: %w", err)
	}
	return nil
}

type todoEntity struct {
	aztables.Entity
	Name        string `json:"name"`
	IsCompleted bool   `json:"isCompleted"`
}

func decodeEntity(data []byte) (model.Item, error) {
	var ent todoEntity
	if err := json.Unmarshal(data, &ent); err != nil {
		return model.Item{}, err
	}
	return model.Item{
		ID:          model.ID(ent.RowKey),
		Name:        ent.Name,
		IsCompleted: ent.IsCompleted,
	}, nil
}

func (s *Store) partitionFilter() string {
	return "PartitionKey eq '" + strings.ReplaceAll(s.partition, "'", "''") + "'"
}

func (s *Store) SelectAll(ctx context.Context) ([]model.Item, error) {
	filter := s.partitionFilter()
	pager := s.table.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	items := []model.Item{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list entities: %w", err)
		}
		for _, e := range resp.Entities {
			it, err := decodeEntity(e)
			if err != nil {
				return nil, fmt.Errorf("decode entity: %w", err)
			}
			items = append(items, it)
		}
	}
	return items, nil
}

func (s *Store) Insert(ctx context.Context, item model.NewItem) (model.Item, error) {
	it := model.Item{
		ID:          model.ID(s.newKey()),
		Name:        item.Name,
		IsCompleted: item.IsCompleted,
	}
	payload, err := json.Marshal(map[string]any{
		"PartitionKey": s.partition,
		"RowKey":       string(it.ID),
		"name":         it.Name,
		"isCompleted":  it.IsCompleted,
	})
	if err != nil {
		return model.Item{}, fmt.Errorf("json marshal: %w", err)
	}
	if _, err := s.table.AddEntity(ctx, payload, nil); err != nil {
		return model.Item{}, fmt.Errorf("add entity: %w", err)
	}
	return it, nil
}

func (s *Store) UpdateByID(ctx context.Context, id model.ID, patch model.Patch) error {
	ent := map[string]any{
		"PartitionKey": s.partition,
		"RowKey":       string(id),
	}
	if patch.IsCompleted != nil {
		ent["isCompleted"] = *patch.IsCompleted
	}
	payload, err := json.Marshal(ent)
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	et := azcore.ETagAny
	_, err = s.table.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{IfMatch: &et, UpdateMode: aztables.UpdateModeMerge})
	if err != nil {
		return notFound(fmt.Errorf("update entity: %w", err))
	}
	return nil
}

func (s *Store) DeleteByID(ctx context.Context, id model.ID) error {
	et := azcore.ETagAny
	_, err := s.table.DeleteEntity(ctx, s.partition, string(id), &aztables.DeleteEntityOptions{IfMatch: &et})
	if err != nil {
		return notFound(fmt.Errorf("delete entity: %w", err))
	}
	return nil
}

// notFound maps a 404 from the service onto store.ErrNotFound.
func notFound(err error) error {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %v", store.ErrNotFound, err)
	}
	return err
}
