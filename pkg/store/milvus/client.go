// Package milvus is the server-backed VectorIndex implementation: window
// embeddings and their metadata live in a Milvus collection and searches run
// remotely. The in-memory index in pkg/index serves the same contract for
// single-process runs and tests.
package milvus

import (
	"context"
	"fmt"
	"strconv"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

// Client manages a Milvus connection.
type Client struct {
	conn client.Client
	addr string
}

// Config holds connection settings.
type Config struct {
	Address  string // e.g. "localhost:19530"
	Username string
	Password string
}

// DefaultConfig points at a local server.
func DefaultConfig() Config {
	return Config{Address: "localhost:19530"}
}

// NewClient connects to Milvus.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	conn, err := client.NewClient(ctx, client.Config{
		Address:  cfg.Address,
		Username: cfg.Username,
		Password: cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to milvus: %w", err)
	}
	return &Client{conn: conn, addr: cfg.Address}, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Connection returns the underlying SDK client.
func (c *Client) Connection() client.Client {
	return c.conn
}

// HasCollection checks if a collection exists.
func (c *Client) HasCollection(ctx context.Context, name string) (bool, error) {
	return c.conn.HasCollection(ctx, name)
}

// CreateIndex builds an IVF_FLAT index on the embedding field.
func (c *Client) CreateIndex(ctx context.Context, collectionName string, metric entity.MetricType) error {
	idx, err := entity.NewIndexIvfFlat(metric, 128)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	return c.conn.CreateIndex(ctx, collectionName, "embedding", idx, false)
}

// Dimension reads the embedding dimension of an existing collection.
func (c *Client) Dimension(ctx context.Context, collectionName string) (int, error) {
	desc, err := c.conn.DescribeCollection(ctx, collectionName)
	if err != nil {
		return 0, fmt.Errorf("failed to describe collection: %w", err)
	}
	for _, f := range desc.Schema.Fields {
		if f.Name == "embedding" {
			dim, err := strconv.Atoi(f.TypeParams["dim"])
			if err != nil {
				return 0, fmt.Errorf("collection %s has malformed dim param: %w", collectionName, err)
			}
			return dim, nil
		}
	}
	return 0, fmt.Errorf("collection %s has no embedding field", collectionName)
}

// LoadCollection loads a collection into memory for searching.
func (c *Client) LoadCollection(ctx context.Context, collectionName string) error {
	return c.conn.LoadCollection(ctx, collectionName, false)
}

// DropCollection drops a collection.
func (c *Client) DropCollection(ctx context.Context, collectionName string) error {
	return c.conn.DropCollection(ctx, collectionName)
}
