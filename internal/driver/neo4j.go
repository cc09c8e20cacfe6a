package driver

import (
	"context"
	"errors"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// ErrUnauthorized marks invalid graph credentials. Callers treat it as fatal
// at startup rather than routing it to the failed queue.
var ErrUnauthorized = errors.New("graph authentication failed")

type Neo4jDriver struct {
	Driver neo4j.DriverWithContext
}

func NewNeo4jDriver(ctx context.Context, uri, username, password string) (*Neo4jDriver, error) {
	d, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create driver for %s: %w", uri, err)
	}

	if err := d.VerifyConnectivity(ctx); err != nil {
		_ = d.Close(ctx)
		var neo4jErr *neo4j.Neo4jError
		if errors.As(err, &neo4jErr) && neo4jErr.Code == "Neo.ClientError.Security.Unauthorized" {
			return nil, fmt.Errorf("%w: %s", ErrUnauthorized, neo4jErr.Msg)
		}
		return nil, fmt.Errorf("failed to reach graph at %s: %w", uri, err)
	}

	return &Neo4jDriver{Driver: d}, nil
}

func (d *Neo4jDriver) Close(ctx context.Context) error {
	return d.Driver.Close(ctx)
}

func (d *Neo4jDriver) ExecuteQuery(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error) {
	result, err := neo4j.ExecuteQuery(ctx, d.Driver, query, params, neo4j.EagerResultTransformer)
	if err != nil {
		return neo4j.EagerResult{}, fmt.Errorf("failed to execute query: %w", err)
	}
	return *result, nil
}
