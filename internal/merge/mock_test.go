package merge

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

type neoEager = neo4j.EagerResult

// MockDriver records every executed query with its parameters and replays a
// scripted queue of results.
type MockDriver struct {
	Queries []string
	Params  []map[string]interface{}

	ResultQueue []neo4j.EagerResult
	// ErrQueue scripts per-call failures; a nil entry means that call
	// succeeds and consumes the next result.
	ErrQueue []error
	Err      error
}

func (m *MockDriver) ExecuteQuery(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error) {
	m.Queries = append(m.Queries, query)
	m.Params = append(m.Params, params)
	if len(m.ErrQueue) > 0 {
		err := m.ErrQueue[0]
		m.ErrQueue = m.ErrQueue[1:]
		if err != nil {
			return neo4j.EagerResult{}, err
		}
	}
	if m.Err != nil {
		return neo4j.EagerResult{}, m.Err
	}
	if len(m.ResultQueue) > 0 {
		result := m.ResultQueue[0]
		m.ResultQueue = m.ResultQueue[1:]
		return result, nil
	}
	return neo4j.EagerResult{Records: []*neo4j.Record{}}, nil
}

func (m *MockDriver) Close(ctx context.Context) error {
	return nil
}

func record(keys []string, values []interface{}) *neo4j.Record {
	return &neo4j.Record{Keys: keys, Values: values}
}

func singleRecord(keys []string, values []interface{}) neo4j.EagerResult {
	return neo4j.EagerResult{
		Keys:    keys,
		Records: []*neo4j.Record{record(keys, values)},
	}
}

func emptyResult() neo4j.EagerResult {
	return neo4j.EagerResult{Records: []*neo4j.Record{}}
}
